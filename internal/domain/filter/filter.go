// Package filter defines the query filter for context retrieval.
package filter

import (
	"fmt"

	"github.com/kontext-io/kontext/internal/domain/record"
)

// Filter selects and ranks context records.
//
// Kinds use OR semantics, Tags use ANY-match semantics (at least one listed
// tag present), DomainCategory is an exact match, and TextQuery only affects
// ranking, never membership.
type Filter struct {
	Kinds          []record.Kind
	Tags           []string
	DomainCategory string
	TextQuery      string
	Limit          int
	Offset         int
}

// Normalize applies paging defaults and tag normalization in place.
// Limit 0 takes defaultPageSize; anything above maxPageSize is capped.
func (f *Filter) Normalize(defaultPageSize, maxPageSize int) error {
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	tags, err := record.NormalizeTags(f.Tags)
	if err != nil {
		return err
	}
	f.Tags = tags
	return nil
}

// Validate checks the filter after normalization.
func (f *Filter) Validate() error {
	if f.Limit < 1 {
		return fmt.Errorf("limit must be >= 1, got %d", f.Limit)
	}
	if f.Offset < 0 {
		return fmt.Errorf("offset must be >= 0, got %d", f.Offset)
	}
	for _, k := range f.Kinds {
		if !k.Valid() {
			return fmt.Errorf("unknown kind %q", k)
		}
	}
	return nil
}

// Matches reports whether rec satisfies the structural filter conditions.
// TextQuery is deliberately ignored here; it is a ranking signal only.
func (f *Filter) Matches(rec *record.Record) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if rec.Kind() == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Tags) > 0 {
		found := false
		for _, t := range f.Tags {
			if rec.HasTag(t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DomainCategory != "" && rec.DomainCategory() != f.DomainCategory {
		return false
	}
	return true
}
