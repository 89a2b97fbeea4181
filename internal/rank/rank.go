// Package rank scores and orders context records against a filter.
// Scoring is pure and deterministic: no randomness, no hidden state.
package rank

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
)

// Scoring weights. Each term is in [0,1] and non-decreasing in the number of
// matches, so adding a matching tag, kind or keyword can never lower the score.
const (
	weightBase     = 0.30 // author-assigned prior relevance
	weightTags     = 0.30 // overlap ratio between filter tags and record tags
	weightKind     = 0.15 // exact kind match bonus
	weightCategory = 0.10 // exact domain category match bonus
	weightKeywords = 0.15 // keyword overlap with title+description+content
)

// Score computes the relevance of rec for f. Result is in [0,1].
func Score(rec *record.Record, f *filter.Filter) float64 {
	score := weightBase * rec.BaseScore()

	if len(f.Tags) > 0 {
		matched := 0
		for _, t := range f.Tags {
			if rec.HasTag(t) {
				matched++
			}
		}
		score += weightTags * float64(matched) / float64(len(f.Tags))
	}

	if len(f.Kinds) > 0 {
		for _, k := range f.Kinds {
			if rec.Kind() == k {
				score += weightKind
				break
			}
		}
	}

	if f.DomainCategory != "" && rec.DomainCategory() == f.DomainCategory {
		score += weightCategory
	}

	if f.TextQuery != "" {
		query := Tokenize(f.TextQuery)
		if len(query) > 0 {
			body := tokenSet(rec.Title() + " " + rec.Description() + " " + rec.Content())
			matched := 0
			for _, tok := range query {
				if body[tok] {
					matched++
				}
			}
			score += weightKeywords * float64(matched) / float64(len(query))
		}
	}

	return score
}

// Order sorts records by score descending, createdAt descending, then id
// ascending. The ordering is total, so repeated calls over unchanged data
// return the same sequence.
func Order(records []record.Record, f *filter.Filter) {
	scores := make(map[string]float64, len(records))
	for i := range records {
		scores[records[i].ID()] = Score(&records[i], f)
	}
	sort.SliceStable(records, func(i, j int) bool {
		si, sj := scores[records[i].ID()], scores[records[j].ID()]
		if si != sj {
			return si > sj
		}
		if !records[i].CreatedAt().Equal(records[j].CreatedAt()) {
			return records[i].CreatedAt().After(records[j].CreatedAt())
		}
		return records[i].ID() < records[j].ID()
	})
}

// Tokenize lower-cases text and splits it on non-alphanumeric runes,
// dropping single-character tokens. Duplicates are preserved in order.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokenize(text) {
		set[tok] = true
	}
	return set
}
