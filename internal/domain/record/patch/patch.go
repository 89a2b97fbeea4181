// Package patch defines partial context record updates.
package patch

import (
	"fmt"

	"github.com/kontext-io/kontext/internal/domain/record"
)

// Patch is a partial record update. Nil fields are unchanged.
type Patch struct {
	kind           *record.Kind
	title          *string
	description    *string
	content        *string
	tags           []string
	language       *string
	domainCategory *string
	baseScore      *float64
	relatedIDs     []string

	hasTags       bool
	hasRelatedIDs bool
}

// Builder assembles a Patch field by field.
type Builder struct{ p Patch }

// NewBuilder creates an empty patch builder.
func NewBuilder() *Builder { return &Builder{} }

// Kind sets the new kind.
func (b *Builder) Kind(k record.Kind) *Builder { b.p.kind = &k; return b }

// Title sets the new title.
func (b *Builder) Title(t string) *Builder { b.p.title = &t; return b }

// Description sets the new description.
func (b *Builder) Description(d string) *Builder { b.p.description = &d; return b }

// Content sets the new content body.
func (b *Builder) Content(c string) *Builder { b.p.content = &c; return b }

// Tags replaces the tag set. An empty slice clears all tags.
func (b *Builder) Tags(tags []string) *Builder {
	b.p.tags = tags
	b.p.hasTags = true
	return b
}

// Language sets the new language classification.
func (b *Builder) Language(l string) *Builder { b.p.language = &l; return b }

// DomainCategory sets the new domain classification.
func (b *Builder) DomainCategory(c string) *Builder { b.p.domainCategory = &c; return b }

// BaseScore sets the new base score.
func (b *Builder) BaseScore(s float64) *Builder { b.p.baseScore = &s; return b }

// RelatedIDs replaces the related id set.
func (b *Builder) RelatedIDs(ids []string) *Builder {
	b.p.relatedIDs = ids
	b.p.hasRelatedIDs = true
	return b
}

// Build validates and returns the patch. At least one field must be set.
func (b *Builder) Build() (Patch, error) {
	if b.p.IsEmpty() {
		return Patch{}, fmt.Errorf("at least one field must be provided")
	}
	if b.p.content != nil {
		if *b.p.content == "" {
			return Patch{}, fmt.Errorf("content cannot be cleared")
		}
		if len(*b.p.content) > record.MaxContentSize {
			return Patch{}, fmt.Errorf("content too large (max %d bytes)", record.MaxContentSize)
		}
	}
	if b.p.title != nil && *b.p.title == "" {
		return Patch{}, fmt.Errorf("title cannot be cleared")
	}
	if b.p.kind != nil && !b.p.kind.Valid() {
		return Patch{}, fmt.Errorf("unknown kind %q", *b.p.kind)
	}
	if b.p.baseScore != nil && (*b.p.baseScore < 0 || *b.p.baseScore > 1) {
		return Patch{}, fmt.Errorf("base score must be in [0,1], got %v", *b.p.baseScore)
	}
	if b.p.hasTags {
		norm, err := record.NormalizeTags(b.p.tags)
		if err != nil {
			return Patch{}, err
		}
		b.p.tags = norm
	}
	return b.p, nil
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.kind == nil && p.title == nil && p.description == nil &&
		p.content == nil && !p.hasTags && p.language == nil &&
		p.domainCategory == nil && p.baseScore == nil && !p.hasRelatedIDs
}

// Kind returns the new kind, or nil if unchanged.
func (p Patch) Kind() *record.Kind { return p.kind }

// HasTags reports whether the patch replaces the tag set.
func (p Patch) HasTags() bool { return p.hasTags }

// Tags returns the replacement tag set (valid only when HasTags).
func (p Patch) Tags() []string { return p.tags }

// DomainCategory returns the new category, or nil if unchanged.
func (p Patch) DomainCategory() *string { return p.domainCategory }

// Apply merges the patch into rec and returns the updated record.
// UpdatedAt is recomputed by the store, not here.
func (p Patch) Apply(rec record.Record) record.Record {
	kind := rec.Kind()
	if p.kind != nil {
		kind = *p.kind
	}
	title := rec.Title()
	if p.title != nil {
		title = *p.title
	}
	description := rec.Description()
	if p.description != nil {
		description = *p.description
	}
	content := rec.Content()
	if p.content != nil {
		content = *p.content
	}
	tags := rec.Tags()
	if p.hasTags {
		tags = p.tags
	}
	language := rec.Language()
	if p.language != nil {
		language = *p.language
	}
	category := rec.DomainCategory()
	if p.domainCategory != nil {
		category = *p.domainCategory
	}
	baseScore := rec.BaseScore()
	if p.baseScore != nil {
		baseScore = *p.baseScore
	}
	relatedIDs := rec.RelatedIDs()
	if p.hasRelatedIDs {
		relatedIDs = p.relatedIDs
	}

	return record.Reconstruct(
		rec.ID(), kind, title, description, content,
		tags, language, category, baseScore, relatedIDs,
		rec.CreatedAt(), rec.UpdatedAt(),
	)
}
