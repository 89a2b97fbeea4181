package record

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxContentSize is the maximum record content size in bytes.
const MaxContentSize = 163840 // 160KB

// MaxTitleLen is the maximum title length in bytes.
const MaxTitleLen = 256

// Kind is the closed-set category of a context record.
type Kind string

// Recognized record kinds.
const (
	KindExample         Kind = "example"
	KindBestPractice    Kind = "best-practice"
	KindSecurityNote    Kind = "security-note"
	KindOptimization    Kind = "optimization"
	KindDocumentation   Kind = "documentation"
	KindErrorPattern    Kind = "error-pattern"
	KindDeploymentTool  Kind = "deployment-tool"
	KindRuntimeBehavior Kind = "runtime-behavior"
)

// Kinds returns every recognized kind.
func Kinds() []Kind {
	return []Kind{
		KindExample, KindBestPractice, KindSecurityNote, KindOptimization,
		KindDocumentation, KindErrorPattern, KindDeploymentTool, KindRuntimeBehavior,
	}
}

// Valid reports whether k is a recognized kind.
func (k Kind) Valid() bool {
	switch k {
	case KindExample, KindBestPractice, KindSecurityNote, KindOptimization,
		KindDocumentation, KindErrorPattern, KindDeploymentTool, KindRuntimeBehavior:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Record is the context record aggregate (immutable value object).
type Record struct {
	id             string
	kind           Kind
	title          string
	description    string
	content        string
	tags           []string
	language       string
	domainCategory string
	baseScore      float64
	relatedIDs     []string
	createdAt      time.Time
	updatedAt      time.Time
}

// New validates and creates a Record. Timestamps are assigned by the store.
// Tags are normalized (lower-cased, trimmed, deduplicated, sorted); empty tags
// after trimming are rejected rather than dropped silently.
func New(
	id string, kind Kind, title, description, content string,
	tags []string, language, domainCategory string,
	baseScore float64, relatedIDs []string,
) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("record id is required")
	}
	if !kind.Valid() {
		return Record{}, fmt.Errorf("unknown kind %q", kind)
	}
	if title == "" {
		return Record{}, fmt.Errorf("title is required")
	}
	if len(title) > MaxTitleLen {
		return Record{}, fmt.Errorf("title too long (max %d)", MaxTitleLen)
	}
	if content == "" {
		return Record{}, fmt.Errorf("content is required")
	}
	if len(content) > MaxContentSize {
		return Record{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}
	if baseScore < 0 || baseScore > 1 {
		return Record{}, fmt.Errorf("base score must be in [0,1], got %v", baseScore)
	}
	norm, err := NormalizeTags(tags)
	if err != nil {
		return Record{}, err
	}

	return Record{
		id:             id,
		kind:           kind,
		title:          title,
		description:    description,
		content:        content,
		tags:           norm,
		language:       language,
		domainCategory: domainCategory,
		baseScore:      baseScore,
		relatedIDs:     cloneStrings(relatedIDs),
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(
	id string, kind Kind, title, description, content string,
	tags []string, language, domainCategory string,
	baseScore float64, relatedIDs []string,
	createdAt, updatedAt time.Time,
) Record {
	return Record{
		id: id, kind: kind, title: title, description: description,
		content: content, tags: tags, language: language,
		domainCategory: domainCategory, baseScore: baseScore,
		relatedIDs: relatedIDs, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// ID returns the record identifier.
func (r *Record) ID() string { return r.id }

// Kind returns the record category.
func (r *Record) Kind() Kind { return r.kind }

// Title returns the short title.
func (r *Record) Title() string { return r.title }

// Description returns the short description.
func (r *Record) Description() string { return r.description }

// Content returns the text body.
func (r *Record) Content() string { return r.content }

// Tags returns the normalized tag set.
func (r *Record) Tags() []string { return r.tags }

// Language returns the optional language classification.
func (r *Record) Language() string { return r.language }

// DomainCategory returns the optional domain classification (e.g. contract type).
func (r *Record) DomainCategory() string { return r.domainCategory }

// BaseScore returns the author-assigned prior relevance in [0,1].
func (r *Record) BaseScore() float64 { return r.baseScore }

// RelatedIDs returns ids of related records. Entries may dangle after deletes.
func (r *Record) RelatedIDs() []string { return r.relatedIDs }

// CreatedAt returns the creation timestamp.
func (r *Record) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last-update timestamp. Always >= CreatedAt.
func (r *Record) UpdatedAt() time.Time { return r.updatedAt }

// HasTag reports whether the record carries the given normalized tag.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// WithTimestamps returns a copy with the given timestamps set.
func (r Record) WithTimestamps(createdAt, updatedAt time.Time) Record {
	r.createdAt = createdAt
	r.updatedAt = updatedAt
	return r
}

// NormalizeTags lower-cases, trims, deduplicates and sorts tags.
// A tag that is empty after trimming is a validation error.
func NormalizeTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(tags))
	norm := make([]string, 0, len(tags))
	for _, t := range tags {
		n := strings.ToLower(strings.TrimSpace(t))
		if n == "" {
			return nil, fmt.Errorf("empty tag %q", t)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		norm = append(norm, n)
	}
	sort.Strings(norm)
	return norm, nil
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
