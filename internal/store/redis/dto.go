package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kontext-io/kontext/internal/domain/record"
)

// recordDTO is the JSON value stored under the record key. Field set must
// round-trip every record attribute exactly.
type recordDTO struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Content        string    `json:"content"`
	Tags           []string  `json:"tags,omitempty"`
	Language       string    `json:"language,omitempty"`
	DomainCategory string    `json:"domain_category,omitempty"`
	BaseScore      float64   `json:"base_score"`
	RelatedIDs     []string  `json:"related_ids,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func marshalRecord(rec *record.Record) ([]byte, error) {
	dto := recordDTO{
		ID:             rec.ID(),
		Kind:           rec.Kind().String(),
		Title:          rec.Title(),
		Description:    rec.Description(),
		Content:        rec.Content(),
		Tags:           rec.Tags(),
		Language:       rec.Language(),
		DomainCategory: rec.DomainCategory(),
		BaseScore:      rec.BaseScore(),
		RelatedIDs:     rec.RelatedIDs(),
		CreatedAt:      rec.CreatedAt(),
		UpdatedAt:      rec.UpdatedAt(),
	}
	data, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", rec.ID(), err)
	}
	return data, nil
}

func unmarshalRecord(data []byte) (record.Record, error) {
	var dto recordDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return record.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return record.Reconstruct(
		dto.ID, record.Kind(dto.Kind), dto.Title, dto.Description, dto.Content,
		dto.Tags, dto.Language, dto.DomainCategory, dto.BaseScore, dto.RelatedIDs,
		dto.CreatedAt, dto.UpdatedAt,
	), nil
}
