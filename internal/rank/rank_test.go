package rank

import (
	"testing"
	"time"

	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
)

func makeRecord(t *testing.T, id string, kind record.Kind, tags []string, category string, baseScore float64, createdAt time.Time) record.Record {
	t.Helper()
	return record.Reconstruct(id, kind, "Token transfer example", "moves balances", "transfer mint burn",
		tags, "rust", category, baseScore, nil, createdAt, createdAt)
}

func TestScore_EmptyFilterUsesBaseScoreOnly(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := makeRecord(t, "a", record.KindExample, []string{"token"}, "token", 0.8, created)

	got := Score(&rec, &filter.Filter{})
	want := weightBase * 0.8
	if got != want {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScore_Monotonic(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := makeRecord(t, "a", record.KindExample, []string{"token"}, "token", 0.5, created)

	steps := []struct {
		name string
		f    filter.Filter
	}{
		{"empty", filter.Filter{}},
		{"matching tag", filter.Filter{Tags: []string{"token"}}},
		{"plus kind", filter.Filter{Tags: []string{"token"}, Kinds: []record.Kind{record.KindExample}}},
		{"plus category", filter.Filter{
			Tags: []string{"token"}, Kinds: []record.Kind{record.KindExample}, DomainCategory: "token",
		}},
		{"plus keywords", filter.Filter{
			Tags: []string{"token"}, Kinds: []record.Kind{record.KindExample},
			DomainCategory: "token", TextQuery: "transfer balances",
		}},
	}

	prev := -1.0
	for _, step := range steps {
		got := Score(&base, &step.f)
		if got < prev {
			t.Errorf("%s: score %v dropped below %v; matches must never lower the score", step.name, got, prev)
		}
		if got < 0 || got > 1 {
			t.Errorf("%s: score %v out of [0,1]", step.name, got)
		}
		prev = got
	}
}

func TestScore_PartialTagOverlap(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := makeRecord(t, "a", record.KindExample, []string{"token", "mint"}, "", 0, created)

	half := Score(&rec, &filter.Filter{Tags: []string{"token", "absent"}})
	full := Score(&rec, &filter.Filter{Tags: []string{"token", "mint"}})

	if half != weightTags*0.5 {
		t.Errorf("half overlap = %v, want %v", half, weightTags*0.5)
	}
	if full != weightTags {
		t.Errorf("full overlap = %v, want %v", full, weightTags)
	}
}

func TestOrder_Deterministic(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	build := func() []record.Record {
		return []record.Record{
			makeRecord(t, "low", record.KindExample, nil, "", 0.1, created),
			makeRecord(t, "high", record.KindExample, nil, "", 0.9, created),
			makeRecord(t, "mid", record.KindExample, nil, "", 0.5, created),
		}
	}

	first := build()
	Order(first, &filter.Filter{})
	second := build()
	Order(second, &filter.Filter{})

	wantIDs := []string{"high", "mid", "low"}
	for i, want := range wantIDs {
		if first[i].ID() != want {
			t.Errorf("first[%d] = %q, want %q", i, first[i].ID(), want)
		}
		if first[i].ID() != second[i].ID() {
			t.Errorf("run mismatch at %d: %q vs %q", i, first[i].ID(), second[i].ID())
		}
	}
}

func TestOrder_TieBreaks(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	recs := []record.Record{
		makeRecord(t, "b", record.KindExample, nil, "", 0.5, older),
		makeRecord(t, "a", record.KindExample, nil, "", 0.5, older),
		makeRecord(t, "c", record.KindExample, nil, "", 0.5, newer),
	}
	Order(recs, &filter.Filter{})

	// Equal scores: newest first, then id ascending.
	wantIDs := []string{"c", "a", "b"}
	for i, want := range wantIDs {
		if recs[i].ID() != want {
			t.Errorf("recs[%d] = %q, want %q", i, recs[i].ID(), want)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Transfer, mint/BURN  x token2!")
	want := []string{"transfer", "mint", "burn", "token2"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
