package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
	"github.com/kontext-io/kontext/internal/store/memory"
	"github.com/kontext-io/kontext/internal/usecase/retrieval"
)

const seedYAML = `contexts:
  - kind: example
    title: Minimal token contract
    content: transfer mint burn
    tags: [token, transfer]
    language: rust
    domain_category: token
    base_score: 0.9

  - kind: security-note
    title: Owner-only endpoints need caller checks
    content: compare the caller against the stored owner
    tags: [access-control, owner]
    domain_category: token
    base_score: 0.95
`

func writeSeedFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeSeedFile(t, dir, "contracts.yaml", seedYAML)
	writeSeedFile(t, dir, "notes.txt", "not a seed file")

	inputs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("got %d inputs, want 2", len(inputs))
	}
	if inputs[0].Kind != record.KindExample || inputs[0].Title != "Minimal token contract" {
		t.Errorf("unexpected first input: %+v", inputs[0])
	}
	if inputs[1].Kind != record.KindSecurityNote || inputs[1].BaseScore != 0.95 {
		t.Errorf("unexpected second input: %+v", inputs[1])
	}
}

func TestLoad_FileOrder(t *testing.T) {
	dir := t.TempDir()
	writeSeedFile(t, dir, "b.yaml", "contexts:\n  - {kind: example, title: from b, content: c}\n")
	writeSeedFile(t, dir, "a.yml", "contexts:\n  - {kind: example, title: from a, content: c}\n")

	inputs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(inputs) != 2 || inputs[0].Title != "from a" || inputs[1].Title != "from b" {
		t.Errorf("inputs not in file-name order: %+v", inputs)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	dir := t.TempDir()
	writeSeedFile(t, dir, "broken.yaml", "contexts: [not: valid: yaml")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestIngest(t *testing.T) {
	dir := t.TempDir()
	writeSeedFile(t, dir, "contracts.yaml", seedYAML)

	store := memory.New(memory.Config{MaxSize: 100, Evict: true, ChunkSize: 10}, zap.NewNop())
	svc := retrieval.New(store, zap.NewNop())

	if err := Ingest(context.Background(), svc, dir, zap.NewNop()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	n, err := svc.Count(context.Background(), filter.Filter{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("store holds %d records, want 2", n)
	}
}

func TestIngest_EmptyDir(t *testing.T) {
	store := memory.New(memory.Config{MaxSize: 10, Evict: true, ChunkSize: 10}, zap.NewNop())
	svc := retrieval.New(store, zap.NewNop())

	if err := Ingest(context.Background(), svc, t.TempDir(), zap.NewNop()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
}
