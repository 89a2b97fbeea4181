// Package seed loads immutable knowledge snippets from YAML files and ingests
// them at process start. The engine only ever reads these files; the store
// works on its own copies.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kontext-io/kontext/internal/domain/record"
	"github.com/kontext-io/kontext/internal/usecase/retrieval"
)

// file is the on-disk shape of one seed file.
type file struct {
	Contexts []entry `yaml:"contexts"`
}

type entry struct {
	Kind           string   `yaml:"kind"`
	Title          string   `yaml:"title"`
	Description    string   `yaml:"description"`
	Content        string   `yaml:"content"`
	Tags           []string `yaml:"tags"`
	Language       string   `yaml:"language"`
	DomainCategory string   `yaml:"domain_category"`
	BaseScore      float64  `yaml:"base_score"`
}

// Load reads every *.yaml/*.yml file in dir, in name order.
func Load(dir string) ([]retrieval.CreateInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read seed dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var inputs []retrieval.CreateInput
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read seed file %s: %w", path, err)
		}
		var f file
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse seed file %s: %w", path, err)
		}
		for _, e := range f.Contexts {
			inputs = append(inputs, retrieval.CreateInput{
				Kind:           record.Kind(e.Kind),
				Title:          e.Title,
				Description:    e.Description,
				Content:        e.Content,
				Tags:           e.Tags,
				Language:       e.Language,
				DomainCategory: e.DomainCategory,
				BaseScore:      e.BaseScore,
			})
		}
	}
	return inputs, nil
}

// Ingest loads the seed directory and batch-creates every snippet.
func Ingest(ctx context.Context, svc *retrieval.Service, dir string, logger *zap.Logger) error {
	inputs, err := Load(dir)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		logger.Info("no seed contexts found", zap.String("dir", dir))
		return nil
	}

	ids, err := svc.BatchCreate(ctx, inputs)
	if err != nil {
		return fmt.Errorf("ingest seed contexts: %w", err)
	}
	logger.Info("seed contexts ingested",
		zap.String("dir", dir),
		zap.Int("count", len(ids)),
	)
	return nil
}
