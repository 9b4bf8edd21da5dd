package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ewaproduct/ewabot/core/logger"
)

// seedWorkers bounds concurrent embedding requests while seeding.
const seedWorkers = 4

type seedFile struct {
	Knowledge []string `yaml:"knowledge"`
}

// Seeder embeds the knowledge section of the seed file into an empty knowledge base.
type Seeder struct {
	Path     string
	Embedder Embedder
}

func (s Seeder) Seed(ctx context.Context, db *sqlx.DB) error {
	if s.Path == "" || s.Embedder == nil {
		return nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("knowledge seed: read %s: %w", s.Path, err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("knowledge seed: %w", err)
	}
	n, err := Load(ctx, NewKnowledge(db), s.Embedder, f.Knowledge)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.SEED.Info("knowledge seeded",
			slog.String("event", "seed.knowledge"),
			slog.Int("chunks", n),
		)
	}
	return nil
}

// Load embeds and stores texts unless the knowledge base already has chunks.
func Load(ctx context.Context, k *Knowledge, e Embedder, texts []string) (int, error) {
	if len(texts) == 0 {
		return 0, nil
	}
	existing, err := k.Count(ctx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		logger.SEED.Debug("knowledge seed skipped",
			slog.String("event", "seed.knowledge"),
			slog.String("status", "skip"),
			slog.Int("chunks", existing),
		)
		return 0, nil
	}
	vecs := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedWorkers)
	for i, t := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gctx, t)
			if err != nil {
				return fmt.Errorf("knowledge seed chunk %d: %w", i+1, err)
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	// Inserted in file order so chunk ids follow the seed.
	for i, t := range texts {
		if _, err := k.Add(ctx, t, vecs[i]); err != nil {
			return i, err
		}
	}
	return len(texts), nil
}
