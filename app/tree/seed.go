package tree

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/ewaproduct/ewabot/core/logger"
)

// SeedFile is the YAML layout of the content seed.
type SeedFile struct {
	Nodes []SeedNode `yaml:"nodes"`
}

// SeedNode describes one node and its subtree.
type SeedNode struct {
	Label      string          `yaml:"label"`
	Weight     int             `yaml:"weight"`
	Attachment *SeedAttachment `yaml:"attachment"`
	Children   []SeedNode      `yaml:"children"`
}

// SeedAttachment describes node content.
type SeedAttachment struct {
	Kind  string      `yaml:"kind"`
	Text  string      `yaml:"text"`
	Media []SeedMedia `yaml:"media"`
}

// SeedMedia is one file reference, relative to the media root.
type SeedMedia struct {
	Path      string `yaml:"path"`
	Thumbnail string `yaml:"thumbnail"`
}

// Seeder fills an empty tree from a YAML file.
type Seeder struct {
	Path string
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return SeedFile{}, fmt.Errorf("tree seed: %w", err)
	}
	return f, nil
}

// Seed implements the bootstrap seeder hook. Nothing happens when the path
// is empty or the tree already has nodes.
func (s Seeder) Seed(ctx context.Context, db *sqlx.DB) error {
	if s.Path == "" {
		return nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("tree seed: read %s: %w", s.Path, err)
	}
	f, err := ParseSeed(data)
	if err != nil {
		return err
	}
	n, err := Apply(ctx, NewStore(db), f)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.SEED.Info("tree seeded",
			slog.String("event", "seed.tree"),
			slog.String("path", s.Path),
			slog.Int("nodes", n),
		)
	}
	return nil
}

// Apply writes f into an empty tree in one transaction and returns the
// number of created nodes. A non-empty tree is left untouched.
func Apply(ctx context.Context, store *Store, f SeedFile) (int, error) {
	created := 0
	err := store.InTx(ctx, func(tx *Store) error {
		roots, err := tx.Roots(ctx)
		if err != nil {
			return err
		}
		if len(roots) > 0 {
			logger.SEED.Debug("tree seed skipped",
				slog.String("event", "seed.tree"),
				slog.String("status", "skip"),
				slog.Int("roots", len(roots)),
			)
			return nil
		}
		var add func(parent *int64, nodes []SeedNode) error
		add = func(parent *int64, nodes []SeedNode) error {
			for _, sn := range nodes {
				n, err := tx.CreateNode(ctx, parent, sn.Label, sn.Weight)
				if err != nil {
					return fmt.Errorf("tree seed %q: %w", sn.Label, err)
				}
				created++
				if err := seedAttachment(ctx, tx, n, sn.Attachment); err != nil {
					return err
				}
				if err := add(&n.ID, sn.Children); err != nil {
					return err
				}
			}
			return nil
		}
		return add(nil, f.Nodes)
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func seedAttachment(ctx context.Context, tx *Store, n Node, sa *SeedAttachment) error {
	if sa == nil {
		return nil
	}
	kind, err := ParseKind(sa.Kind)
	if err != nil {
		return fmt.Errorf("tree seed %q: %w", n.Label, err)
	}
	a, err := tx.PutAttachment(ctx, n.ID, kind, sa.Text)
	if err != nil {
		return fmt.Errorf("tree seed %q: %w", n.Label, err)
	}
	for _, m := range sa.Media {
		if _, err := tx.AddMediaItem(ctx, a.ID, m.Path, m.Thumbnail); err != nil {
			return fmt.Errorf("tree seed %q: %w", n.Label, err)
		}
	}
	return nil
}
