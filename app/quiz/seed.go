package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/ewaproduct/ewabot/core/logger"
)

// SeedFile is the quiz part of the content seed.
type SeedFile struct {
	Quiz SeedCatalog `yaml:"quiz"`
}

type SeedCatalog struct {
	Questions []SeedQuestion `yaml:"questions"`
	Products  []SeedProduct  `yaml:"products"`
}

type SeedQuestion struct {
	Text    string       `yaml:"text"`
	Answers []SeedAnswer `yaml:"answers"`
}

type SeedAnswer struct {
	Text   string `yaml:"text"`
	Points Points `yaml:"points"`
}

type SeedProduct struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Priority    string `yaml:"priority"`
	Description string `yaml:"description"`
	Dosage      string `yaml:"dosage"`
}

// Seeder loads the catalog from the seed file when the catalog is empty.
type Seeder struct {
	Path string
}

func (s Seeder) Seed(ctx context.Context, db *sqlx.DB) error {
	if s.Path == "" {
		return nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("quiz seed: read %s: %w", s.Path, err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("quiz seed: %w", err)
	}
	q, p, err := Apply(ctx, db, f.Quiz)
	if err != nil {
		return err
	}
	if q+p > 0 {
		logger.SEED.Info("quiz seeded",
			slog.String("event", "seed.quiz"),
			slog.String("path", s.Path),
			slog.Int("questions", q),
			slog.Int("products", p),
		)
	}
	return nil
}

// Apply inserts the catalog in one transaction unless questions already exist.
// It returns the number of questions and products written.
func Apply(ctx context.Context, db *sqlx.DB, c SeedCatalog) (questions, products int, err error) {
	for _, p := range c.Products {
		if _, err := ParseCategory(p.Category); err != nil {
			return 0, 0, fmt.Errorf("quiz seed product %q: %w", p.Name, err)
		}
		if t := Tier(p.Priority); t != "" && t != Primary && t != Secondary {
			return 0, 0, fmt.Errorf("quiz seed product %q: unknown priority %q", p.Name, p.Priority)
		}
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("quiz seed: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM quiz_questions`); err != nil {
		return 0, 0, fmt.Errorf("quiz seed: count: %w", err)
	}
	if existing > 0 {
		logger.SEED.Debug("quiz seed skipped",
			slog.String("event", "seed.quiz"),
			slog.String("status", "skip"),
			slog.Int("questions", existing),
		)
		return 0, 0, nil
	}

	for i, sq := range c.Questions {
		var qid int64
		if err := tx.GetContext(ctx, &qid, tx.Rebind(
			`INSERT INTO quiz_questions (question_text, position, is_active) VALUES (?, ?, ?) RETURNING id`),
			sq.Text, i+1, true); err != nil {
			return 0, 0, fmt.Errorf("quiz seed question %d: %w", i+1, err)
		}
		for j, a := range sq.Answers {
			if _, err := tx.ExecContext(ctx, tx.Rebind(
				`INSERT INTO quiz_answers (question_id, answer_text, position,
				   points_beauty, points_weight_loss, points_energy, points_brain,
				   points_edema, points_stress, points_joints)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				qid, a.Text, j+1,
				a.Points.Beauty, a.Points.WeightLoss, a.Points.Energy, a.Points.Brain,
				a.Points.Edema, a.Points.Stress, a.Points.Joints); err != nil {
				return 0, 0, fmt.Errorf("quiz seed answer %q: %w", a.Text, err)
			}
		}
	}
	for _, p := range c.Products {
		tier := Tier(p.Priority)
		if tier == "" {
			tier = Secondary
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO quiz_products (name, category, priority, description, dosage, is_active)
			 VALUES (?, ?, ?, ?, ?, ?)`),
			p.Name, p.Category, string(tier), p.Description, p.Dosage, true); err != nil {
			return 0, 0, fmt.Errorf("quiz seed product %q: %w", p.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("quiz seed: commit: %w", err)
	}
	return len(c.Questions), len(c.Products), nil
}
