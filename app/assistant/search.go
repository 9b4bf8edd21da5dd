package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	coredatabase "github.com/ewaproduct/ewabot/core/database"
)

// Chunk is a piece of the knowledge base.
type Chunk struct {
	ID   int64  `db:"id"`
	Text string `db:"raw_text"`
	// Distance is the cosine distance to the query, smaller is closer.
	Distance float64 `db:"distance"`
}

// Searcher finds the chunks closest to a query vector.
type Searcher interface {
	Search(ctx context.Context, vec []float32, k int) ([]Chunk, error)
}

// Knowledge stores chunks and searches them. PostgreSQL uses pgvector;
// SQLite keeps vectors as JSON and scans them in process.
type Knowledge struct {
	db *sqlx.DB
}

func NewKnowledge(db *sqlx.DB) *Knowledge {
	return &Knowledge{db: db}
}

func (k *Knowledge) pgvector() bool {
	return k.db.DriverName() == coredatabase.DriverPostgres
}

// Add stores one chunk with its embedding.
func (k *Knowledge) Add(ctx context.Context, text string, vec []float32) (int64, error) {
	query := `INSERT INTO knowledge_chunks (raw_text, embedding) VALUES (?, ?) RETURNING id`
	if k.pgvector() {
		query = `INSERT INTO knowledge_chunks (raw_text, embedding) VALUES (?, ?::vector) RETURNING id`
	}
	var id int64
	if err := k.db.GetContext(ctx, &id, k.db.Rebind(query), text, vectorLiteral(vec)); err != nil {
		return 0, fmt.Errorf("knowledge: add chunk: %w", err)
	}
	return id, nil
}

// Count returns the number of stored chunks.
func (k *Knowledge) Count(ctx context.Context) (int, error) {
	var n int
	if err := k.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM knowledge_chunks`); err != nil {
		return 0, fmt.Errorf("knowledge: count: %w", err)
	}
	return n, nil
}

// Search returns up to n chunks ordered by cosine distance.
func (k *Knowledge) Search(ctx context.Context, vec []float32, n int) ([]Chunk, error) {
	if n <= 0 {
		return nil, nil
	}
	if k.pgvector() {
		var out []Chunk
		err := k.db.SelectContext(ctx, &out, k.db.Rebind(
			`SELECT id, raw_text, embedding <=> ?::vector AS distance
			   FROM knowledge_chunks ORDER BY distance ASC LIMIT ?`), vectorLiteral(vec), n)
		if err != nil {
			return nil, fmt.Errorf("knowledge: search: %w", err)
		}
		return out, nil
	}

	var rows []struct {
		ID        int64  `db:"id"`
		Text      string `db:"raw_text"`
		Embedding string `db:"embedding"`
	}
	if err := k.db.SelectContext(ctx, &rows, `SELECT id, raw_text, embedding FROM knowledge_chunks`); err != nil {
		return nil, fmt.Errorf("knowledge: search: %w", err)
	}
	out := make([]Chunk, 0, len(rows))
	for _, r := range rows {
		var stored []float32
		if err := json.Unmarshal([]byte(r.Embedding), &stored); err != nil {
			return nil, fmt.Errorf("knowledge: chunk %d: %w", r.ID, err)
		}
		out = append(out, Chunk{ID: r.ID, Text: r.Text, Distance: CosineDistance(vec, stored)})
	}
	slices.SortStableFunc(out, func(a, b Chunk) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// CosineDistance is 1 - cos(a, b). Vectors of different length or zero
// norm are as far apart as possible.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// vectorLiteral renders "[1,2.5,3]", which pgvector parses and which is
// also valid JSON.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
