package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store reads the catalog and persists quiz sessions.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Questions returns the active questions in order with their answers.
func (s *Store) Questions(ctx context.Context) ([]Question, error) {
	var qs []Question
	if err := s.db.SelectContext(ctx, &qs,
		`SELECT id, question_text, position FROM quiz_questions WHERE is_active ORDER BY position ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("quiz: list questions: %w", err)
	}
	if len(qs) == 0 {
		return nil, nil
	}
	var answers []Answer
	if err := s.db.SelectContext(ctx, &answers,
		`SELECT a.id, a.question_id, a.answer_text, a.position,
		        a.points_beauty, a.points_weight_loss, a.points_energy, a.points_brain,
		        a.points_edema, a.points_stress, a.points_joints
		   FROM quiz_answers a JOIN quiz_questions q ON q.id = a.question_id
		  WHERE q.is_active
		  ORDER BY a.question_id ASC, a.position ASC, a.id ASC`); err != nil {
		return nil, fmt.Errorf("quiz: list answers: %w", err)
	}
	idx := make(map[int64]int, len(qs))
	for i, q := range qs {
		idx[q.ID] = i
	}
	for _, a := range answers {
		if i, ok := idx[a.QuestionID]; ok {
			qs[i].Answers = append(qs[i].Answers, a)
		}
	}
	return qs, nil
}

// Products returns the active products of the given categories.
func (s *Store) Products(ctx context.Context, cats []Category) ([]Product, error) {
	if len(cats) == 0 {
		return nil, nil
	}
	codes := make([]string, 0, len(cats))
	for _, c := range cats {
		codes = append(codes, c.String())
	}
	query, args, err := sqlx.In(
		`SELECT id, name, category, priority, description, dosage FROM quiz_products
		  WHERE is_active AND category IN (?) ORDER BY id ASC`, codes)
	if err != nil {
		return nil, fmt.Errorf("quiz: build products query: %w", err)
	}
	var ps []Product
	if err := s.db.SelectContext(ctx, &ps, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("quiz: list products: %w", err)
	}
	for i := range ps {
		c, err := ParseCategory(ps[i].Code)
		if err != nil {
			return nil, err
		}
		ps[i].Category = c
	}
	return ps, nil
}

type sessionRow struct {
	ID                int64  `db:"id"`
	ClientID          int64  `db:"client_id"`
	CurrentQuestionID *int64 `db:"current_question_id"`
	AnswersData       string `db:"answers_data"`
	IsCompleted       bool   `db:"is_completed"`
}

// Start resets the client's quiz session, creating it on first use.
func (s *Store) Start(ctx context.Context, clientID int64) (Session, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(
		`INSERT INTO quiz_sessions (client_id, current_question_id, answers_data, is_completed) VALUES (?, NULL, '{}', ?)
		 ON CONFLICT (client_id) DO UPDATE SET
		   current_question_id = NULL,
		   answers_data = '{}',
		   is_completed = excluded.is_completed,
		   updated_at = CURRENT_TIMESTAMP
		 RETURNING id`), clientID, false)
	if err != nil {
		return Session{}, fmt.Errorf("quiz: start session: %w", err)
	}
	return Session{ID: id, ClientID: clientID}, nil
}

// Load reads a session by id.
func (s *Store) Load(ctx context.Context, id int64) (Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT id, client_id, current_question_id, answers_data, is_completed FROM quiz_sessions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("quiz: load session: %w", err)
	}
	out := Session{
		ID:                row.ID,
		ClientID:          row.ClientID,
		CurrentQuestionID: row.CurrentQuestionID,
		Completed:         row.IsCompleted,
	}
	if err := json.Unmarshal([]byte(row.AnswersData), &out.Data); err != nil {
		return Session{}, fmt.Errorf("quiz: decode session %d: %w", id, err)
	}
	return out, nil
}

// Save writes the session progress back.
func (s *Store) Save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("quiz: encode session: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE quiz_sessions SET current_question_id = ?, answers_data = ?, is_completed = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ?`), sess.CurrentQuestionID, string(data), sess.Completed, sess.ID)
	if err != nil {
		return fmt.Errorf("quiz: save session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("quiz: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %d: %w", sess.ID, ErrSessionNotFound)
	}
	return nil
}
