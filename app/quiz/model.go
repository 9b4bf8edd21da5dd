// Package quiz runs the supplement selection test: the user picks goals,
// answers scored questions and receives ranked product recommendations.
package quiz

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("quiz: session not found")
	ErrUnknownCategory = errors.New("quiz: unknown category")
)

// Category is one of the seven goals a user can choose.
type Category int

const (
	Beauty Category = iota + 1
	Edema
	WeightLoss
	Brain
	Energy
	Stress
	Joints
)

// Categories lists every category in goal number order.
var Categories = []Category{Beauty, Edema, WeightLoss, Brain, Energy, Stress, Joints}

var categoryCodes = map[Category]string{
	Beauty:     "beauty",
	Edema:      "edema",
	WeightLoss: "weight_loss",
	Brain:      "brain",
	Energy:     "energy",
	Stress:     "stress",
	Joints:     "joints",
}

// GoalCategory maps the goal number shown to the user (1..7) to a category.
func GoalCategory(n int) (Category, bool) {
	if n < 1 || n > len(Categories) {
		return 0, false
	}
	return Categories[n-1], true
}

// ParseCategory resolves a stored category code.
func ParseCategory(code string) (Category, error) {
	for c, s := range categoryCodes {
		if s == code {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", code, ErrUnknownCategory)
}

func (c Category) String() string {
	if s, ok := categoryCodes[c]; ok {
		return s
	}
	return fmt.Sprintf("category(%d)", int(c))
}

func (c Category) MarshalText() ([]byte, error) {
	s, ok := categoryCodes[c]
	if !ok {
		return nil, fmt.Errorf("%d: %w", int(c), ErrUnknownCategory)
	}
	return []byte(s), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Points holds the per-category score deltas of an answer.
type Points struct {
	Beauty     int `db:"points_beauty" yaml:"beauty"`
	WeightLoss int `db:"points_weight_loss" yaml:"weight_loss"`
	Energy     int `db:"points_energy" yaml:"energy"`
	Brain      int `db:"points_brain" yaml:"brain"`
	Edema      int `db:"points_edema" yaml:"edema"`
	Stress     int `db:"points_stress" yaml:"stress"`
	Joints     int `db:"points_joints" yaml:"joints"`
}

// For returns the delta for c.
func (p Points) For(c Category) int {
	switch c {
	case Beauty:
		return p.Beauty
	case WeightLoss:
		return p.WeightLoss
	case Energy:
		return p.Energy
	case Brain:
		return p.Brain
	case Edema:
		return p.Edema
	case Stress:
		return p.Stress
	case Joints:
		return p.Joints
	}
	return 0
}

// Question is an active catalog question with its answers in order.
type Question struct {
	ID       int64  `db:"id"`
	Text     string `db:"question_text"`
	Position int    `db:"position"`
	Answers  []Answer
}

// Answer is one option of a question.
type Answer struct {
	ID         int64  `db:"id"`
	QuestionID int64  `db:"question_id"`
	Text       string `db:"answer_text"`
	Position   int    `db:"position"`
	Points
}

// Tier is the product priority.
type Tier string

const (
	Primary   Tier = "primary"
	Secondary Tier = "secondary"
)

func (t Tier) weight() int {
	if t == Primary {
		return 2
	}
	return 1
}

// Product is a recommendable supplement.
type Product struct {
	ID          int64    `db:"id"`
	Name        string   `db:"name"`
	Category    Category `db:"-"`
	Code        string   `db:"category"`
	Tier        Tier     `db:"priority"`
	Description string   `db:"description"`
	Dosage      string   `db:"dosage"`
}

// ProductInfo is the part of a product kept in the session after results.
type ProductInfo struct {
	Dosage      string   `json:"dosage"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
}

// Data is the JSON document stored in quiz_sessions.answers_data.
type Data struct {
	Goals   []Category             `json:"goals"`
	Answers map[int64]int64        `json:"answers,omitempty"`
	Scores  map[Category]int       `json:"scores,omitempty"`
	Primary []string               `json:"primary_products,omitempty"`
	Bonus   []string               `json:"bonus_products,omitempty"`
	Details map[string]ProductInfo `json:"product_details,omitempty"`
}

// Session is the quiz progress of one client.
type Session struct {
	ID                int64
	ClientID          int64
	CurrentQuestionID *int64
	Data              Data
	Completed         bool
}
