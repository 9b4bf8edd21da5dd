package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/logger"
)

// ErrStateLost means the stored session no longer matches the conversation,
// e.g. the current question was removed from the catalog.
var ErrStateLost = errors.New("quiz: session state lost")

const (
	maxGoals    = 3
	primarySize = 3
	resultSize  = 6
)

var goalsPattern = regexp.MustCompile(`^\s*[1-7](\s*,\s*[1-7]){0,2}\s*$`)

// Stage is the conversation step the user is at after a reply.
type Stage int

const (
	StageGoals Stage = iota + 1
	StageAnswering
	StageResults
	// StageExit hands the user back to the main menu.
	StageExit
)

func (s Stage) String() string {
	switch s {
	case StageGoals:
		return "goals"
	case StageAnswering:
		return "answering"
	case StageResults:
		return "results"
	case StageExit:
		return "exit"
	}
	return "unknown"
}

// Reply is what the engine wants shown to the user. The keyboard goes with the last message.
type Reply struct {
	Stage    Stage
	Messages []string
	Buttons  [][]string
}

// Catalog is the read side of the quiz content.
type Catalog interface {
	Questions(ctx context.Context) ([]Question, error)
	Products(ctx context.Context, cats []Category) ([]Product, error)
}

// Sessions persists quiz progress.
type Sessions interface {
	Start(ctx context.Context, clientID int64) (Session, error)
	Load(ctx context.Context, id int64) (Session, error)
	Save(ctx context.Context, sess Session) error
}

// Engine drives one quiz conversation step at a time.
type Engine struct {
	catalog  Catalog
	sessions Sessions
	loc      locale.Localizer
}

func NewEngine(c Catalog, s Sessions, loc locale.Localizer) *Engine {
	return &Engine{catalog: c, sessions: s, loc: loc}
}

// Start resets the client's quiz and asks for goals.
func (e *Engine) Start(ctx context.Context, clientID int64) (int64, Reply, error) {
	sess, err := e.sessions.Start(ctx, clientID)
	if err != nil {
		return 0, Reply{}, err
	}
	logger.Info(ctx, logger.CompQuiz, "quiz.start",
		slog.Int64("client_id", clientID),
		slog.Int64("session_id", sess.ID),
	)
	return sess.ID, Reply{
		Stage: StageGoals,
		Messages: []string{
			e.loc.MustLocalize(locale.QuizWelcome),
			e.loc.MustLocalize(locale.QuizGoalsPrompt),
		},
		Buttons: e.goalButtons(),
	}, nil
}

// SubmitGoals validates the goal list and asks the first question.
func (e *Engine) SubmitGoals(ctx context.Context, sessionID int64, text string) (Reply, error) {
	goals, msgID := ParseGoals(text)
	if msgID != "" {
		return Reply{Stage: StageGoals, Messages: []string{e.loc.MustLocalize(msgID)}, Buttons: e.goalButtons()}, nil
	}
	sess, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	qs, err := e.catalog.Questions(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(qs) == 0 {
		logger.Warn(ctx, logger.CompQuiz, "quiz.no_questions", slog.Int64("session_id", sessionID))
		return Reply{Stage: StageExit, Messages: []string{e.loc.MustLocalize(locale.QuizUnavailable)}}, nil
	}
	sess.Data = Data{Goals: goals, Answers: map[int64]int64{}}
	sess.Completed = false
	sess.CurrentQuestionID = &qs[0].ID
	if err := e.sessions.Save(ctx, sess); err != nil {
		return Reply{}, err
	}
	logger.Info(ctx, logger.CompQuiz, "quiz.goals",
		slog.Int64("session_id", sessionID),
		slog.String("goals", joinCategories(goals)),
	)
	return e.ask(qs[0]), nil
}

// Answer records the option chosen for the current question.
func (e *Engine) Answer(ctx context.Context, sessionID int64, text string) (Reply, error) {
	sess, qs, idx, err := e.position(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	q := qs[idx]
	text = strings.TrimSpace(text)
	i := slices.IndexFunc(q.Answers, func(a Answer) bool { return a.Text == text })
	if i < 0 {
		r := e.ask(q)
		r.Messages = []string{e.loc.MustLocalize(locale.QuizChooseOption)}
		return r, nil
	}
	if sess.Data.Answers == nil {
		sess.Data.Answers = map[int64]int64{}
	}
	sess.Data.Answers[q.ID] = q.Answers[i].ID
	if idx+1 < len(qs) {
		next := qs[idx+1]
		sess.CurrentQuestionID = &next.ID
		if err := e.sessions.Save(ctx, sess); err != nil {
			return Reply{}, err
		}
		return e.ask(next), nil
	}
	return e.finish(ctx, sess, qs)
}

// Back unwinds one step from stage.
func (e *Engine) Back(ctx context.Context, sessionID int64, stage Stage) (Reply, error) {
	if stage != StageAnswering {
		return Reply{Stage: StageExit}, nil
	}
	sess, qs, idx, err := e.position(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	if idx == 0 {
		sess.CurrentQuestionID = nil
		sess.Data = Data{}
		if err := e.sessions.Save(ctx, sess); err != nil {
			return Reply{}, err
		}
		return Reply{
			Stage:    StageGoals,
			Messages: []string{e.loc.MustLocalize(locale.QuizGoalsPrompt)},
			Buttons:  e.goalButtons(),
		}, nil
	}
	prev := qs[idx-1]
	delete(sess.Data.Answers, prev.ID)
	sess.CurrentQuestionID = &prev.ID
	if err := e.sessions.Save(ctx, sess); err != nil {
		return Reply{}, err
	}
	return e.ask(prev), nil
}

// Bonus shows the second trio of a completed quiz.
func (e *Engine) Bonus(ctx context.Context, sessionID int64) (Reply, error) {
	sess, err := e.completed(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	d := sess.Data
	if len(d.Bonus) == 0 {
		return e.results(e.loc.MustLocalize(locale.QuizBonusEmpty)), nil
	}
	return e.results(e.loc.MustLocalizeWithTemplate(locale.QuizBonus,
		numbered(d.Bonus),
		dosageLines(d.Bonus, d.Details),
		strconv.Itoa(len(d.Primary)+len(d.Bonus)),
	)), nil
}

// Full lists every recommended product with its dosage.
func (e *Engine) Full(ctx context.Context, sessionID int64) (Reply, error) {
	sess, err := e.completed(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	d := sess.Data
	if len(d.Primary) == 0 {
		return e.results(e.loc.MustLocalize(locale.QuizResultsEmpty)), nil
	}
	bonus := dosageLines(d.Bonus, d.Details)
	if bonus == "" {
		bonus = e.loc.MustLocalize(locale.QuizFullBonusEmpty)
	}
	return e.results(e.loc.MustLocalizeWithTemplate(locale.QuizFull,
		strconv.Itoa(len(d.Primary)+len(d.Bonus)),
		dosageLines(d.Primary, d.Details),
		bonus,
	)), nil
}

func (e *Engine) finish(ctx context.Context, sess Session, qs []Question) (Reply, error) {
	scores := Score(sess.Data.Goals, chosenAnswers(qs, sess.Data.Answers))
	order := RankGoals(sess.Data.Goals, scores)
	products, err := e.catalog.Products(ctx, order)
	if err != nil {
		return Reply{}, err
	}
	top := Rank(products, scores)
	if len(top) > resultSize {
		top = top[:resultSize]
	}
	primary, bonus := top[:min(primarySize, len(top))], top[min(primarySize, len(top)):]

	sess.Data.Scores = scores
	sess.Data.Primary = names(primary)
	sess.Data.Bonus = names(bonus)
	sess.Data.Details = make(map[string]ProductInfo, len(top))
	for _, p := range top {
		sess.Data.Details[p.Name] = ProductInfo{Dosage: p.Dosage, Description: p.Description, Category: p.Category}
	}
	sess.CurrentQuestionID = nil
	sess.Completed = true
	if err := e.sessions.Save(ctx, sess); err != nil {
		return Reply{}, err
	}
	logger.Info(ctx, logger.CompQuiz, "quiz.result",
		slog.Int64("session_id", sess.ID),
		slog.String("top", joinCategories(order)),
		slog.Int("primary", len(primary)),
		slog.Int("bonus", len(bonus)),
	)
	if len(primary) == 0 {
		return e.results(e.loc.MustLocalize(locale.QuizResultsEmpty)), nil
	}
	return e.results(e.loc.MustLocalizeWithTemplate(locale.QuizResults,
		numbered(sess.Data.Primary),
		dosageLines(sess.Data.Primary, sess.Data.Details),
	)), nil
}

// position loads the session and locates its current question.
func (e *Engine) position(ctx context.Context, sessionID int64) (Session, []Question, int, error) {
	sess, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return Session{}, nil, 0, err
	}
	if sess.CurrentQuestionID == nil {
		return Session{}, nil, 0, fmt.Errorf("session %d has no current question: %w", sessionID, ErrStateLost)
	}
	qs, err := e.catalog.Questions(ctx)
	if err != nil {
		return Session{}, nil, 0, err
	}
	idx := slices.IndexFunc(qs, func(q Question) bool { return q.ID == *sess.CurrentQuestionID })
	if idx < 0 {
		return Session{}, nil, 0, fmt.Errorf("question %d is gone: %w", *sess.CurrentQuestionID, ErrStateLost)
	}
	return sess, qs, idx, nil
}

func (e *Engine) completed(ctx context.Context, sessionID int64) (Session, error) {
	sess, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if !sess.Completed {
		return Session{}, fmt.Errorf("session %d is not completed: %w", sessionID, ErrStateLost)
	}
	return sess, nil
}

func (e *Engine) ask(q Question) Reply {
	rows := make([][]string, 0, len(q.Answers)+1)
	for _, a := range q.Answers {
		rows = append(rows, []string{a.Text})
	}
	rows = append(rows, []string{e.loc.MustLocalize(locale.ButtonBack)})
	return Reply{Stage: StageAnswering, Messages: []string{q.Text}, Buttons: rows}
}

func (e *Engine) results(text string) Reply {
	return Reply{
		Stage:    StageResults,
		Messages: []string{text},
		Buttons: [][]string{
			{e.loc.MustLocalize(locale.QuizBonusButton), e.loc.MustLocalize(locale.QuizFullButton)},
			{e.loc.MustLocalize(locale.ButtonBack)},
		},
	}
}

func (e *Engine) goalButtons() [][]string {
	return [][]string{
		{"1,3,5", "2,4,6"},
		{"1,2,3", "4,5,6"},
		{"7", "1,4,7"},
		{e.loc.MustLocalize(locale.ButtonBack)},
	}
}

// ParseGoals turns "1, 3" into categories. On bad input it returns the id of
// the message explaining the problem.
func ParseGoals(text string) ([]Category, string) {
	parts := strings.Split(text, ",")
	filled := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			filled++
		}
	}
	if filled > maxGoals {
		return nil, locale.QuizTooManyGoals
	}
	if !goalsPattern.MatchString(text) {
		return nil, locale.QuizInvalidGoals
	}
	goals := make([]Category, 0, len(parts))
	for _, p := range parts {
		n, _ := strconv.Atoi(strings.TrimSpace(p))
		c, _ := GoalCategory(n)
		if slices.Contains(goals, c) {
			return nil, locale.QuizInvalidGoals
		}
		goals = append(goals, c)
	}
	return goals, ""
}

// Score sums the answer points of every goal category. Categories that are
// not goals are ignored.
func Score(goals []Category, answers []Answer) map[Category]int {
	scores := make(map[Category]int, len(goals))
	for _, g := range goals {
		scores[g] = 0
	}
	for _, a := range answers {
		for _, g := range goals {
			scores[g] += a.Points.For(g)
		}
	}
	return scores
}

// RankGoals orders goals by score, highest first. Ties keep the order the user gave.
func RankGoals(goals []Category, scores map[Category]int) []Category {
	out := slices.Clone(goals)
	slices.SortStableFunc(out, func(a, b Category) int { return scores[b] - scores[a] })
	return out
}

// Rank orders products by category score, then tier, then catalog id.
func Rank(products []Product, scores map[Category]int) []Product {
	out := slices.Clone(products)
	slices.SortStableFunc(out, func(a, b Product) int {
		if d := scores[b.Category] - scores[a.Category]; d != 0 {
			return d
		}
		if d := b.Tier.weight() - a.Tier.weight(); d != 0 {
			return d
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func chosenAnswers(qs []Question, picked map[int64]int64) []Answer {
	var out []Answer
	for _, q := range qs {
		id, ok := picked[q.ID]
		if !ok {
			continue
		}
		for _, a := range q.Answers {
			if a.ID == id {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

func names(ps []Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func numbered(names []string) string {
	return strings.Join(lo.Map(names, func(n string, i int) string {
		return fmt.Sprintf("%d. %s", i+1, n)
	}), "\n")
}

func dosageLines(names []string, details map[string]ProductInfo) string {
	return strings.Join(lo.Map(names, func(n string, _ int) string {
		return fmt.Sprintf("• %s - %s", n, details[n].Dosage)
	}), "\n")
}

func joinCategories(cs []Category) string {
	return strings.Join(lo.Map(cs, func(c Category, _ int) string { return c.String() }), ",")
}
