package quiz

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewaproduct/ewabot/app/session"
	"github.com/ewaproduct/ewabot/core/database/dbtest"
	"github.com/ewaproduct/ewabot/core/locale"
)

const back = "⬅️ Назад"

func twoQuestions() SeedCatalog {
	return SeedCatalog{
		Questions: []SeedQuestion{
			{Text: "Как ты спишь?", Answers: []SeedAnswer{
				{Text: "Плохо", Points: Points{Beauty: 3, WeightLoss: 1}},
				{Text: "Хорошо", Points: Points{WeightLoss: 2, Energy: 5}},
			}},
			{Text: "Сколько пьёшь воды?", Answers: []SeedAnswer{
				{Text: "Мало", Points: Points{Beauty: 2}},
				{Text: "Много", Points: Points{WeightLoss: 3}},
			}},
		},
		Products: []SeedProduct{
			{Name: "Коллаген", Category: "beauty", Priority: "primary", Dosage: "1 раз в день"},
			{Name: "Жиросжигатель", Category: "weight_loss", Priority: "primary", Dosage: "2 капсулы"},
			{Name: "Биотин", Category: "beauty", Priority: "secondary", Dosage: "1 таблетка"},
			{Name: "Клетчатка", Category: "weight_loss", Priority: "secondary", Dosage: "1 ложка"},
			{Name: "Омега", Category: "brain", Priority: "primary", Dosage: "3 капсулы"},
		},
	}
}

type fixture struct {
	engine *Engine
	store  *Store
	client int64
}

func newFixture(t *testing.T, c SeedCatalog) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	ctx := context.Background()
	_, _, err := Apply(ctx, db, c)
	require.NoError(t, err)
	cl, err := session.NewStore(db).EnsureClient(ctx, 77, session.Profile{FirstName: "Ива"})
	require.NoError(t, err)
	store := NewStore(db)
	return &fixture{engine: NewEngine(store, store, locale.MustNew(locale.Ru)), store: store, client: cl.ID}
}

func TestParseGoals(t *testing.T) {
	cases := []struct {
		in    string
		goals []Category
		msg   string
	}{
		{"1,3", []Category{Beauty, WeightLoss}, ""},
		{" 7 ", []Category{Joints}, ""},
		{"2 , 4,6", []Category{Edema, Brain, Stress}, ""},
		{"1,2,3,4", nil, locale.QuizTooManyGoals},
		{"1,1", nil, locale.QuizInvalidGoals},
		{"8", nil, locale.QuizInvalidGoals},
		{"один", nil, locale.QuizInvalidGoals},
		{"", nil, locale.QuizInvalidGoals},
		{"1;3", nil, locale.QuizInvalidGoals},
	}
	for _, tc := range cases {
		goals, msg := ParseGoals(tc.in)
		assert.Equal(t, tc.goals, goals, tc.in)
		assert.Equal(t, tc.msg, msg, tc.in)
	}
}

func TestGoalsOneThreeRanksFirstCategoryAbove(t *testing.T) {
	f := newFixture(t, twoQuestions())
	ctx := context.Background()

	id, r, err := f.engine.Start(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, StageGoals, r.Stage)
	require.Len(t, r.Messages, 2)

	r, err = f.engine.SubmitGoals(ctx, id, "1,3")
	require.NoError(t, err)
	assert.Equal(t, StageAnswering, r.Stage)
	assert.Equal(t, []string{"Как ты спишь?"}, r.Messages)
	assert.Equal(t, [][]string{{"Плохо"}, {"Хорошо"}, {back}}, r.Buttons)

	r, err = f.engine.Answer(ctx, id, "Плохо")
	require.NoError(t, err)
	assert.Equal(t, []string{"Сколько пьёшь воды?"}, r.Messages)

	r, err = f.engine.Answer(ctx, id, "Мало")
	require.NoError(t, err)
	assert.Equal(t, StageResults, r.Stage)

	sess, err := f.store.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, sess.Completed)
	assert.Nil(t, sess.CurrentQuestionID)
	assert.Equal(t, map[Category]int{Beauty: 5, WeightLoss: 1}, sess.Data.Scores)
	assert.Equal(t, []string{"Коллаген", "Биотин", "Жиросжигатель"}, sess.Data.Primary)
	assert.Equal(t, []string{"Клетчатка"}, sess.Data.Bonus)
	assert.Equal(t, Beauty, sess.Data.Details["Биотин"].Category)

	text := r.Messages[0]
	assert.Contains(t, text, "1. Коллаген\n2. Биотин\n3. Жиросжигатель")
	assert.Contains(t, text, "• Коллаген - 1 раз в день")
	assert.NotContains(t, text, "Омега")
	assert.Equal(t, [][]string{{"Давай!", "Хочу рекомендации"}, {back}}, r.Buttons)

	r, err = f.engine.Bonus(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, r.Messages[0], "1. Клетчатка")
	assert.Contains(t, r.Messages[0], "всех 4 продуктов")

	r, err = f.engine.Full(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, r.Messages[0], "(4 продуктов)")
	assert.Contains(t, r.Messages[0], "• Жиросжигатель - 2 капсулы")
	assert.Contains(t, r.Messages[0], "• Клетчатка - 1 ложка")
}

func TestSparseCatalogDegrades(t *testing.T) {
	c := twoQuestions()
	c.Products = []SeedProduct{{Name: "Магний", Category: "stress", Dosage: "вечером"}}
	f := newFixture(t, c)
	ctx := context.Background()

	id, _, err := f.engine.Start(ctx, f.client)
	require.NoError(t, err)
	_, err = f.engine.SubmitGoals(ctx, id, "6")
	require.NoError(t, err)
	_, err = f.engine.Answer(ctx, id, "Хорошо")
	require.NoError(t, err)
	r, err := f.engine.Answer(ctx, id, "Много")
	require.NoError(t, err)
	assert.Equal(t, StageResults, r.Stage)
	assert.Contains(t, r.Messages[0], "1. Магний")
	assert.NotContains(t, r.Messages[0], "2.")

	r, err = f.engine.Bonus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Бонусных продуктов для тебя пока нет.", r.Messages[0])

	r, err = f.engine.Full(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, r.Messages[0], "• Магний - вечером")
	assert.Contains(t, r.Messages[0], "🎁 Бонусные продукты:\n—")
}

func TestEmptyCatalogReportsNothingFound(t *testing.T) {
	c := twoQuestions()
	c.Products = nil
	f := newFixture(t, c)
	ctx := context.Background()

	id, _, err := f.engine.Start(ctx, f.client)
	require.NoError(t, err)
	_, err = f.engine.SubmitGoals(ctx, id, "1")
	require.NoError(t, err)
	_, err = f.engine.Answer(ctx, id, "Плохо")
	require.NoError(t, err)
	r, err := f.engine.Answer(ctx, id, "Мало")
	require.NoError(t, err)
	assert.Equal(t, locale.MustNew(locale.Ru).MustLocalize(locale.QuizResultsEmpty), r.Messages[0])
}

func TestNoQuestionsExits(t *testing.T) {
	f := newFixture(t, SeedCatalog{})
	ctx := context.Background()
	id, _, err := f.engine.Start(ctx, f.client)
	require.NoError(t, err)
	r, err := f.engine.SubmitGoals(ctx, id, "1")
	require.NoError(t, err)
	assert.Equal(t, StageExit, r.Stage)
	assert.Equal(t, []string{"Извините, вопросы временно недоступны."}, r.Messages)
}

func TestInvalidInputKeepsStage(t *testing.T) {
	f := newFixture(t, twoQuestions())
	ctx := context.Background()
	id, _, err := f.engine.Start(ctx, f.client)
	require.NoError(t, err)

	r, err := f.engine.SubmitGoals(ctx, id, "1,2,3,4")
	require.NoError(t, err)
	assert.Equal(t, StageGoals, r.Stage)
	assert.Equal(t, []string{"Пожалуйста, выбери не более 3-х целей."}, r.Messages)

	_, err = f.engine.SubmitGoals(ctx, id, "2")
	require.NoError(t, err)
	r, err = f.engine.Answer(ctx, id, "Иногда")
	require.NoError(t, err)
	assert.Equal(t, StageAnswering, r.Stage)
	assert.Equal(t, []string{"Пожалуйста, выбери один из предложенных вариантов."}, r.Messages)
	assert.Equal(t, [][]string{{"Плохо"}, {"Хорошо"}, {back}}, r.Buttons)

	sess, err := f.store.Load(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, sess.Data.Answers)
}

func TestBackUnwindsOneStep(t *testing.T) {
	f := newFixture(t, twoQuestions())
	ctx := context.Background()
	id, _, err := f.engine.Start(ctx, f.client)
	require.NoError(t, err)
	_, err = f.engine.SubmitGoals(ctx, id, "1,3")
	require.NoError(t, err)
	_, err = f.engine.Answer(ctx, id, "Плохо")
	require.NoError(t, err)

	r, err := f.engine.Back(ctx, id, StageAnswering)
	require.NoError(t, err)
	assert.Equal(t, StageAnswering, r.Stage)
	assert.Equal(t, []string{"Как ты спишь?"}, r.Messages)
	sess, err := f.store.Load(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, sess.Data.Answers)

	// Re-answering after Back must not count the first answer twice.
	_, err = f.engine.Answer(ctx, id, "Хорошо")
	require.NoError(t, err)
	_, err = f.engine.Answer(ctx, id, "Много")
	require.NoError(t, err)
	sess, err = f.store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[Category]int{Beauty: 0, WeightLoss: 5}, sess.Data.Scores)

	id, _, err = f.engine.Start(ctx, f.client)
	require.NoError(t, err)
	_, err = f.engine.SubmitGoals(ctx, id, "1")
	require.NoError(t, err)
	r, err = f.engine.Back(ctx, id, StageAnswering)
	require.NoError(t, err)
	assert.Equal(t, StageGoals, r.Stage)
	sess, err = f.store.Load(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, sess.Data.Goals)

	r, err = f.engine.Back(ctx, id, StageGoals)
	require.NoError(t, err)
	assert.Equal(t, StageExit, r.Stage)
	r, err = f.engine.Back(ctx, id, StageResults)
	require.NoError(t, err)
	assert.Equal(t, StageExit, r.Stage)
}

func TestStartResetsSession(t *testing.T) {
	f := newFixture(t, twoQuestions())
	ctx := context.Background()
	first, _, err := f.engine.Start(ctx, f.client)
	require.NoError(t, err)
	_, err = f.engine.SubmitGoals(ctx, first, "1")
	require.NoError(t, err)

	second, _, err := f.engine.Start(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	sess, err := f.store.Load(ctx, second)
	require.NoError(t, err)
	assert.Nil(t, sess.CurrentQuestionID)
	assert.Empty(t, sess.Data.Goals)
	assert.False(t, sess.Completed)
}

func TestLostSessionIsReported(t *testing.T) {
	f := newFixture(t, twoQuestions())
	ctx := context.Background()

	_, err := f.engine.Answer(ctx, 999, "Плохо")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	id, _, err := f.engine.Start(ctx, f.client)
	require.NoError(t, err)
	_, err = f.engine.Answer(ctx, id, "Плохо")
	assert.ErrorIs(t, err, ErrStateLost)
	_, err = f.engine.Bonus(ctx, id)
	assert.ErrorIs(t, err, ErrStateLost)
}

func TestRankOrdersByScoreThenTier(t *testing.T) {
	scores := map[Category]int{Beauty: 2, Brain: 2, Energy: 5}
	ps := []Product{
		{ID: 1, Name: "a", Category: Beauty, Tier: Secondary},
		{ID: 2, Name: "b", Category: Brain, Tier: Primary},
		{ID: 3, Name: "c", Category: Energy, Tier: Secondary},
		{ID: 4, Name: "d", Category: Beauty, Tier: Primary},
	}
	got := names(Rank(ps, scores))
	assert.Equal(t, []string{"c", "b", "d", "a"}, got)
	assert.Equal(t, []Category{Energy, Beauty, Brain}, RankGoals([]Category{Beauty, Brain, Energy}, scores))
}

// memCatalog and memSessions keep the property test off the database.
type memCatalog struct {
	questions []Question
}

func (m *memCatalog) Questions(context.Context) ([]Question, error) { return m.questions, nil }
func (m *memCatalog) Products(context.Context, []Category) ([]Product, error) {
	return nil, nil
}

type memSessions struct {
	byID map[int64]Session
}

func (m *memSessions) Start(_ context.Context, clientID int64) (Session, error) {
	s := Session{ID: clientID, ClientID: clientID}
	m.byID[s.ID] = s
	return s, nil
}

func (m *memSessions) Load(_ context.Context, id int64) (Session, error) {
	s, ok := m.byID[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *memSessions) Save(_ context.Context, s Session) error {
	m.byID[s.ID] = s
	return nil
}

func TestScoreEqualsSumOfChosenAnswers(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	pointsGen := gen.SliceOfN(7, gen.IntRange(-3, 5))
	properties.Property("scores are the sum of chosen answer points per goal", prop.ForAll(
		func(goalIdx int, table [][]int, picks []int) bool {
			if len(table) == 0 {
				return true
			}
			for _, row := range table {
				if len(row) < 7 {
					return true
				}
			}
			goals := Categories[goalIdx : goalIdx+min(3, len(Categories)-goalIdx)]
			var qs []Question
			for i := range picks {
				q := Question{ID: int64(i + 1), Text: fmt.Sprintf("q%d", i+1)}
				for j := 0; j < 2; j++ {
					p := table[(i*2+j)%len(table)]
					q.Answers = append(q.Answers, Answer{
						ID:         int64(i*10 + j + 1),
						QuestionID: q.ID,
						Text:       fmt.Sprintf("a%d", j),
						Points: Points{
							Beauty: p[0], Edema: p[1], WeightLoss: p[2], Brain: p[3],
							Energy: p[4], Stress: p[5], Joints: p[6],
						},
					})
				}
				qs = append(qs, q)
			}
			sessions := &memSessions{byID: map[int64]Session{}}
			e := NewEngine(&memCatalog{questions: qs}, sessions, locale.MustNew(locale.Ru))
			ctx := context.Background()

			id, _, err := e.Start(ctx, 1)
			if err != nil {
				return false
			}
			var labels []string
			for _, g := range goals {
				labels = append(labels, fmt.Sprint(int(g)))
			}
			if _, err := e.SubmitGoals(ctx, id, strings.Join(labels, ",")); err != nil {
				return false
			}
			want := map[Category]int{}
			for _, g := range goals {
				want[g] = 0
			}
			for i, pick := range picks {
				a := qs[i].Answers[pick]
				for _, g := range goals {
					want[g] += a.Points.For(g)
				}
				if _, err := e.Answer(ctx, id, a.Text); err != nil {
					return false
				}
			}
			got := sessions.byID[id].Data.Scores
			if len(got) != len(want) {
				return false
			}
			for g, v := range want {
				if got[g] != v {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, len(Categories)-1),
		gen.SliceOfN(4, pointsGen),
		gen.SliceOfN(5, gen.IntRange(0, 1)),
	))

	properties.TestingRun(t)
}
