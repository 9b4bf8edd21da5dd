package quiz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/delivery"
	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/telegram/keyboard"
	"github.com/ewaproduct/ewabot/core/telegram/state"
)

type sentText struct {
	text   string
	labels [][]string
}

type textRecorder struct {
	msgs []sentText
}

func (r *textRecorder) SendText(_ context.Context, text string, kb *tele.ReplyMarkup) error {
	r.msgs = append(r.msgs, sentText{text: text, labels: keyboard.Labels(kb)})
	return nil
}
func (r *textRecorder) SendMedia(context.Context, delivery.Item) error   { return nil }
func (r *textRecorder) SendGroup(context.Context, []delivery.Item) error { return nil }
func (r *textRecorder) Action(context.Context, tele.ChatAction) error    { return nil }

type flowFixture struct {
	*fixture
	flow   *Flow
	states state.Manager
	tr     *textRecorder
	menus  []string
	bot    *tele.Bot
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	ff := &flowFixture{
		fixture: newFixture(t, twoQuestions()),
		states:  state.NewMemoryManager(),
		tr:      &textRecorder{},
		bot:     bot,
	}
	ff.flow = NewFlow(ff.engine, locale.MustNew(locale.Ru), FlowOptions{
		States:    ff.states,
		Client:    func(tele.Context) (int64, error) { return ff.client, nil },
		Transport: func(tele.Context) delivery.Transport { return ff.tr },
		MainMenu: func(_ tele.Context, text string) error {
			ff.menus = append(ff.menus, text)
			return nil
		},
	})
	ff.flow.Register()
	return ff
}

func (ff *flowFixture) ctx(text string) tele.Context {
	return ff.bot.NewContext(tele.Update{
		ID: 1,
		Message: &tele.Message{
			Sender: &tele.User{ID: 5},
			Chat:   &tele.Chat{ID: 5},
			Text:   text,
		},
	})
}

func (ff *flowFixture) say(t *testing.T, text string) tele.Context {
	t.Helper()
	c := ff.ctx(text)
	require.NoError(t, ff.states.ManagerHandler(c))
	return c
}

func TestFlowWalksThroughQuiz(t *testing.T) {
	ff := newFlowFixture(t)
	require.NoError(t, ff.flow.Start(ff.ctx("/quiz")))
	assert.Equal(t, StateGoals, ff.states.GetState(5))
	require.Len(t, ff.tr.msgs, 2)
	assert.Nil(t, ff.tr.msgs[0].labels)
	assert.Equal(t, []string{back}, ff.tr.msgs[1].labels[3])

	ff.say(t, "1,3")
	assert.Equal(t, StateAnswering, ff.states.GetState(5))
	ff.say(t, "Плохо")
	ff.say(t, "Мало")
	assert.Equal(t, StateResults, ff.states.GetState(5))

	ff.say(t, "Давай!")
	assert.Equal(t, StateResults, ff.states.GetState(5))
	assert.Contains(t, ff.tr.msgs[len(ff.tr.msgs)-1].text, "Клетчатка")

	c := ff.say(t, "Личный кабинет")
	assert.True(t, state.Passed(c))
	assert.Equal(t, state.StateIdle, ff.states.GetState(5))
}

func TestFlowBackFromGoalsShowsMainMenu(t *testing.T) {
	ff := newFlowFixture(t)
	require.NoError(t, ff.flow.Start(ff.ctx("/quiz")))
	ff.say(t, back)
	assert.Equal(t, []string{"Главное меню:"}, ff.menus)
	assert.Equal(t, state.StateIdle, ff.states.GetState(5))
}

func TestFlowMissingSessionAsksToRestart(t *testing.T) {
	ff := newFlowFixture(t)
	ff.states.SetState(5, StateAnswering)
	ff.say(t, "Плохо")
	require.Len(t, ff.menus, 1)
	assert.Contains(t, ff.menus[0], "тест прервался")
	assert.Equal(t, state.StateIdle, ff.states.GetState(5))
	assert.Empty(t, ff.tr.msgs)
}
