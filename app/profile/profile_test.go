package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/delivery"
	"github.com/ewaproduct/ewabot/app/session"
	"github.com/ewaproduct/ewabot/core/database/dbtest"
	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/telegram/keyboard"
	"github.com/ewaproduct/ewabot/core/telegram/state"
)

type out struct {
	text   string
	markup *tele.ReplyMarkup
}

type recorder struct{ msgs []out }

func (r *recorder) SendText(_ context.Context, text string, kb *tele.ReplyMarkup) error {
	r.msgs = append(r.msgs, out{text: text, markup: kb})
	return nil
}
func (r *recorder) SendMedia(context.Context, delivery.Item) error   { return nil }
func (r *recorder) SendGroup(context.Context, []delivery.Item) error { return nil }
func (r *recorder) Action(context.Context, tele.ChatAction) error    { return nil }

func (r *recorder) last() out { return r.msgs[len(r.msgs)-1] }

type fixture struct {
	flow    *Flow
	clients *session.Store
	states  state.Manager
	tr      *recorder
	menus   []string
	bot     *tele.Bot
}

const chatID = 501

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	f := &fixture{
		clients: session.NewStore(dbtest.Open(t)),
		states:  state.NewMemoryManager(),
		tr:      &recorder{},
		bot:     bot,
	}
	f.flow = NewFlow(f.clients, locale.MustNew(locale.Ru), Options{
		States:    f.states,
		Transport: func(tele.Context) delivery.Transport { return f.tr },
		MainMenu: func(_ tele.Context, text string) error {
			f.menus = append(f.menus, text)
			return nil
		},
	})
	f.flow.Register()
	return f
}

func (f *fixture) ctx(text string) tele.Context {
	return f.bot.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: chatID}, Chat: &tele.Chat{ID: chatID}, Text: text,
	}})
}

func (f *fixture) say(t *testing.T, text string) tele.Context {
	t.Helper()
	c := f.ctx(text)
	require.NoError(t, f.states.ManagerHandler(c))
	return c
}

func TestUnregisteredClientIsTurnedAway(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.flow.Enter(f.ctx("Личный кабинет")))
	assert.Equal(t, "Похоже, вы ещё не зарегистрированы.", f.tr.last().text)
	assert.True(t, f.tr.last().markup.RemoveKeyboard)
	assert.Equal(t, state.StateIdle, f.states.GetState(chatID))
}

func TestLogoutAfterConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.clients.EnsureClient(ctx, chatID, session.Profile{FirstName: "Анна", LastName: "Иванова"})
	require.NoError(t, err)
	require.NoError(t, f.clients.SetLoggedIn(ctx, chatID, true))

	require.NoError(t, f.flow.Enter(f.ctx("Личный кабинет")))
	assert.Equal(t, "Личный кабинет\nФИО: Иванова Анна\nНомер телефона: —", f.tr.last().text)
	assert.Equal(t, [][]string{{"⬅️ Назад", "🚪 Выйти из профиля"}}, keyboard.Labels(f.tr.last().markup))
	assert.Equal(t, StateView, f.states.GetState(chatID))

	f.say(t, "🚪 Выйти из профиля")
	assert.Equal(t, StateConfirm, f.states.GetState(chatID))
	assert.Equal(t, [][]string{{"✅ Да, выйти"}, {"❌ Отмена"}}, keyboard.Labels(f.tr.last().markup))

	f.say(t, "❌ Отмена")
	assert.Equal(t, StateView, f.states.GetState(chatID))

	f.say(t, "🚪 Выйти из профиля")
	f.say(t, "✅ Да, выйти")
	assert.Equal(t, state.StateIdle, f.states.GetState(chatID))
	assert.Contains(t, f.tr.last().text, "Вы вышли из аккаунта")
	assert.True(t, f.tr.last().markup.RemoveKeyboard)

	c, err := f.clients.Client(ctx, chatID)
	require.NoError(t, err)
	assert.False(t, c.IsLoggedIn)
}

func TestBackAndPassthroughLeaveProfile(t *testing.T) {
	f := newFixture(t)
	_, err := f.clients.EnsureClient(context.Background(), chatID, session.Profile{Username: "anna"})
	require.NoError(t, err)

	require.NoError(t, f.flow.Enter(f.ctx("Личный кабинет")))
	assert.Contains(t, f.tr.last().text, "ФИО: @anna")
	f.say(t, "⬅️ Назад")
	assert.Equal(t, []string{"Главное меню:"}, f.menus)
	assert.Equal(t, state.StateIdle, f.states.GetState(chatID))

	require.NoError(t, f.flow.Enter(f.ctx("Личный кабинет")))
	c := f.say(t, "Виртуальный помощник")
	assert.True(t, state.Passed(c))
	assert.Equal(t, state.StateIdle, f.states.GetState(chatID))
}

func TestCardShowsPhone(t *testing.T) {
	loc := locale.MustNew(locale.Ru)
	got := Card(loc, session.Client{FirstName: "Олег", PhoneNumber: "+79990001122"})
	assert.Equal(t, "Личный кабинет\nФИО: Олег\nНомер телефона: +79990001122", got)
}
