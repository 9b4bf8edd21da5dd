package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/ewaproduct/ewabot/core/telegram"
	"github.com/ewaproduct/ewabot/core/telegram/commands"
	"github.com/ewaproduct/ewabot/core/telegram/state"
)

func textContext(t *testing.T, text string) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(tele.Update{
		ID: 3,
		Message: &tele.Message{
			Sender: &tele.User{ID: 9},
			Chat:   &tele.Chat{ID: 9},
			Text:   text,
		},
	})
}

func textHandler(t *testing.T, fsm FSM, reg *tg.Registry) tele.HandlerFunc {
	t.Helper()
	routes := TextRoutes(fsm, reg, TextOptions{})
	require.Len(t, routes, 1)
	assert.Equal(t, tele.OnText, routes[0].Endpoint)
	return routes[0].Handler
}

func TestTextRoutesOrder(t *testing.T) {
	var calls []string
	reg := tg.NewRegistry()
	reg.RegisterCommand("/quiz", commands.Command{
		Description: "quiz",
		Aliases:     []string{"Подобрать БАД - тест"},
		Handler:     func(tele.Context) error { calls = append(calls, "quiz"); return nil },
	})
	reg.SetTextFallback(func(tele.Context) error { calls = append(calls, "fallback"); return nil })

	mgr := state.NewMemoryManager()
	mgr.Handle("profile.view", func(c tele.Context) error {
		calls = append(calls, "state")
		if c.Text() != "stay" {
			mgr.ClearState(c.Sender().ID)
			return state.Pass(c)
		}
		return nil
	})
	h := textHandler(t, mgr, reg)

	require.NoError(t, h(textContext(t, "Подобрать БАД - тест")))
	require.NoError(t, h(textContext(t, "Корень")))

	mgr.SetState(9, "profile.view")
	require.NoError(t, h(textContext(t, "stay")))
	require.NoError(t, h(textContext(t, "Подобрать БАД - тест")))

	assert.Equal(t, []string{"quiz", "fallback", "state", "state", "quiz"}, calls)
}

func TestTextRoutesSkipsAdminAliases(t *testing.T) {
	called := false
	reg := tg.NewRegistry()
	reg.RegisterCommand("/tree", commands.Command{
		Description: "tree",
		AdminOnly:   true,
		Aliases:     []string{"tree"},
		Handler:     func(tele.Context) error { called = true; return nil },
	})
	h := textHandler(t, nil, reg)
	require.NoError(t, h(textContext(t, "tree")))
	assert.False(t, called)
}

func TestTextRoutesPropagatesStateError(t *testing.T) {
	boom := errors.New("boom")
	mgr := state.NewMemoryManager()
	mgr.Handle("quiz.goals", func(tele.Context) error { return boom })
	mgr.SetState(9, "quiz.goals")
	h := textHandler(t, mgr, tg.NewRegistry())
	assert.ErrorIs(t, h(textContext(t, "1,3")), boom)
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "start", normalizeHandlerName("/start"))
	assert.Equal(t, "unknown", normalizeHandlerName("  "))
	assert.Equal(t, "quiz_start", normalizeHandlerName("Quiz Start"))
}

type codedErr struct{}

func (codedErr) Error() string { return "x" }
func (codedErr) Code() string  { return "stale session" }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "STALE_SESSION", errorCode(codedErr{}))
	assert.Equal(t, "ERRORSTRING", errorCode(errors.New("plain")))
}
