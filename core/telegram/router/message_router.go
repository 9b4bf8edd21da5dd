package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/ewaproduct/ewabot/core/telegram"
	"github.com/ewaproduct/ewabot/core/telegram/state"
)

// FSM defines the minimal interface for an FSM manager.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the OnText handler: active conversation state first,
// then command names and aliases, then the registry fallback.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		text := c.Text()

		if fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID) {
			err := traced(c, "fsm", func() error { return fsmMgr.ManagerHandler(c) })
			if err != nil || !state.Passed(c) {
				return err
			}
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return traced(c, normalizeHandlerName(key), func() error { return cmd.Handler(c) })
			}
			if fb := reg.TextFallback(); fb != nil {
				return traced(c, "fallback", func() error { return fb(c) })
			}
		}

		if opts.UnknownText != nil {
			return traced(c, "unknown_text", func() error { return opts.UnknownText(c) })
		}
		skipped(c, "unknown_text")
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: handler},
	}
}
