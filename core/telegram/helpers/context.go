package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/core/logger"
)

// ctxStoreKey is where the update's context.Context lives on tele.Context.
const ctxStoreKey = "ewabot.ctx"

// StoreContext replaces the context handed out by BuildContext for c.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxStoreKey, ctx)
	}
}

// BuildContext returns the context of the update behind c, carrying its
// correlation id and ids for logging. It is built once per update.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxStoreKey).(context.Context); ok {
		return ctx
	}
	var userID int64
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	// Channel posts and some service updates come without a chat.
	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	updateID := c.Update().ID

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}
	ctx := logger.WithUpdateMeta(logger.WithRID(context.Background(), rid), updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component(logger.CompTelegram))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the update context with the name of the serving handler.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler != "" {
		ctx = logger.WithHandler(ctx, handler)
		StoreContext(c, ctx)
	}
	return ctx
}

// ChatID returns the chat of the update, the sender for chatless updates, or 0.
func ChatID(c tele.Context) int64 {
	switch {
	case c == nil:
		return 0
	case c.Chat() != nil:
		return c.Chat().ID
	case c.Sender() != nil:
		return c.Sender().ID
	}
	return 0
}
