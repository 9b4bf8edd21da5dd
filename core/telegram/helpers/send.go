package helpers

import (
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/core/logger"
	"github.com/ewaproduct/ewabot/core/telegram/sender"
)

// Send delivers what to the current chat through the ordered sender queue and waits for the result.
// With a nil dispatcher the call goes straight to Telegram.
func Send(c tele.Context, d *sender.Dispatcher, what any, opts ...any) error {
	return Do(c, d, "send.text", "sendMessage", func() error {
		return c.Send(what, opts...)
	})
}

// Do runs an arbitrary Bot API call for the current chat through the sender queue.
func Do(c tele.Context, d *sender.Dispatcher, action, endpoint string, run func() error) error {
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Do(ctx, ChatID(c), action, endpoint, run)
	if errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.String("status", "skip"),
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends raw text (no parse mode) with an optional reply markup.
func SendText(c tele.Context, d *sender.Dispatcher, text string, markup ...*tele.ReplyMarkup) error {
	if len(markup) > 0 && markup[0] != nil {
		return Send(c, d, text, markup[0])
	}
	return Send(c, d, text)
}

// Notify enqueues a fire-and-forget message, e.g. a rate limit notice.
func Notify(c tele.Context, d *sender.Dispatcher, text string) {
	if d == nil {
		_ = c.Send(text)
		return
	}
	ctx := BuildContext(c)
	if err := d.Enqueue(ctx, ChatID(c), "send.notice", "sendMessage", func() error {
		return c.Send(text)
	}); err != nil {
		logger.Warn(ctx, logger.CompSender, "queue.drop",
			slog.String("status", "drop"),
			slog.String("err", err.Error()),
		)
	}
}
