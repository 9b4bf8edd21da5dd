package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/core/logger"
	tghelpers "github.com/ewaproduct/ewabot/core/telegram/helpers"
)

// RecoverWith catches panics in handlers so the bot keeps running.
// onPanic, when set, runs after the panic is logged (e.g. an apology to the user).
func RecoverWith(onPanic tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				ctx := tghelpers.BuildContext(c)
				logger.Error(ctx, logger.CompTelegram, "tg.panic",
					slog.String("status", "fail"),
					slog.String("err", fmt.Sprint(r)),
					slog.String("stack", string(debug.Stack())),
				)
				if onPanic != nil {
					_ = onPanic(c)
				}
				err = nil
			}()
			return next(c)
		}
	}
}
