package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/core/logger"
	tghelpers "github.com/ewaproduct/ewabot/core/telegram/helpers"
	"github.com/ewaproduct/ewabot/core/telegram/middleware"
)

// traced runs fn as handler name and logs one handler.handled line with
// the reply counters collected by the middleware chain.
func traced(c tele.Context, name string, fn func() error) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	err := fn()

	msgs, kb := middleware.GetCounters(c)
	status := "ok"
	attrs := []slog.Attr{
		slog.String("handler", name),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		status = "fail"
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	attrs = append(attrs, slog.String("status", status), slog.String("outcome", status))
	logger.LogEvent(ctx, logger.Component(logger.CompTelegram), slog.LevelInfo, "handler.handled", attrs...)
	return err
}

// skipped logs text nobody handled.
func skipped(c tele.Context, name string) {
	ctx := tghelpers.WithHandler(c, name)
	logger.LogEvent(ctx, logger.Component(logger.CompTelegram), slog.LevelDebug, "handler.handled",
		slog.String("status", "skip"),
		slog.String("outcome", "ok"),
	)
}

// normalizeHandlerName turns "/Quiz Start" into "quiz_start".
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode is the error's own Code() when it has one, else its type name.
func errorCode(err error) string {
	var c interface{ Code() string }
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := fmt.Sprintf("%T", err)
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return strings.ToUpper(t)
}
