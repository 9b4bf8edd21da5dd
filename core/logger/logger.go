// Package logger is the structured slog setup shared by every component.
// Lines are JSON in production and key=value in development, with update
// metadata from the context merged into each line.
package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/ewaproduct/ewabot/core/buildinfo"
	coreconfig "github.com/ewaproduct/ewabot/core/config"
)

// Component names used across the bot.
const (
	CompApp       = "app"
	CompDB        = "db"
	CompMigrate   = "db.migrate"
	CompSeed      = "db.seed"
	CompTelegram  = "tg"
	CompWire      = "tg.wire"
	CompSender    = "tg.sender"
	CompWebhook   = "tg.webhook"
	CompTree      = "service.tree"
	CompSessions  = "service.sessions"
	CompNavigator = "service.navigator"
	CompDelivery  = "service.delivery"
	CompQuiz      = "service.quiz"
	CompAssistant = "service.assistant"
	CompProfile   = "service.profile"
	CompOnboard   = "service.onboarding"
)

var (
	initOnce sync.Once
	out      *sink
	level    slog.LevelVar
	debug    sampler
	trace    bool

	// L is the base logger.
	L *slog.Logger

	DB    *slog.Logger
	TG    *slog.Logger
	MIG   *slog.Logger
	TWire *slog.Logger
	SEED  *slog.Logger
)

func init() {
	// Tests and early failures log through the stdlib default.
	L = slog.Default()
	scope()
	debug.set(1, 50)
}

// InitLogger installs the global logger described by cfg. Only the first
// call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		o := optionsFrom(cfg)
		level.Set(o.level)
		debug.set(o.sampleNum, o.sampleDen)
		trace = o.trace

		var fileErr error
		out, fileErr = o.openSink()
		var enc encoder = jsonEncoder{order: o.order}
		if !o.json {
			enc = kvEncoder{order: o.order}
		}
		L = slog.New(newLineHandler(&level, out, enc))
		slog.SetDefault(L)
		scope()

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", CompApp),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("cfg_profile", o.profile),
			slog.String("mode", o.mode),
		)
		if fileErr != nil {
			L.Warn("log file disabled", slog.String("component", CompApp), slog.String("err", fileErr.Error()))
		}
	})
	return nil
}

func scope() {
	DB = Component(CompDB)
	TG = Component(CompTelegram)
	MIG = Component(CompMigrate)
	TWire = Component(CompWire)
	SEED = Component(CompSeed)
}

// Shutdown closes log files. It is safe to call more than once.
func Shutdown() error {
	if out == nil {
		return nil
	}
	return out.close()
}

// Component returns L scoped to name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes event with attrs through logg, or the context logger when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = loggerFrom(ctx)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, lvl, "", attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug thins out debug lines of hot paths. TRACE=1 disables thinning.
func ShouldSampleDebug() bool {
	return trace || debug.allow()
}
