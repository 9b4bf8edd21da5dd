package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	coreconfig "github.com/ewaproduct/ewabot/core/config"
)

type options struct {
	json      bool
	level     slog.Level
	order     []string
	sampleNum int
	sampleDen int
	trace     bool
	profile   string
	mode      string
	file      string
}

func optionsFrom(cfg *coreconfig.Config) options {
	o := options{
		json:      true,
		level:     slog.LevelInfo,
		order:     defaultKeyOrder,
		sampleNum: 1,
		sampleDen: 50,
		trace:     truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE")),
		profile:   "prod",
	}
	if cfg == nil {
		return o
	}
	lc := cfg.Logging
	o.mode = cfg.Telegram.RunMode
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		o.profile = p
	}

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "json":
	case "kv", "text", "pretty":
		o.json = false
	default:
		o.json = o.profile != "debug" && o.profile != "dev"
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		o.level = slog.LevelDebug
	case "warn", "warning":
		o.level = slog.LevelWarn
	case "error":
		o.level = slog.LevelError
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" && !slices.Contains(order, k) {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			o.order = order
		}
	}

	if num, den, ok := parseRatio(lc.DebugSample); ok {
		o.sampleNum, o.sampleDen = num, den
	}

	if dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile); dir != "" && name != "" {
		o.file = filepath.Join(dir, name)
	}
	return o
}

// openSink always returns a console sink. A log file that cannot be opened
// is reported but does not stop the bot.
func (o options) openSink() (*sink, error) {
	s := &sink{console: os.Stdout}
	if o.file == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(o.file), 0o755); err != nil {
		return s, fmt.Errorf("logger: log dir: %w", err)
	}
	f, err := os.OpenFile(o.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return s, fmt.Errorf("logger: log file: %w", err)
	}
	s.files = []io.WriteCloser{f}
	return s, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
