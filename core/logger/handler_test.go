package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/ewaproduct/ewabot/core/config"
)

func emit(t *testing.T, enc encoder, component string, fn func(*slog.Logger)) string {
	t.Helper()
	var buf bytes.Buffer
	h := newLineHandler(slog.LevelDebug, &sink{console: &buf}, enc)
	fn(slog.New(h).With("component", component))
	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)
	return line
}

func TestKVLineStartsWithKnownKeys(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	line := emit(t, kvEncoder{order: defaultKeyOrder}, CompNavigator, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelInfo, "nav.select",
			slog.String("status", "ok"),
			slog.Int64("node_id", 5),
		)
	})

	tokens := strings.Split(line, " ")
	want := []string{"ts=", "level=INFO", "component=service.navigator", "event=nav.select", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "node_id=5"}
	require.GreaterOrEqual(t, len(tokens), len(want), line)
	for i, prefix := range want {
		assert.True(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want %s", i, tokens[i], prefix)
	}
}

func TestJSONLine(t *testing.T) {
	ctx := WithHandler(WithRID(context.Background(), "123:456:789"), "quiz")
	line := emit(t, jsonEncoder{order: defaultKeyOrder}, CompDelivery, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelError, "delivery.failed",
			slog.String("status", "FAIL"),
			slog.String("err", "boom"),
			slog.Group("file", slog.String("name", "a.pdf")),
		)
	})
	require.True(t, strings.HasPrefix(line, `{"ts":`), line)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.Equal(t, "ERROR", got["level"])
	assert.Equal(t, "fail", got["status"])
	assert.Equal(t, CompactRID("123:456:789"), got["rid"])
	assert.Equal(t, "123:456:789", got["rid_full"])
	assert.Equal(t, "quiz", got["handler"])
	assert.Equal(t, "a.pdf", got["file.name"])
	assert.Contains(t, got, "ts_unix_nano")
}

func TestKVLineOmitsVerboseFields(t *testing.T) {
	ctx := WithRID(context.Background(), "123:456:789")
	line := emit(t, kvEncoder{}, CompApp, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelInfo, "rid.test")
	})
	assert.Contains(t, line, "rid="+CompactRID("123:456:789"))
	assert.NotContains(t, line, "rid_full=")
	assert.NotContains(t, line, "ts_unix_nano=")
}

func TestDurationsBecomeMilliseconds(t *testing.T) {
	line := emit(t, kvEncoder{}, CompSender, func(l *slog.Logger) {
		LogEvent(context.Background(), l, slog.LevelInfo, "send.retry",
			slog.Duration("duration", 1500*time.Microsecond),
			slog.Duration("delay", 2*time.Second),
			slog.Duration("queue_duration", 0),
		)
	})
	for _, want := range []string{"duration_ms=2", "delay_ms=2000", "queue_duration_ms=0"} {
		assert.Contains(t, line, want)
	}
}

func TestUnknownOutcomeDropped(t *testing.T) {
	line := emit(t, kvEncoder{}, CompQuiz, func(l *slog.Logger) {
		LogEvent(context.Background(), l, slog.LevelInfo, "quiz.answer",
			slog.String("outcome", "weird"),
			slog.String("status", "SKIP"),
			slog.String("label", ""),
		)
	})
	assert.NotContains(t, line, "outcome=")
	assert.NotContains(t, line, "label=")
	assert.Contains(t, line, "status=skip")
}

func TestKVQuotesValues(t *testing.T) {
	line := emit(t, kvEncoder{}, CompTree, func(l *slog.Logger) {
		l.Info("", slog.String("event", "tree.seed"), slog.String("label", "Омега 3"))
	})
	assert.Contains(t, line, `label="Омега 3"`)
}

func TestDisabledLevel(t *testing.T) {
	h := newLineHandler(slog.LevelWarn, &sink{}, kvEncoder{})
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "abc\nd", SanitizeLimit("a\x00b\u200bc\nd", 10))
	assert.Equal(t, "при", SanitizeLimit("привет", 3))
	assert.Equal(t, "", SanitizeLimit("x", 0))
}

func TestCompactRID(t *testing.T) {
	for _, rid := range []string{"x:1:2", "1:2", "plain"} {
		assert.Equal(t, rid, CompactRID(rid))
	}
	assert.Equal(t, "z.10.0", CompactRID("35:36:0"))
}

func TestOptionsFromConfig(t *testing.T) {
	o := optionsFrom(nil)
	assert.True(t, o.json)
	assert.Equal(t, slog.LevelInfo, o.level)
	assert.Equal(t, [2]int{1, 50}, [2]int{o.sampleNum, o.sampleDen})

	o = optionsFrom(&coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Level:       "WARNING",
		Profile:     "dev",
		KeysOrder:   "event, level,event",
		DebugSample: "0",
		Dir:         "logs",
		BotFile:     "bot.log",
	}})
	assert.False(t, o.json)
	assert.Equal(t, slog.LevelWarn, o.level)
	assert.Equal(t, []string{"event", "level"}, o.order)
	assert.Equal(t, 0, o.sampleDen)
	assert.Equal(t, filepath.Join("logs", "bot.log"), o.file)
}
