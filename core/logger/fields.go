package logger

import (
	"strings"
	"time"
	"unicode"
)

// defaultKeyOrder puts the fields people grep for first. Anything else
// follows in alphabetical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status", "rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler", "state", "action",
	"endpoint", "outcome", "duration_ms",
	"client_id", "node_id", "label", "kind", "items", "groups", "skipped",
	"question_id", "goals", "products", "request_id", "model", "chunks",
	"mode", "listen", "public_url", "http_code", "driver", "db",
	"err", "err_code", "error_kind", "cause", "attempt", "attempts", "delay_ms", "retry_after",
}

// outcomes lists the accepted values of the outcome field. Others are dropped.
var outcomes = map[string]bool{"ok": true, "fail": true, "cancelled": true, "rate_limited": true}

// Took is the time since start rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to milliseconds. Negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether some were cut.
func SummarizeStrings(values []string, limit int) (string, bool) {
	limit = max(limit, 0)
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}

// Sanitize drops control and format runes, keeping tabs and newlines.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and keeps at most max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) > max {
		r = r[:max]
	}
	return string(r)
}
