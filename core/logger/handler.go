package logger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

type field struct {
	key string
	val any
}

// lineHandler renders each record as one line of flat dotted keys. Update
// metadata from the context is merged in, durations become *_ms integers.
type lineHandler struct {
	level  slog.Leveler
	out    *sink
	enc    encoder
	fields []field
	group  string
}

func newLineHandler(level slog.Leveler, out *sink, enc encoder) *lineHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &lineHandler{level: level, out: out, enc: enc}
}

func (h *lineHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.out == nil || h.enc == nil {
		return errors.New("logger: handler has no output")
	}
	ts := r.Time.UTC()
	m := map[string]any{
		"ts":    ts.Truncate(time.Millisecond).Format(tsLayout),
		"level": levelName(r.Level),
	}
	for _, f := range h.fields {
		m[f.key] = f.val
	}
	r.Attrs(func(a slog.Attr) bool {
		for _, f := range flatten(h.group, a, nil) {
			m[f.key] = f.val
		}
		return true
	})
	mergeMeta(m, metaFrom(ctx))

	if rid, ok := m["rid"].(string); ok {
		if short := CompactRID(rid); short != rid {
			m["rid"] = short
			if h.enc.verbose() {
				setDefault(m, "rid_full", rid)
			}
		}
	}
	if h.enc.verbose() {
		m["ts_unix_nano"] = ts.UnixNano()
	}
	if ev, _ := m["event"].(string); ev == "" {
		m["event"] = cmp.Or(r.Message, "unknown")
	}
	if comp, _ := m["component"].(string); comp == "" {
		m["component"] = CompApp
	}
	if s, ok := m["status"].(string); ok {
		m["status"] = strings.ToLower(s)
	}
	if o, ok := m["outcome"].(string); ok {
		if o = strings.ToLower(o); outcomes[o] {
			m["outcome"] = o
		} else {
			delete(m, "outcome")
		}
	}
	for k, v := range m {
		if v == nil || v == "" {
			delete(m, k)
		}
	}

	line, err := h.enc.encode(m)
	if err != nil {
		return err
	}
	return h.out.writeLine(append(line, '\n'))
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = append([]field(nil), h.fields...)
	for _, a := range attrs {
		next.fields = flatten(h.group, a, next.fields)
	}
	return &next
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = joinKey(h.group, name)
	return &next
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func flatten(prefix string, a slog.Attr, out []field) []field {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			out = flatten(key, child, out)
		}
		return out
	}
	if key == "" {
		return out
	}
	if k, val, ok := plain(key, v); ok {
		out = append(out, field{key: k, val: val})
	}
	return out
}

// plain turns v into a JSON friendly value, renaming duration keys to *_ms.
func plain(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func msKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func mergeMeta(m map[string]any, meta updateMeta) {
	if meta.rid != "" {
		setDefault(m, "rid", meta.rid)
	}
	if meta.handler != "" {
		setDefault(m, "handler", meta.handler)
	}
	if meta.updateID != 0 {
		setDefault(m, "update_id", int64(meta.updateID))
	}
	if meta.userID != 0 {
		setDefault(m, "user_id", meta.userID)
	}
	if meta.chatID != 0 {
		setDefault(m, "chat_id", meta.chatID)
	}
}

func setDefault(m map[string]any, key string, val any) {
	if _, ok := m[key]; !ok {
		m[key] = val
	}
}
