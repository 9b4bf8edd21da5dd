package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type encoder interface {
	encode(fields map[string]any) ([]byte, error)
	// verbose encoders also get rid_full and ts_unix_nano.
	verbose() bool
}

// jsonEncoder writes one JSON object per line.
type jsonEncoder struct{ order []string }

func (e jsonEncoder) verbose() bool { return true }

func (e jsonEncoder) encode(fields map[string]any) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range sortKeys(fields, e.order) {
		v, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("logger: field %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// kvEncoder writes key=value pairs for humans reading a terminal.
type kvEncoder struct{ order []string }

func (e kvEncoder) verbose() bool { return false }

func (e kvEncoder) encode(fields map[string]any) ([]byte, error) {
	var b bytes.Buffer
	for i, k := range sortKeys(fields, e.order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		s := fmt.Sprint(fields[k])
		if strings.ContainsFunc(s, needsQuote) {
			s = strconv.Quote(s)
		}
		b.WriteString(s)
	}
	return b.Bytes(), nil
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

// sortKeys lists keys from order first, then the rest alphabetically.
func sortKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	for _, k := range order {
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
		}
	}
	head := len(keys)
	for k := range fields {
		if !slices.Contains(keys[:head], k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys[head:])
	return keys
}
