package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/core/locale"
)

type call struct {
	kind     string // text, media, group
	text     string
	keyboard bool
	items    []Item
}

type fakeTransport struct {
	mu      sync.Mutex
	calls   []call
	actions []tele.ChatAction
	failAt  int // 1-based call index that fails, 0 = never
}

func (f *fakeTransport) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return fmt.Errorf("transport down")
	}
	return nil
}

func (f *fakeTransport) SendText(_ context.Context, text string, kb *tele.ReplyMarkup) error {
	return f.record(call{kind: "text", text: text, keyboard: kb != nil})
}

func (f *fakeTransport) SendMedia(_ context.Context, item Item) error {
	return f.record(call{kind: "media", items: []Item{item}})
}

func (f *fakeTransport) SendGroup(_ context.Context, items []Item) error {
	return f.record(call{kind: "group", items: append([]Item(nil), items...)})
}

func (f *fakeTransport) Action(_ context.Context, a tele.ChatAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	return nil
}

func (f *fakeTransport) kinds() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.kind)
	}
	return out
}

// captions lists every non-empty caption across all sent media.
func (f *fakeTransport) captions() []string {
	var out []string
	for _, c := range f.calls {
		for _, it := range c.items {
			if it.Caption != "" {
				out = append(out, it.Caption)
			}
		}
	}
	return out
}

func (f *fakeTransport) lastItem() (Item, bool) {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if n := len(f.calls[i].items); n > 0 {
			return f.calls[i].items[n-1], true
		}
	}
	return Item{}, false
}

// statAll pretends every file exists with the given size.
func statAll(size int64) StatFunc {
	return func(string) (int64, error) { return size, nil }
}

// statExcept pretends every file exists except those whose name contains missing.
func statExcept(missing string) StatFunc {
	return func(p string) (int64, error) {
		if strings.Contains(p, missing) {
			return 0, fmt.Errorf("%s: no such file", p)
		}
		return 1024, nil
	}
}

func newTestDispatcher(stat StatFunc) *Dispatcher {
	return NewDispatcher(Options{MediaRoot: "/media", Stat: stat}, locale.MustNew(locale.Ru))
}

func keyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ResizeKeyboard: true}
}
