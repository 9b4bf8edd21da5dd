package delivery

import (
	"context"
	"path/filepath"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/ewaproduct/ewabot/core/telegram/helpers"
	"github.com/ewaproduct/ewabot/core/telegram/sender"
)

// TeleTransport sends through a telebot context and the ordered sender queue.
type TeleTransport struct {
	c      tele.Context
	sender *sender.Dispatcher
}

// NewTeleTransport binds the transport to the chat of c.
func NewTeleTransport(c tele.Context, s *sender.Dispatcher) *TeleTransport {
	return &TeleTransport{c: c, sender: s}
}

func (t *TeleTransport) SendText(_ context.Context, text string, kb *tele.ReplyMarkup) error {
	return tghelpers.SendText(t.c, t.sender, text, kb)
}

func (t *TeleTransport) SendMedia(_ context.Context, item Item) error {
	what := inputFor(item)
	return tghelpers.Do(t.c, t.sender, "send."+item.Type.String(), endpointFor(item.Type), func() error {
		return t.c.Send(what)
	})
}

func (t *TeleTransport) SendGroup(_ context.Context, items []Item) error {
	album := make(tele.Album, 0, len(items))
	for _, it := range items {
		album = append(album, inputFor(it))
	}
	return tghelpers.Do(t.c, t.sender, "send.album", "sendMediaGroup", func() error {
		return t.c.SendAlbum(album)
	})
}

// Action is best effort and skips the queue so it is not stuck behind uploads.
func (t *TeleTransport) Action(_ context.Context, action tele.ChatAction) error {
	return t.c.Notify(action)
}

func endpointFor(mt MediaType) string {
	switch mt {
	case Photo:
		return "sendPhoto"
	case Video:
		return "sendVideo"
	}
	return "sendDocument"
}

func inputFor(it Item) tele.Inputtable {
	file := tele.FromDisk(it.Path)
	switch it.Type {
	case Photo:
		return &tele.Photo{File: file, Caption: it.Caption}
	case Video:
		v := &tele.Video{File: file, Caption: it.Caption, FileName: filepath.Base(it.Path)}
		if it.Thumbnail != "" {
			v.Thumbnail = &tele.Photo{File: tele.FromDisk(it.Thumbnail)}
		}
		return v
	default:
		return &tele.Document{File: file, Caption: it.Caption, FileName: filepath.Base(it.Path)}
	}
}
