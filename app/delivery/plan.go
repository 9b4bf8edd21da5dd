package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/tree"
	"github.com/ewaproduct/ewabot/core/logger"
)

// PhotoMaxBytes is the largest file Telegram accepts as a photo.
const PhotoMaxBytes int64 = 10 << 20

// GroupMax is the largest media group Telegram accepts.
const GroupMax = 10

// MediaType is the wire form chosen for one file.
type MediaType int

const (
	Photo MediaType = iota
	Video
	Document
)

func (t MediaType) String() string {
	switch t {
	case Photo:
		return "photo"
	case Video:
		return "video"
	default:
		return "document"
	}
}

// Item is one outbound file.
type Item struct {
	Type      MediaType
	Path      string
	Thumbnail string
	Caption   string
}

// Plan is the ordered list of sends for one attachment.
type Plan struct {
	// Leading text goes out before any media.
	Leading []string
	// Steps are sent in order; a step with more than one item is a media group.
	Steps [][]Item
	// Trailing text goes out after the media when the caption found no item.
	Trailing []string
	Skipped  []string
}

// HasMedia reports whether any file survived planning.
func (p Plan) HasMedia() bool { return len(p.Steps) > 0 }

// Action picks the chat action shown while the plan is sent.
func (p Plan) Action() tele.ChatAction {
	seen := map[MediaType]bool{}
	for _, st := range p.Steps {
		for _, it := range st {
			seen[it.Type] = true
		}
	}
	switch {
	case seen[Video]:
		return tele.UploadingVideo
	case seen[Photo]:
		return tele.UploadingPhoto
	case seen[Document]:
		return tele.UploadingDocument
	}
	return tele.Typing
}

// StatFunc returns the size of a regular file the bot can read.
type StatFunc func(path string) (int64, error)

// osStat opens the file so that unreadable media is dropped at planning
// time instead of failing mid-album.
func osStat(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("%s: not a regular file", path)
	}
	return fi.Size(), nil
}

type planner struct {
	root     string
	photoMax int64
	stat     StatFunc
}

func (p planner) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.root == "" {
		return path
	}
	return filepath.Join(p.root, path)
}

// plan turns an attachment into sends. text is the already chosen base text.
func (p planner) plan(ctx context.Context, a *tree.Attachment, text string) Plan {
	var out Plan
	text = strings.TrimSpace(text)

	if a == nil || a.Kind == tree.KindText {
		out.Leading = Chunk(text, MessageLimit)
		return out
	}

	caption := ""
	if Units(text) > CaptionLimit {
		out.Leading = Chunk(text, MessageLimit)
	} else {
		caption = text
	}

	var photos, videos, docs []Item
	for _, m := range a.Media {
		path := p.resolve(m.SourcePath)
		size, err := p.stat(path)
		if err != nil {
			out.Skipped = append(out.Skipped, m.SourcePath)
			logger.Warn(ctx, logger.CompDelivery, "delivery.skip_missing",
				slog.String("status", "skip"),
				slog.String("path", m.SourcePath),
				slog.String("err", err.Error()),
			)
			continue
		}
		it := Item{Type: p.classify(a.Kind, path, size), Path: path}
		if it.Type == Video && m.ThumbnailPath != "" {
			thumb := p.resolve(m.ThumbnailPath)
			if _, err := p.stat(thumb); err == nil {
				it.Thumbnail = thumb
			} else {
				logger.Debug(ctx, logger.CompDelivery, "delivery.thumbnail_missing",
					slog.String("path", m.ThumbnailPath),
				)
			}
		}
		switch it.Type {
		case Photo:
			photos = append(photos, it)
		case Video:
			videos = append(videos, it)
		default:
			docs = append(docs, it)
		}
	}

	out.Steps = append(out.Steps, batches(photos)...)
	out.Steps = append(out.Steps, batches(videos)...)
	for _, d := range docs {
		out.Steps = append(out.Steps, []Item{d})
	}

	if caption != "" {
		if !placeCaption(out.Steps, caption) {
			out.Trailing = Chunk(caption, MessageLimit)
		}
	}
	return out
}

func (p planner) classify(kind tree.Kind, path string, size int64) MediaType {
	if kind == tree.KindFile {
		return Document
	}
	switch {
	case tree.IsImage(path) && kind != tree.KindVideo:
		if size > p.photoMax {
			return Document
		}
		return Photo
	case tree.IsVideo(path) && kind != tree.KindImage:
		return Video
	}
	return Document
}

// batches splits items into groups of at most GroupMax without leaving a
// single item alone in the last group when there is more than one group.
func batches(items []Item) [][]Item {
	if len(items) == 0 {
		return nil
	}
	var out [][]Item
	for start := 0; start < len(items); start += GroupMax {
		end := min(start+GroupMax, len(items))
		out = append(out, items[start:end:end])
	}
	if n := len(out); n > 1 && len(out[n-1]) == 1 {
		prev := out[n-2]
		moved := prev[len(prev)-1]
		out[n-2] = prev[: len(prev)-1 : len(prev)-1]
		out[n-1] = []Item{moved, out[n-1][0]}
	}
	return out
}

// placeCaption puts caption on the globally last item. It reports false when
// there is no item to carry it.
func placeCaption(steps [][]Item, caption string) bool {
	if len(steps) == 0 {
		return false
	}
	last := steps[len(steps)-1]
	if len(last) == 0 {
		return false
	}
	last[len(last)-1].Caption = caption
	return true
}
