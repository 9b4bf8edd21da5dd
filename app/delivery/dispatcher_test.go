package delivery

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/tree"
)

func attachment(kind tree.Kind, text string, paths ...string) *tree.Attachment {
	a := &tree.Attachment{ID: 1, NodeID: 1, Kind: kind, Text: text}
	for i, p := range paths {
		a.Media = append(a.Media, tree.MediaItem{ID: int64(i + 1), SourcePath: p, Position: i})
	}
	return a
}

func names(prefix, ext string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d.%s", prefix, i, ext)
	}
	return out
}

func TestTextAttachmentCarriesKeyboardOnLastChunk(t *testing.T) {
	d := newTestDispatcher(statAll(1))
	tr := &fakeTransport{}
	text := strings.Repeat("слово ", 1500)

	rep := d.Deliver(context.Background(), tr, Request{Attachment: attachment(tree.KindText, text), Keyboard: keyboard()})

	require.False(t, rep.Failed)
	assert.True(t, rep.KeyboardSent)
	assert.Equal(t, []string{"text", "text", "text"}, tr.kinds())
	assert.False(t, tr.calls[0].keyboard)
	assert.True(t, tr.calls[2].keyboard)
	for _, c := range tr.calls {
		assert.LessOrEqual(t, Units(c.text), MessageLimit)
	}
}

func TestFallbackTextWhenAttachmentTextEmpty(t *testing.T) {
	d := newTestDispatcher(statAll(1))
	tr := &fakeTransport{}
	rep := d.Deliver(context.Background(), tr, Request{Attachment: attachment(tree.KindText, "  "), Fallback: "Раздел"})
	assert.Equal(t, 1, rep.Messages)
	assert.Equal(t, "Раздел", tr.calls[0].text)
}

func TestFileKindLongCaptionGoesFirst(t *testing.T) {
	d := newTestDispatcher(statAll(1))
	tr := &fakeTransport{}
	text := strings.Repeat("x", 1200)

	rep := d.Deliver(context.Background(), tr, Request{
		Attachment: attachment(tree.KindFile, text, "a.pdf", "b.pdf", "c.jpg"),
	})

	require.False(t, rep.Failed)
	assert.Equal(t, []string{"text", "media", "media", "media"}, tr.kinds())
	assert.Equal(t, text, tr.calls[0].text)
	for _, c := range tr.calls[1:] {
		assert.Equal(t, Document, c.items[0].Type)
		assert.Empty(t, c.items[0].Caption)
	}
	assert.False(t, rep.KeyboardSent)
}

func TestFileKindShortCaptionOnLastDocument(t *testing.T) {
	d := newTestDispatcher(statAll(1))
	tr := &fakeTransport{}
	d.Deliver(context.Background(), tr, Request{
		Attachment: attachment(tree.KindFile, "прайс", "a.pdf", "b.pdf"),
		Keyboard:   keyboard(),
	})
	assert.Equal(t, []string{"media", "media", "text"}, tr.kinds())
	assert.Equal(t, []string{"прайс"}, tr.captions())
	assert.Equal(t, "прайс", tr.calls[1].items[0].Caption)
	assert.True(t, tr.calls[2].keyboard)
	assert.Equal(t, "Выберите следующий пункт:", tr.calls[2].text)
}

func TestOversizedPhotoBecomesDocument(t *testing.T) {
	stat := func(p string) (int64, error) {
		if strings.Contains(p, "big") {
			return PhotoMaxBytes + 1, nil
		}
		return 100, nil
	}
	d := newTestDispatcher(stat)
	plan := d.Plan(context.Background(), Request{Attachment: attachment(tree.KindImage, "", "a.jpg", "big.jpg", "b.jpg")})
	require.Len(t, plan.Steps, 2)
	assert.Len(t, plan.Steps[0], 2)
	assert.Equal(t, Photo, plan.Steps[0][0].Type)
	assert.Equal(t, Document, plan.Steps[1][0].Type)
	assert.Equal(t, "/media/big.jpg", plan.Steps[1][0].Path)
}

func TestMixedOrderingAndSingleCaption(t *testing.T) {
	d := newTestDispatcher(statAll(1))
	tr := &fakeTransport{}
	d.Deliver(context.Background(), tr, Request{
		Attachment: attachment(tree.KindMixed, "подпись",
			"doc.pdf", "v1.mp4", "p1.jpg", "p2.png", "v2.mov", "p3.webp"),
		Keyboard: keyboard(),
	})

	assert.Equal(t, []string{"group", "group", "media", "text"}, tr.kinds())
	for _, it := range tr.calls[0].items {
		assert.Equal(t, Photo, it.Type)
	}
	for _, it := range tr.calls[1].items {
		assert.Equal(t, Video, it.Type)
	}
	assert.Equal(t, Document, tr.calls[2].items[0].Type)
	assert.Equal(t, []string{"подпись"}, tr.captions())
	last, ok := tr.lastItem()
	require.True(t, ok)
	assert.Equal(t, "подпись", last.Caption)
	assert.Equal(t, tele.UploadingVideo, tr.actions[0])
}

func TestVideoThumbnail(t *testing.T) {
	d := newTestDispatcher(statExcept("missing"))
	a := attachment(tree.KindVideo, "", "a.mp4", "b.mp4")
	a.Media[0].ThumbnailPath = "a.jpg"
	a.Media[1].ThumbnailPath = "missing.jpg"
	plan := d.Plan(context.Background(), Request{Attachment: a})
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "/media/a.jpg", plan.Steps[0][0].Thumbnail)
	assert.Empty(t, plan.Steps[0][1].Thumbnail)
}

func TestMissingFilesAreSkipped(t *testing.T) {
	d := newTestDispatcher(statExcept("gone"))
	tr := &fakeTransport{}
	rep := d.Deliver(context.Background(), tr, Request{
		Attachment: attachment(tree.KindImage, "текст", "gone1.jpg", "a.jpg", "gone2.jpg"),
		Keyboard:   keyboard(),
	})
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, []string{"media", "text"}, tr.kinds())
	assert.Equal(t, "текст", tr.calls[0].items[0].Caption)
}

func TestCaptionFallsBackToTextWhenAllMediaMissing(t *testing.T) {
	d := newTestDispatcher(statExcept("gone"))
	tr := &fakeTransport{}
	rep := d.Deliver(context.Background(), tr, Request{
		Attachment: attachment(tree.KindImage, "текст", "gone.jpg"),
		Keyboard:   keyboard(),
	})
	assert.Equal(t, []string{"text"}, tr.kinds())
	assert.Equal(t, "текст", tr.calls[0].text)
	assert.True(t, tr.calls[0].keyboard)
	assert.Equal(t, 1, rep.Messages)
}

func TestNothingToSendSkipsPrompt(t *testing.T) {
	d := newTestDispatcher(statExcept("gone"))
	tr := &fakeTransport{}
	rep := d.Deliver(context.Background(), tr, Request{
		Attachment: attachment(tree.KindImage, "", "gone.jpg"),
		Keyboard:   keyboard(),
	})
	assert.Zero(t, rep.Messages)
	assert.False(t, rep.KeyboardSent)
	assert.Empty(t, tr.calls)
}

func TestFailureAbortsAndApologisesWithKeyboard(t *testing.T) {
	d := newTestDispatcher(statAll(1))
	tr := &fakeTransport{failAt: 2}
	rep := d.Deliver(context.Background(), tr, Request{
		Attachment: attachment(tree.KindFile, "", "a.pdf", "b.pdf", "c.pdf"),
		Keyboard:   keyboard(),
	})
	require.True(t, rep.Failed)
	require.Error(t, rep.Err)
	assert.Equal(t, []string{"media", "media", "text"}, tr.kinds())
	assert.True(t, tr.calls[2].keyboard)
	assert.Contains(t, tr.calls[2].text, "Извините")
	assert.True(t, rep.KeyboardSent)
}

func TestBatches(t *testing.T) {
	sizes := func(n int) []int {
		var out []int
		for _, b := range batches(make([]Item, n)) {
			out = append(out, len(b))
		}
		return out
	}
	assert.Nil(t, sizes(0))
	assert.Equal(t, []int{1}, sizes(1))
	assert.Equal(t, []int{10}, sizes(10))
	assert.Equal(t, []int{9, 2}, sizes(11))
	assert.Equal(t, []int{10, 10, 5}, sizes(25))
	assert.Equal(t, []int{10, 9, 2}, sizes(21))
}

func TestHomogeneousGroupProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ceil(N/10) groups and only the last item has a caption", prop.ForAll(
		func(n int, video bool, textLen int) bool {
			kind, ext := tree.KindImage, "jpg"
			if video {
				kind, ext = tree.KindVideo, "mp4"
			}
			text := strings.Repeat("a", textLen)
			tr := &fakeTransport{}
			d := newTestDispatcher(statAll(1))
			rep := d.Deliver(context.Background(), tr, Request{Attachment: attachment(kind, text, names("f", ext, n)...)})
			if rep.Failed {
				return false
			}

			groups, media := 0, 0
			for _, c := range tr.calls {
				switch c.kind {
				case "group":
					groups++
					if len(c.items) < 2 || len(c.items) > GroupMax {
						return false
					}
					media += len(c.items)
				case "media":
					media++
				}
			}
			if groups != (n+GroupMax-1)/GroupMax || media != n {
				return false
			}

			caps := tr.captions()
			last, _ := tr.lastItem()
			if textLen <= CaptionLimit {
				return len(caps) == 1 && last.Caption == text
			}
			return len(caps) == 0 && tr.calls[0].kind == "text"
		},
		gen.IntRange(2, 45), gen.Bool(), gen.IntRange(1, 2000),
	))

	properties.TestingRun(t)
}

func TestPulseStopsOnCancel(t *testing.T) {
	var ticks int
	stop := Pulse(context.Background(), 5*time.Millisecond, func(context.Context) { ticks++ })
	time.Sleep(30 * time.Millisecond)
	stop()
	after := ticks
	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, after, 2)
	assert.Equal(t, after, ticks)
	stop()
}
