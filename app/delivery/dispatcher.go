// Package delivery sends the content of a menu node within Telegram limits.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/tree"
	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/logger"
)

var errNoTransport = errors.New("delivery: nil transport")

// Transport is the outbound surface the dispatcher needs.
type Transport interface {
	SendText(ctx context.Context, text string, kb *tele.ReplyMarkup) error
	SendMedia(ctx context.Context, item Item) error
	SendGroup(ctx context.Context, items []Item) error
	Action(ctx context.Context, action tele.ChatAction) error
}

// Options configures a Dispatcher.
type Options struct {
	MediaRoot     string
	PhotoMaxBytes int64
	PulseInterval time.Duration
	// Stat overrides file lookup, mostly for tests.
	Stat StatFunc
}

// Request is one delivery.
type Request struct {
	Attachment *tree.Attachment
	// Fallback replaces an empty attachment text.
	Fallback string
	Keyboard *tele.ReplyMarkup
	// Prompt carries the keyboard after media; defaults to MenuNextPrompt.
	Prompt string
}

// Report summarises what went out.
type Report struct {
	Messages     int
	KeyboardSent bool
	Skipped      int
	Failed       bool
	Err          error
}

// Dispatcher turns attachments into Telegram sends.
type Dispatcher struct {
	planner planner
	pulse   time.Duration
	loc     locale.Localizer
}

// NewDispatcher builds a dispatcher with defaults for zero options.
func NewDispatcher(opts Options, loc locale.Localizer) *Dispatcher {
	if opts.PhotoMaxBytes <= 0 {
		opts.PhotoMaxBytes = PhotoMaxBytes
	}
	if opts.PulseInterval <= 0 {
		opts.PulseInterval = 4 * time.Second
	}
	if opts.Stat == nil {
		opts.Stat = osStat
	}
	return &Dispatcher{
		planner: planner{root: opts.MediaRoot, photoMax: opts.PhotoMaxBytes, stat: opts.Stat},
		pulse:   opts.PulseInterval,
		loc:     loc,
	}
}

// Plan exposes the planning step.
func (d *Dispatcher) Plan(ctx context.Context, req Request) Plan {
	text := req.Fallback
	if req.Attachment != nil && strings.TrimSpace(req.Attachment.Text) != "" {
		text = req.Attachment.Text
	}
	return d.planner.plan(ctx, req.Attachment, text)
}

// Deliver sends the attachment. Sends are strictly sequential. On a transport
// error the rest is dropped and an apology carrying the keyboard goes out.
func (d *Dispatcher) Deliver(ctx context.Context, tr Transport, req Request) Report {
	start := time.Now()
	if tr == nil {
		return Report{Failed: true, Err: errNoTransport}
	}
	plan := d.Plan(ctx, req)
	rep := Report{Skipped: len(plan.Skipped)}

	stop := Pulse(ctx, d.pulse, func(ctx context.Context) {
		_ = tr.Action(ctx, plan.Action())
	})
	err := d.send(ctx, tr, plan, req, &rep)
	stop()

	if err != nil {
		rep.Failed, rep.Err = true, err
		logger.Error(ctx, logger.CompDelivery, "delivery.failed",
			slog.String("status", "error"),
			slog.Int("messages", rep.Messages),
			slog.String("err", err.Error()),
		)
		if aerr := tr.SendText(ctx, d.loc.MustLocalize(locale.DeliveryApology), req.Keyboard); aerr != nil {
			logger.Error(ctx, logger.CompDelivery, "delivery.apology_failed",
				slog.String("status", "error"),
				slog.String("err", aerr.Error()),
			)
		} else if req.Keyboard != nil {
			rep.KeyboardSent = true
		}
	}

	logger.Info(ctx, logger.CompDelivery, "delivery.done",
		slog.Int("messages", rep.Messages),
		slog.Int("skipped", rep.Skipped),
		slog.Bool("keyboard", rep.KeyboardSent),
		slog.Bool("failed", rep.Failed),
		slog.Duration("duration", time.Since(start)),
	)
	return rep
}

func (d *Dispatcher) send(ctx context.Context, tr Transport, plan Plan, req Request, rep *Report) error {
	sendChunks := func(chunks []string, withKeyboard bool) error {
		for i, chunk := range chunks {
			var kb *tele.ReplyMarkup
			if withKeyboard && i == len(chunks)-1 {
				kb = req.Keyboard
			}
			if err := tr.SendText(ctx, chunk, kb); err != nil {
				return err
			}
			rep.Messages++
			if kb != nil {
				rep.KeyboardSent = true
			}
		}
		return nil
	}

	onlyText := !plan.HasMedia() && len(plan.Trailing) == 0
	if err := sendChunks(plan.Leading, onlyText); err != nil {
		return err
	}

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if len(step) == 1 {
			err = tr.SendMedia(ctx, step[0])
		} else {
			err = tr.SendGroup(ctx, step)
		}
		if err != nil {
			return err
		}
		rep.Messages++
	}

	if err := sendChunks(plan.Trailing, true); err != nil {
		return err
	}

	if req.Keyboard != nil && !rep.KeyboardSent && rep.Messages > 0 {
		prompt := req.Prompt
		if prompt == "" {
			prompt = d.loc.MustLocalize(locale.MenuNextPrompt)
		}
		if err := tr.SendText(ctx, prompt, req.Keyboard); err != nil {
			return err
		}
		rep.Messages++
		rep.KeyboardSent = true
	}
	return nil
}
