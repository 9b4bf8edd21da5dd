package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/delivery"
	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/logger"
	"github.com/ewaproduct/ewabot/core/telegram/helpers"
	"github.com/ewaproduct/ewabot/core/telegram/keyboard"
	"github.com/ewaproduct/ewabot/core/telegram/state"
)

// StateChat marks a user talking to the assistant.
const StateChat state.State = "assistant.chat"

// Answerer is what the chat mode needs from the Service.
type Answerer interface {
	Answer(ctx context.Context, clientID int64, prompt string) (Answer, error)
	Forget(clientID int64)
}

// FlowOptions holds the telegram collaborators of the chat mode.
type FlowOptions struct {
	States    state.Manager
	Client    func(c tele.Context) (int64, error)
	Transport func(c tele.Context) delivery.Transport
	MainMenu  func(c tele.Context, text string) error
	// PulseInterval is the typing indicator period; 4s by default.
	PulseInterval time.Duration
}

// Flow is the in-chat assistant mode.
type Flow struct {
	svc  Answerer
	loc  locale.Localizer
	opts FlowOptions
	back string
}

func NewFlow(svc Answerer, loc locale.Localizer, opts FlowOptions) *Flow {
	if opts.PulseInterval <= 0 {
		opts.PulseInterval = 4 * time.Second
	}
	return &Flow{svc: svc, loc: loc, opts: opts, back: loc.MustLocalize(locale.ButtonBack)}
}

func (f *Flow) Register() {
	f.opts.States.Handle(StateChat, f.onText)
}

// Enter switches the sender into chat mode.
func (f *Flow) Enter(c tele.Context) error {
	ctx := helpers.WithHandler(c, "assistant.enter")
	clientID, err := f.opts.Client(c)
	if err != nil {
		return err
	}
	f.svc.Forget(clientID)
	f.opts.States.Clear(c.Sender().ID)
	f.opts.States.SetState(c.Sender().ID, StateChat)
	return f.opts.Transport(c).SendText(ctx, f.loc.MustLocalize(locale.AssistantIntro), f.keyboard())
}

func (f *Flow) onText(c tele.Context) error {
	ctx := helpers.WithHandler(c, "assistant.chat")
	text := strings.TrimSpace(c.Text())
	if text == f.back {
		f.opts.States.Clear(c.Sender().ID)
		return f.opts.MainMenu(c, f.loc.MustLocalize(locale.MenuMainTitle))
	}
	if text == "" {
		return nil
	}
	clientID, err := f.opts.Client(c)
	if err != nil {
		return err
	}
	tr := f.opts.Transport(c)
	stop := delivery.Pulse(ctx, f.opts.PulseInterval, func(ctx context.Context) {
		_ = tr.Action(ctx, tele.Typing)
	})
	ans, err := f.svc.Answer(ctx, clientID, text)
	stop()
	if err != nil {
		logger.Error(ctx, logger.CompAssistant, "assistant.answer",
			slog.String("status", "error"),
			slog.String("err", err.Error()),
		)
		return tr.SendText(ctx, f.loc.MustLocalize(locale.AssistantUnavailable), f.keyboard())
	}
	chunks := delivery.Chunk(ans.Text, delivery.MessageLimit)
	for i, chunk := range chunks {
		var kb *tele.ReplyMarkup
		if i == len(chunks)-1 {
			kb = f.keyboard()
		}
		if err := tr.SendText(ctx, chunk, kb); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flow) keyboard() *tele.ReplyMarkup {
	return keyboard.ReplyButtons([]string{f.back})
}
