package quiz

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/delivery"
	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/logger"
	"github.com/ewaproduct/ewabot/core/telegram/helpers"
	"github.com/ewaproduct/ewabot/core/telegram/keyboard"
	"github.com/ewaproduct/ewabot/core/telegram/state"
)

// Conversation states of the quiz.
const (
	StateGoals     state.State = "quiz.goals"
	StateAnswering state.State = "quiz.answering"
	StateResults   state.State = "quiz.results"
)

const tempSessionID = "quiz_session_id"

// FlowOptions holds the collaborators of the telegram side of the quiz.
type FlowOptions struct {
	States state.Manager
	// Client resolves the client id of the update sender.
	Client func(c tele.Context) (int64, error)
	// Transport builds the outbound transport of the update chat.
	Transport func(c tele.Context) delivery.Transport
	// MainMenu shows text with the main menu keyboard.
	MainMenu func(c tele.Context, text string) error
}

// Flow binds the engine to conversation states.
type Flow struct {
	engine *Engine
	loc    locale.Localizer
	opts   FlowOptions
	back   string
	bonus  string
	full   string
}

func NewFlow(e *Engine, loc locale.Localizer, opts FlowOptions) *Flow {
	return &Flow{
		engine: e,
		loc:    loc,
		opts:   opts,
		back:   loc.MustLocalize(locale.ButtonBack),
		bonus:  loc.MustLocalize(locale.QuizBonusButton),
		full:   loc.MustLocalize(locale.QuizFullButton),
	}
}

// Register binds the state handlers.
func (f *Flow) Register() {
	f.opts.States.Handle(StateGoals, f.onGoals)
	f.opts.States.Handle(StateAnswering, f.onAnswer)
	f.opts.States.Handle(StateResults, f.onResults)
}

// Start begins a new quiz for the sender.
func (f *Flow) Start(c tele.Context) error {
	ctx := helpers.WithHandler(c, "quiz.start")
	clientID, err := f.opts.Client(c)
	if err != nil {
		return err
	}
	id, reply, err := f.engine.Start(ctx, clientID)
	if err != nil {
		return err
	}
	uid := c.Sender().ID
	f.opts.States.Clear(uid)
	f.opts.States.SetTemp(uid, tempSessionID, id)
	return f.apply(ctx, c, reply)
}

func (f *Flow) onGoals(c tele.Context) error {
	ctx := helpers.WithHandler(c, "quiz.goals")
	id, ok := f.sessionID(c)
	if !ok {
		return f.restart(ctx, c, nil)
	}
	var (
		reply Reply
		err   error
	)
	if strings.TrimSpace(c.Text()) == f.back {
		reply, err = f.engine.Back(ctx, id, StageGoals)
	} else {
		reply, err = f.engine.SubmitGoals(ctx, id, c.Text())
	}
	return f.finish(ctx, c, reply, err)
}

func (f *Flow) onAnswer(c tele.Context) error {
	ctx := helpers.WithHandler(c, "quiz.answer")
	id, ok := f.sessionID(c)
	if !ok {
		return f.restart(ctx, c, nil)
	}
	var (
		reply Reply
		err   error
	)
	if strings.TrimSpace(c.Text()) == f.back {
		reply, err = f.engine.Back(ctx, id, StageAnswering)
	} else {
		reply, err = f.engine.Answer(ctx, id, c.Text())
	}
	return f.finish(ctx, c, reply, err)
}

func (f *Flow) onResults(c tele.Context) error {
	ctx := helpers.WithHandler(c, "quiz.results")
	id, ok := f.sessionID(c)
	if !ok {
		return f.restart(ctx, c, nil)
	}
	var (
		reply Reply
		err   error
	)
	switch strings.TrimSpace(c.Text()) {
	case f.bonus:
		reply, err = f.engine.Bonus(ctx, id)
	case f.full:
		reply, err = f.engine.Full(ctx, id)
	case f.back:
		reply, err = f.engine.Back(ctx, id, StageResults)
	default:
		// The quiz is over; anything else belongs to the rest of the bot.
		f.opts.States.Clear(c.Sender().ID)
		return state.Pass(c)
	}
	return f.finish(ctx, c, reply, err)
}

func (f *Flow) finish(ctx context.Context, c tele.Context, reply Reply, err error) error {
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrStateLost) {
		return f.restart(ctx, c, err)
	}
	if err != nil {
		return err
	}
	return f.apply(ctx, c, reply)
}

func (f *Flow) apply(ctx context.Context, c tele.Context, reply Reply) error {
	uid := c.Sender().ID
	switch reply.Stage {
	case StageExit:
		f.opts.States.Clear(uid)
		text := f.loc.MustLocalize(locale.MenuMainTitle)
		if n := len(reply.Messages); n > 0 {
			text = reply.Messages[n-1]
		}
		return f.opts.MainMenu(c, text)
	case StageGoals:
		f.opts.States.SetState(uid, StateGoals)
	case StageAnswering:
		f.opts.States.SetState(uid, StateAnswering)
	case StageResults:
		f.opts.States.SetState(uid, StateResults)
	}
	tr := f.opts.Transport(c)
	for i, msg := range reply.Messages {
		var kb *tele.ReplyMarkup
		if i == len(reply.Messages)-1 && len(reply.Buttons) > 0 {
			kb = keyboard.ReplyButtons(reply.Buttons...)
		}
		if err := tr.SendText(ctx, msg, kb); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flow) restart(ctx context.Context, c tele.Context, cause error) error {
	attrs := []slog.Attr{slog.String("status", "restart")}
	if cause != nil {
		attrs = append(attrs, slog.String("err", cause.Error()))
	}
	logger.Warn(ctx, logger.CompQuiz, "quiz.state_lost", attrs...)
	f.opts.States.Clear(c.Sender().ID)
	return f.opts.MainMenu(c, f.loc.MustLocalize(locale.QuizRestart))
}

func (f *Flow) sessionID(c tele.Context) (int64, bool) {
	return f.opts.States.GetTempInt64(c.Sender().ID, tempSessionID)
}
