// Package onboarding asks a new client four survey questions before the
// menu opens. Finishing the survey marks the client verified.
package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/delivery"
	"github.com/ewaproduct/ewabot/app/session"
	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/logger"
	"github.com/ewaproduct/ewabot/core/telegram/helpers"
	"github.com/ewaproduct/ewabot/core/telegram/keyboard"
	"github.com/ewaproduct/ewabot/core/telegram/state"
)

// Survey states, in the order they are asked.
const (
	StateStatus     state.State = "onboarding.status"
	StateExperience state.State = "onboarding.experience"
	StateGoals      state.State = "onboarding.goals"
	StatePriority   state.State = "onboarding.priority"
)

// Clients is the part of the session store the survey uses.
type Clients interface {
	SetVerified(ctx context.Context, chatID int64, verified bool) error
}

type Options struct {
	States    state.Manager
	Transport func(c tele.Context) delivery.Transport
	MainMenu  func(c tele.Context, text string) error
}

type stage struct {
	state   state.State
	prompt  string
	options []string
	rows    [][]string
}

// Flow walks the client through the survey stages.
type Flow struct {
	clients Clients
	loc     locale.Localizer
	opts    Options
	stages  []stage
}

func NewFlow(clients Clients, loc locale.Localizer, opts Options) *Flow {
	f := &Flow{clients: clients, loc: loc, opts: opts}
	f.stages = []stage{
		f.stage(StateStatus, locale.OnboardingStatus, locale.OnboardingStatusOptions, 1, 2),
		f.stage(StateExperience, locale.OnboardingExperience, locale.OnboardingExperienceOptions, 2),
		f.stage(StateGoals, locale.OnboardingGoals, locale.OnboardingGoalsOptions, 2),
		f.stage(StatePriority, locale.OnboardingPriority, locale.OnboardingPriorityOptions, 2),
	}
	return f
}

func (f *Flow) stage(st state.State, prompt, options string, widths ...int) stage {
	labels := lo.FilterMap(strings.Split(f.loc.MustLocalize(options), "\n"), func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
	return stage{
		state:   st,
		prompt:  f.loc.MustLocalize(prompt),
		options: labels,
		rows:    Rows(labels, widths...),
	}
}

// Register binds every stage to its answer handler.
func (f *Flow) Register() {
	for i := range f.stages {
		f.opts.States.Handle(f.stages[i].state, func(c tele.Context) error { return f.onAnswer(c, i) })
	}
}

// Start asks the first question. Any earlier conversation is dropped.
func (f *Flow) Start(c tele.Context) error {
	ctx := helpers.WithHandler(c, "onboarding.start")
	f.opts.States.Clear(c.Sender().ID)
	logger.Info(ctx, logger.CompOnboard, "onboarding.start")
	return f.ask(ctx, c, 0, f.stages[0].prompt)
}

func (f *Flow) onAnswer(c tele.Context, i int) error {
	st := f.stages[i]
	ctx := helpers.WithHandler(c, string(st.state))
	answer := strings.TrimSpace(c.Text())
	if !lo.Contains(st.options, answer) {
		return f.ask(ctx, c, i, f.loc.MustLocalize(locale.OnboardingChooseOption))
	}
	logger.Debug(ctx, logger.CompOnboard, "onboarding.answer",
		slog.String("stage", string(st.state)),
		slog.String("answer", answer),
	)
	if i+1 < len(f.stages) {
		return f.ask(ctx, c, i+1, f.stages[i+1].prompt)
	}
	return f.finish(ctx, c)
}

func (f *Flow) finish(ctx context.Context, c tele.Context) error {
	err := f.clients.SetVerified(ctx, helpers.ChatID(c), true)
	if err != nil && !errors.Is(err, session.ErrClientNotFound) {
		return err
	}
	f.opts.States.Clear(c.Sender().ID)
	logger.Info(ctx, logger.CompOnboard, "onboarding.done", slog.Bool("client_known", err == nil))
	return f.opts.MainMenu(c, f.loc.MustLocalize(locale.MenuReady))
}

func (f *Flow) ask(ctx context.Context, c tele.Context, i int, text string) error {
	f.opts.States.SetState(c.Sender().ID, f.stages[i].state)
	return f.opts.Transport(c).SendText(ctx, text, keyboard.ReplyButtons(f.stages[i].rows...))
}

// Rows lays labels out in rows of the given widths; the last width repeats.
func Rows(labels []string, widths ...int) [][]string {
	if len(widths) == 0 {
		widths = []int{1}
	}
	var rows [][]string
	for w := 0; len(labels) > 0; w++ {
		n := widths[min(w, len(widths)-1)]
		n = max(1, min(n, len(labels)))
		rows = append(rows, labels[:n])
		labels = labels[n:]
	}
	return rows
}
