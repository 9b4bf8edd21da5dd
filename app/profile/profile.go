// Package profile is the personal cabinet: the client card and logging out.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/delivery"
	"github.com/ewaproduct/ewabot/app/session"
	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/logger"
	"github.com/ewaproduct/ewabot/core/telegram/helpers"
	"github.com/ewaproduct/ewabot/core/telegram/keyboard"
	"github.com/ewaproduct/ewabot/core/telegram/state"
)

const (
	StateView    state.State = "profile.view"
	StateConfirm state.State = "profile.confirm"
)

// Clients is the part of the session store the cabinet uses.
type Clients interface {
	Client(ctx context.Context, chatID int64) (session.Client, error)
	SetLoggedIn(ctx context.Context, chatID int64, loggedIn bool) error
}

type Options struct {
	States    state.Manager
	Transport func(c tele.Context) delivery.Transport
	MainMenu  func(c tele.Context, text string) error
}

// Flow handles the cabinet conversation.
type Flow struct {
	clients Clients
	loc     locale.Localizer
	opts    Options

	back, exit, confirm, cancel string
}

func NewFlow(clients Clients, loc locale.Localizer, opts Options) *Flow {
	return &Flow{
		clients: clients,
		loc:     loc,
		opts:    opts,
		back:    loc.MustLocalize(locale.ButtonBack),
		exit:    loc.MustLocalize(locale.ProfileExitButton),
		confirm: loc.MustLocalize(locale.ProfileConfirmButton),
		cancel:  loc.MustLocalize(locale.ProfileCancelButton),
	}
}

func (f *Flow) Register() {
	f.opts.States.Handle(StateView, f.onView)
	f.opts.States.Handle(StateConfirm, f.onConfirm)
}

// Enter shows the client card.
func (f *Flow) Enter(c tele.Context) error {
	ctx := helpers.WithHandler(c, "profile.enter")
	return f.showCard(ctx, c)
}

func (f *Flow) onView(c tele.Context) error {
	ctx := helpers.WithHandler(c, "profile.view")
	uid := c.Sender().ID
	switch strings.TrimSpace(c.Text()) {
	case f.back:
		f.opts.States.Clear(uid)
		return f.opts.MainMenu(c, f.loc.MustLocalize(locale.MenuMainTitle))
	case f.exit:
		f.opts.States.SetState(uid, StateConfirm)
		kb := keyboard.ReplyButtons([]string{f.confirm}, []string{f.cancel})
		return f.opts.Transport(c).SendText(ctx, f.loc.MustLocalize(locale.ProfileExitConfirm), kb)
	}
	f.opts.States.Clear(uid)
	return state.Pass(c)
}

func (f *Flow) onConfirm(c tele.Context) error {
	ctx := helpers.WithHandler(c, "profile.confirm")
	uid := c.Sender().ID
	switch strings.TrimSpace(c.Text()) {
	case f.confirm:
		if err := f.clients.SetLoggedIn(ctx, helpers.ChatID(c), false); err != nil && !errors.Is(err, session.ErrClientNotFound) {
			return err
		}
		f.opts.States.Clear(uid)
		logger.Info(ctx, logger.CompProfile, "profile.logout", slog.String("status", "ok"))
		return f.opts.Transport(c).SendText(ctx, f.loc.MustLocalize(locale.ProfileLoggedOut), keyboard.RemoveKeyboard())
	case f.cancel:
		return f.showCard(ctx, c)
	}
	f.opts.States.Clear(uid)
	return state.Pass(c)
}

func (f *Flow) showCard(ctx context.Context, c tele.Context) error {
	uid := c.Sender().ID
	tr := f.opts.Transport(c)
	client, err := f.clients.Client(ctx, helpers.ChatID(c))
	if errors.Is(err, session.ErrClientNotFound) {
		f.opts.States.Clear(uid)
		return tr.SendText(ctx, f.loc.MustLocalize(locale.ProfileNotRegistered), keyboard.RemoveKeyboard())
	}
	if err != nil {
		return err
	}
	f.opts.States.SetState(uid, StateView)
	kb := keyboard.ReplyButtons([]string{f.back, f.exit})
	return tr.SendText(ctx, Card(f.loc, client), kb)
}

// Card renders the client's name and phone.
func Card(loc locale.Localizer, c session.Client) string {
	empty := loc.MustLocalize(locale.ProfileEmptyValue)
	name := c.FullName()
	if name == "" && c.Username != "" {
		name = "@" + c.Username
	}
	if name == "" {
		name = empty
	}
	phone := strings.TrimSpace(c.PhoneNumber)
	if phone == "" {
		phone = empty
	}
	return loc.MustLocalizeWithTemplate(locale.ProfileCard, name, phone)
}
