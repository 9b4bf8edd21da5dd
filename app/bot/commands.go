package bot

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/delivery"
	"github.com/ewaproduct/ewabot/app/navigator"
	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/logger"
	"github.com/ewaproduct/ewabot/core/telegram/commands"
	"github.com/ewaproduct/ewabot/core/telegram/helpers"
)

func (a *App) registerCommands() {
	a.registry.RegisterCommand("/start", commands.Command{
		Handler:     a.onStart,
		Description: a.loc.MustLocalize(locale.CommandStart),
	})
	a.registry.RegisterCommand("/menu", commands.Command{
		Handler:     a.onMenu,
		Description: a.loc.MustLocalize(locale.CommandMenu),
	})
	a.registry.RegisterCommand("/quiz", commands.Command{
		Handler:     a.quiz.Start,
		Description: a.loc.MustLocalize(locale.CommandQuiz),
		Aliases:     []string{a.loc.MustLocalize(locale.QuizTrigger)},
	})
	a.registry.RegisterCommand("/profile", commands.Command{
		Handler:     a.profile.Enter,
		Description: a.loc.MustLocalize(locale.ButtonProfile),
		Hidden:      true,
		Aliases:     []string{a.loc.MustLocalize(locale.ButtonProfile)},
	})
	if a.assistant != nil {
		a.registry.RegisterCommand("/assistant", commands.Command{
			Handler:     a.assistant.Enter,
			Description: a.loc.MustLocalize(locale.ButtonAssistant),
			Hidden:      true,
			Aliases:     []string{a.loc.MustLocalize(locale.ButtonAssistant)},
		})
	}
	a.registry.RegisterCommand("/tree", commands.Command{
		Handler:     a.onTree,
		Description: a.loc.MustLocalize(locale.CommandTree),
		AdminOnly:   true,
	})
	a.registry.SetTextFallback(a.onText)
}

// onStart registers the sender. Unverified clients take the survey first,
// everyone else lands on the main menu.
func (a *App) onStart(c tele.Context) error {
	ctx := helpers.WithHandler(c, "start")
	client, err := a.ensureClient(ctx, c)
	if err != nil {
		return err
	}
	if !client.IsLoggedIn {
		if err := a.sessions.SetLoggedIn(ctx, client.ChatID, true); err != nil {
			return err
		}
	}
	if c.Sender() != nil {
		a.states.Clear(c.Sender().ID)
	}
	logger.Info(ctx, logger.CompSessions, "client.start",
		slog.Int64("client_id", client.ID),
		slog.Bool("was_logged_in", client.IsLoggedIn),
		slog.Bool("verified", client.IsVerified),
	)
	if !client.IsVerified && c.Sender() != nil {
		return a.survey.Start(c)
	}
	return a.nav.ShowRoot(ctx, navigator.Request{ClientID: client.ID, Transport: a.transport(c)}, "")
}

func (a *App) onMenu(c tele.Context) error {
	if c.Sender() != nil {
		a.states.Clear(c.Sender().ID)
	}
	return a.mainMenu(c, a.loc.MustLocalize(locale.MenuMainTitle))
}

// onTree prints the whole menu outline to the admin.
func (a *App) onTree(c tele.Context) error {
	ctx := helpers.WithHandler(c, "tree")
	outline, err := a.tree.Outline(ctx)
	if err != nil {
		return err
	}
	if outline == "" {
		outline = a.loc.MustLocalize(locale.TreeEmpty)
	}
	tr := a.transport(c)
	for _, part := range delivery.Chunk(outline, delivery.MessageLimit) {
		if err := tr.SendText(ctx, part, nil); err != nil {
			return err
		}
	}
	return nil
}

// onText hands free text the navigator accepts over to it. Anything else
// gets no reply.
func (a *App) onText(c tele.Context) error {
	ctx := helpers.WithHandler(c, "nav")
	id, err := a.clientID(c)
	if err != nil {
		return err
	}
	ok, err := a.nav.Accepts(ctx, id, c.Text())
	if err != nil || !ok {
		return err
	}
	_, err = a.nav.Handle(ctx, navigator.Request{
		ClientID:  id,
		Text:      c.Text(),
		Transport: a.transport(c),
	})
	return err
}
