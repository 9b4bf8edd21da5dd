// Package bot wires the onboarding survey, the menu tree, the quiz, the
// assistant and the profile into the telegram runtime.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/assistant"
	appconfig "github.com/ewaproduct/ewabot/app/config"
	"github.com/ewaproduct/ewabot/app/delivery"
	"github.com/ewaproduct/ewabot/app/navigator"
	"github.com/ewaproduct/ewabot/app/onboarding"
	"github.com/ewaproduct/ewabot/app/profile"
	"github.com/ewaproduct/ewabot/app/quiz"
	"github.com/ewaproduct/ewabot/app/session"
	"github.com/ewaproduct/ewabot/app/tree"
	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/logger"
	coretelegram "github.com/ewaproduct/ewabot/core/telegram"
	"github.com/ewaproduct/ewabot/core/telegram/helpers"
	"github.com/ewaproduct/ewabot/core/telegram/keyboard"
	"github.com/ewaproduct/ewabot/core/telegram/middleware"
	"github.com/ewaproduct/ewabot/core/telegram/router"
	tgsender "github.com/ewaproduct/ewabot/core/telegram/sender"
	"github.com/ewaproduct/ewabot/core/telegram/state"
)

// Options overrides collaborators, mostly for tests.
type Options struct {
	Localizer locale.Localizer
	States    state.Manager
	Sender    *tgsender.Dispatcher
	// Transport replaces the telebot transport.
	Transport func(c tele.Context) delivery.Transport
	// Assistant replaces the HTTP backed assistant service.
	Assistant assistant.Answerer
}

// App is the assembled bot. It implements the runner's TelegramApp.
type App struct {
	cfg      *appconfig.Config
	db       *sqlx.DB
	loc      locale.Localizer
	states   state.Manager
	sender   *tgsender.Dispatcher
	registry *coretelegram.Registry
	locks    *middleware.UserLocks

	tree     *tree.Store
	sessions *session.Store
	nav      *navigator.Navigator

	quiz      *quiz.Flow
	assistant *assistant.Flow
	profile   *profile.Flow
	survey    *onboarding.Flow

	transport  func(c tele.Context) delivery.Transport
	embedCache *assistant.CachedEmbedder
}

// New builds the App on top of an opened and migrated database.
func New(cfg *appconfig.Config, db *sqlx.DB, opts Options) (*App, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("bot: config and database are required")
	}
	loc := opts.Localizer
	if loc == nil {
		var err error
		if loc, err = locale.NewLocalizer(cfg.Language); err != nil {
			return nil, fmt.Errorf("bot: %w", err)
		}
	}
	a := &App{
		cfg:      cfg,
		db:       db,
		loc:      loc,
		states:   opts.States,
		sender:   opts.Sender,
		registry: coretelegram.NewRegistry(),
		locks:    middleware.NewUserLocks(),
		tree:     tree.NewStore(db),
		sessions: session.NewStore(db),
	}
	if a.states == nil {
		a.states = state.NewMemoryManager()
	}
	if a.sender == nil {
		a.sender = tgsender.NewDispatcher(coretelegram.SenderOptionsFromConfig(cfg.Sender))
	}
	a.transport = opts.Transport
	if a.transport == nil {
		a.transport = func(c tele.Context) delivery.Transport {
			return delivery.NewTeleTransport(c, a.sender)
		}
	}

	svc := opts.Assistant
	if svc == nil && cfg.Assistant.Enabled && cfg.Assistant.APIKey != "" {
		s, cache, err := NewAssistant(cfg.Assistant, db)
		if err != nil {
			return nil, fmt.Errorf("bot: %w", err)
		}
		svc, a.embedCache = s, cache
	}

	extras := []keyboard.Button{{Text: loc.MustLocalize(locale.QuizTrigger)}}
	switch {
	case cfg.Assistant.MiniAppURL != "":
		extras = append(extras, keyboard.Button{Text: loc.MustLocalize(locale.ButtonAssistant), WebAppURL: cfg.Assistant.MiniAppURL})
	case svc != nil:
		extras = append(extras, keyboard.Button{Text: loc.MustLocalize(locale.ButtonAssistant)})
	}
	extras = append(extras, keyboard.Button{Text: loc.MustLocalize(locale.ButtonProfile)})

	dispatcher := delivery.NewDispatcher(delivery.Options{
		MediaRoot:     cfg.Content.MediaRoot,
		PhotoMaxBytes: cfg.Content.PhotoMaxBytes,
	}, loc)
	a.nav = navigator.New(a.tree, a.sessions, dispatcher, loc, navigator.Options{
		MainExtras: extras,
		Columns:    cfg.Content.Columns,
	})

	quizStore := quiz.NewStore(db)
	a.quiz = quiz.NewFlow(quiz.NewEngine(quizStore, quizStore, loc), loc, quiz.FlowOptions{
		States:    a.states,
		Client:    a.clientID,
		Transport: a.transport,
		MainMenu:  a.mainMenu,
	})
	a.quiz.Register()

	a.profile = profile.NewFlow(a.sessions, loc, profile.Options{
		States:    a.states,
		Transport: a.transport,
		MainMenu:  a.mainMenu,
	})
	a.profile.Register()

	a.survey = onboarding.NewFlow(a.sessions, loc, onboarding.Options{
		States:    a.states,
		Transport: a.transport,
		MainMenu:  a.mainMenu,
	})
	a.survey.Register()

	if svc != nil && cfg.Assistant.MiniAppURL == "" {
		a.assistant = assistant.NewFlow(svc, loc, assistant.FlowOptions{
			States:    a.states,
			Client:    a.clientID,
			Transport: a.transport,
			MainMenu:  a.mainMenu,
		})
		a.assistant.Register()
	}

	a.registerCommands()
	return a, nil
}

// NewAssistant builds the HTTP backed RAG service from cfg. Query embeddings
// go through the returned cache, which the caller closes.
func NewAssistant(cfg assistant.Config, db *sqlx.DB) (*assistant.Service, *assistant.CachedEmbedder, error) {
	client := assistant.NewClient(cfg)
	cache, err := assistant.NewCachedEmbedder(context.Background(),
		assistant.NewHTTPEmbedder(client, cfg.EmbeddingModel), cfg.CacheTTL())
	if err != nil {
		return nil, nil, err
	}
	svc := assistant.NewService(
		cache,
		assistant.NewKnowledge(db),
		assistant.NewChatLLM(client, cfg.ChatModel),
		assistant.NewHistory(cfg.HistoryLimit),
		assistant.Options{TopK: cfg.TopK, Rules: cfg.Rules},
	)
	return svc, cache, nil
}

// Registry exposes the command registry.
func (a *App) Registry() *coretelegram.Registry { return a.registry }

// TelegramRunOptions assembles middlewares and routes for the runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	mws := coretelegram.DefaultMiddlewares(core, coretelegram.MiddlewareOptions{
		OnLimited: a.notify(locale.ErrorRateLimit),
		OnPanic:   a.notify(locale.ErrorGeneric),
		Locks:     a.locks,
	})

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.notify(locale.ErrorAdminOnly),
	})
	routes = append(routes, router.TextRoutes(a.states, a.registry, router.TextOptions{})...)
	for i := range routes {
		routes[i].Handler = a.guard(routes[i].Handler)
	}

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Sender:      a.sender,
		Middlewares: mws,
		Routes:      routes,
		OnStart: func(_ context.Context, rt coretelegram.Runtime) error {
			var name string
			if rt.Bot != nil && rt.Bot.Me != nil {
				name = rt.Bot.Me.Username
			}
			logger.TWire.Info("bot wired",
				slog.String("event", "wire"),
				slog.String("bot", name),
				slog.Int("commands", len(rt.Registry.Commands())),
				slog.Bool("assistant", a.assistant != nil),
			)
			return nil
		},
		OnStop: func(context.Context, coretelegram.Runtime) error {
			if a.embedCache != nil {
				if err := a.embedCache.Close(); err != nil {
					logger.TWire.Warn("embedding cache close failed", slog.String("err", err.Error()))
				}
			}
			return a.db.Close()
		},
	}, nil
}

// guard is the error boundary of every route. A failed handler leaves any
// conversation, and the user gets an apology with the main menu.
func (a *App) guard(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		err := h(c)
		if err == nil {
			return nil
		}
		ctx := helpers.BuildContext(c)
		logger.Error(ctx, logger.CompTelegram, "handler.failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		if c.Sender() != nil {
			a.states.Clear(c.Sender().ID)
		}
		text := a.loc.MustLocalize(locale.ErrorGeneric)
		kb, menuErr := a.nav.MainMenu(ctx)
		if menuErr != nil {
			kb = nil
		}
		if sendErr := a.transport(c).SendText(ctx, text, kb); sendErr != nil {
			logger.Warn(ctx, logger.CompTelegram, "apology.failed",
				slog.String("status", "fail"),
				slog.String("err", sendErr.Error()),
			)
		}
		return nil
	}
}

func (a *App) notify(id string) tele.HandlerFunc {
	return func(c tele.Context) error {
		helpers.Notify(c, a.sender, a.loc.MustLocalize(id))
		return nil
	}
}

func (a *App) clientID(c tele.Context) (int64, error) {
	client, err := a.ensureClient(helpers.BuildContext(c), c)
	if err != nil {
		return 0, err
	}
	return client.ID, nil
}

func (a *App) ensureClient(ctx context.Context, c tele.Context) (session.Client, error) {
	var p session.Profile
	if u := c.Sender(); u != nil {
		p = session.Profile{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
	}
	return a.sessions.EnsureClient(ctx, helpers.ChatID(c), p)
}

// mainMenu returns the client to the root and shows text with the main keyboard.
func (a *App) mainMenu(c tele.Context, text string) error {
	ctx := helpers.BuildContext(c)
	id, err := a.clientID(c)
	if err != nil {
		return err
	}
	return a.nav.ShowRoot(ctx, navigator.Request{ClientID: id, Transport: a.transport(c)}, text)
}
