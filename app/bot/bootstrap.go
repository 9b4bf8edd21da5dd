package bot

import (
	"context"
	"fmt"

	"github.com/ewaproduct/ewabot/app/assistant"
	appconfig "github.com/ewaproduct/ewabot/app/config"
	"github.com/ewaproduct/ewabot/app/quiz"
	"github.com/ewaproduct/ewabot/app/tree"
	"github.com/ewaproduct/ewabot/core/bootstrap"
	corecmd "github.com/ewaproduct/ewabot/core/cmd"
)

// Seeders fill the menu tree, the quiz catalog and the knowledge base from
// the content seed file. Each of them leaves non-empty tables alone.
func Seeders(cfg *appconfig.Config) []bootstrap.Seeder {
	path := cfg.Content.SeedFile
	seeders := []bootstrap.Seeder{
		tree.Seeder{Path: path},
		quiz.Seeder{Path: path},
	}
	if cfg.Assistant.Enabled && cfg.Assistant.APIKey != "" {
		client := assistant.NewClient(cfg.Assistant)
		seeders = append(seeders, assistant.Seeder{
			Path:     path,
			Embedder: assistant.NewHTTPEmbedder(client, cfg.Assistant.EmbeddingModel),
		})
	}
	return seeders
}

// LoadConfig adapts appconfig.Load to the runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := appconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap prepares the infrastructure and assembles the App.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*appconfig.Config)
	if !ok {
		return nil, fmt.Errorf("bot: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Modules:  bootstrap.Modules{Seeders: Seeders(cfg)},
	})
	if err != nil {
		return nil, err
	}
	app, err := New(cfg, res.DB, Options{})
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return app, nil
}
