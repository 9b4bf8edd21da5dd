// Package config is the application level configuration: the reusable core
// sections plus database, content and assistant settings.
package config

import (
	"fmt"
	"strings"

	"github.com/ewaproduct/ewabot/app/assistant"
	coreconfig "github.com/ewaproduct/ewabot/core/config"
	coredatabase "github.com/ewaproduct/ewabot/core/database"
	"github.com/ewaproduct/ewabot/core/locale"
)

// ContentConfig points at the seed file and the media files it references.
type ContentConfig struct {
	SeedFile  string `yaml:"seed_file" envconfig:"CONTENT_SEED_FILE"`
	MediaRoot string `yaml:"media_root" envconfig:"CONTENT_MEDIA_ROOT"`
	// PhotoMaxBytes overrides the size above which images go out as documents.
	PhotoMaxBytes int64 `yaml:"photo_max_bytes" envconfig:"CONTENT_PHOTO_MAX_BYTES"`
	// Columns is the number of menu buttons per row.
	Columns int `yaml:"columns" envconfig:"CONTENT_COLUMNS"`
}

// Config is the whole bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Language  string              `yaml:"language" envconfig:"BOT_LANGUAGE"`
	Database  coredatabase.Config `yaml:"database"`
	Content   ContentConfig       `yaml:"content"`
	Assistant assistant.Config    `yaml:"assistant"`
}

// CoreConfig exposes the embedded core section to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates every section.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}
	if err := cfg.Assistant.Normalize(); err != nil {
		return err
	}

	cfg.Language = strings.ToLower(strings.TrimSpace(cfg.Language))
	switch cfg.Language {
	case "":
		cfg.Language = locale.Ru
	case locale.Ru, locale.En:
	default:
		return fmt.Errorf("invalid language %q; allowed: ru, en", cfg.Language)
	}

	cfg.Content.SeedFile = strings.TrimSpace(cfg.Content.SeedFile)
	if cfg.Content.PhotoMaxBytes < 0 {
		return fmt.Errorf("content.photo_max_bytes must be >= 0")
	}
	if cfg.Content.Columns < 0 {
		return fmt.Errorf("content.columns must be >= 0")
	}
	return nil
}
