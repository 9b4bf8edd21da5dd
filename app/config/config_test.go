package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/ewaproduct/ewabot/core/database"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  admin_id: 42
database:
  driver: sqlite
  path: /tmp/ewabot.db
content:
  seed_file: content.yaml
  media_root: media
assistant:
  enabled: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.CoreConfig().Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, coredatabase.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 1, cfg.Database.MaxConnections)
	assert.Equal(t, "ru", cfg.Language)
	assert.Equal(t, "content.yaml", cfg.Content.SeedFile)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "999:zzz")
	t.Setenv("BOT_LANGUAGE", "EN")
	t.Setenv("ASSISTANT_ENABLED", "true")
	t.Setenv("ASSISTANT_API_KEY", "sk-test")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "999:zzz", cfg.Telegram.Token)
	assert.Equal(t, "en", cfg.Language)
	assert.True(t, cfg.Assistant.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.Assistant.ChatModel)
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]string{
		"missing token": `
database: {driver: sqlite, path: x.db}
`,
		"unknown language": `
telegram: {token: "1:a"}
language: de
database: {driver: sqlite, path: x.db}
`,
		"postgres without host": `
telegram: {token: "1:a"}
database: {driver: postgres}
`,
		"assistant without key": `
telegram: {token: "1:a"}
database: {driver: sqlite, path: x.db}
assistant: {enabled: true}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestCoreConfigNil(t *testing.T) {
	var cfg *Config
	assert.Nil(t, cfg.CoreConfig())
}
