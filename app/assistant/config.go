package assistant

import (
	"fmt"
	"strings"
	"time"
)

// Config configures the OpenAI-compatible backend and the chat mode.
type Config struct {
	Enabled        bool   `yaml:"enabled" envconfig:"ASSISTANT_ENABLED"`
	BaseURL        string `yaml:"base_url" envconfig:"ASSISTANT_BASE_URL"`
	APIKey         string `yaml:"api_key" envconfig:"ASSISTANT_API_KEY"`
	ChatModel      string `yaml:"chat_model" envconfig:"ASSISTANT_CHAT_MODEL"`
	EmbeddingModel string `yaml:"embedding_model" envconfig:"ASSISTANT_EMBEDDING_MODEL"`
	TopK           int    `yaml:"top_k" envconfig:"ASSISTANT_TOP_K"`
	HistoryLimit   int    `yaml:"history_limit" envconfig:"ASSISTANT_HISTORY_LIMIT"`
	// MiniAppURL turns the assistant button into a WebApp launcher.
	MiniAppURL string `yaml:"miniapp_url" envconfig:"ASSISTANT_MINIAPP_URL"`
	TimeoutMS  int    `yaml:"timeout_ms" envconfig:"ASSISTANT_TIMEOUT_MS"`
	// CacheTTLSeconds keeps query embeddings in memory; 0 means one hour.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" envconfig:"ASSISTANT_CACHE_TTL_SECONDS"`
	// Rules is prepended to the system prompt.
	Rules string `yaml:"rules"`
}

// Normalize fills defaults. A disabled assistant is not validated.
func (c *Config) Normalize() error {
	if !c.Enabled {
		return nil
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKey == "" && c.MiniAppURL == "" {
		return fmt.Errorf("assistant.api_key is required when the assistant is enabled")
	}
	if c.ChatModel == "" {
		c.ChatModel = "gpt-4o-mini"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-3-small"
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 10
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 60_000
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = 3600
	}
	return nil
}

// Timeout is the per request deadline.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// CacheTTL is the lifetime of a cached query embedding.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
