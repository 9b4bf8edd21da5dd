package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ewaproduct/ewabot/core/logger"
	"github.com/ewaproduct/ewabot/core/telegram/netutil"
)

// Client talks to an OpenAI-compatible HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a client with retries on transient network errors.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout: cfg.Timeout(),
			Transport: &netutil.RetryTransport{
				Base:       http.DefaultTransport,
				MaxRetries: 2,
				Backoff:    time.Second,
			},
		},
	}
}

// APIError is a non-2xx reply.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant api: status %d: %s", e.Status, e.Body)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("assistant api: encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("assistant api: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	took := time.Since(start)
	if err != nil {
		logger.Warn(ctx, logger.CompAssistant, "api.call",
			slog.String("status", "error"),
			slog.String("path", path),
			slog.String("request_id", reqID),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("assistant api: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("assistant api: read %s: %w", path, err)
	}
	logger.Debug(ctx, logger.CompAssistant, "api.call",
		slog.String("path", path),
		slog.String("request_id", reqID),
		slog.Int("http_status", resp.StatusCode),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: logger.SanitizeLimit(string(body), 300)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("assistant api: decode %s: %w", path, err)
	}
	return nil
}
