package assistant

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/ewaproduct/ewabot/core/logger"
)

// CachedEmbedder memoizes vectors by normalized text. Users ask the same
// questions over and over, and every miss is a paid API call.
type CachedEmbedder struct {
	next  Embedder
	cache *bigcache.BigCache
}

// NewCachedEmbedder wraps next with an in-memory cache whose entries live for ttl.
// The cache janitor stops with ctx or Close.
func NewCachedEmbedder(ctx context.Context, next Embedder, ttl time.Duration) (*CachedEmbedder, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = Dimensions * 4
	cfg.HardMaxCacheSize = 64
	cfg.Verbose = false
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("assistant: embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := NormalizeText(text)
	raw, err := c.cache.Get(key)
	switch {
	case err == nil:
		if vec, ok := decodeVector(raw); ok {
			logger.Debug(ctx, logger.CompAssistant, "embed.cache", slog.String("status", "hit"))
			return vec, nil
		}
	case !errors.Is(err, bigcache.ErrEntryNotFound):
		logger.Warn(ctx, logger.CompAssistant, "embed.cache",
			slog.String("status", "error"),
			slog.String("err", err.Error()),
		)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(key, encodeVector(vec)); err != nil {
		logger.Warn(ctx, logger.CompAssistant, "embed.cache",
			slog.String("status", "skip"),
			slog.String("err", err.Error()),
		)
	}
	return vec, nil
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

func (c *CachedEmbedder) Close() error { return c.cache.Close() }

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, bool) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, true
}
