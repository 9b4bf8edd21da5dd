package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/ewaproduct/ewabot/core/config"
	"github.com/ewaproduct/ewabot/core/telegram/middleware"
)

// MiddlewareOptions carries the user-facing hooks of the default chain.
type MiddlewareOptions struct {
	// OnLimited answers a throttled update.
	OnLimited tele.HandlerFunc
	// OnPanic runs after a recovered panic.
	OnPanic tele.HandlerFunc
	// Locks serializes updates per user when set.
	Locks *middleware.UserLocks
}

// DefaultMiddlewares builds the shared middleware chain for bots:
// recover, rate limit, logging, per-user serialization and metrics.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverWith(opts.OnPanic)},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Burst:     cfg.RateLimit.Burst,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	mws = append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	if opts.Locks != nil {
		mws = append(mws, Middleware{Name: "serialize", Use: middleware.SerializeMiddleware(opts.Locks)})
	}
	mws = append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware})

	return mws
}
