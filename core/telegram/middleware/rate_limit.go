package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/core/logger"
	tghelpers "github.com/ewaproduct/ewabot/core/telegram/helpers"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the average spacing between updates of one user.
	Interval time.Duration
	// Burst allows short spikes above the average rate.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// IdleTTL evicts limiters of users that went quiet.
	IdleTTL time.Duration
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user.
type RateLimiter struct {
	opts      RateLimitOptions
	mu        sync.Mutex
	limiters  map[int64]*userLimiter
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter builds a per-user limiter. A zero interval disables limiting.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		opts:     opts,
		limiters: make(map[int64]*userLimiter),
		now:      time.Now,
	}
}

// Allow reports whether userID may proceed now.
func (r *RateLimiter) Allow(userID int64) bool {
	if r == nil || r.opts.Interval <= 0 {
		return true
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastSweep) > r.opts.IdleTTL {
		for id, l := range r.limiters {
			if now.Sub(l.lastSeen) > r.opts.IdleTTL {
				delete(r.limiters, id)
			}
		}
		r.lastSweep = now
	}
	l, ok := r.limiters[userID]
	if !ok {
		l = &userLimiter{limiter: rate.NewLimiter(rate.Every(r.opts.Interval), r.opts.Burst)}
		r.limiters[userID] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

// Middleware wraps handlers with the limiter.
func (r *RateLimiter) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		user := c.Sender()
		if user == nil || r.opts.Interval <= 0 {
			return next(c)
		}
		if _, skip := r.opts.Exclude[updateKind(c.Update())]; skip {
			return next(c)
		}
		if r.Allow(user.ID) {
			return next(c)
		}

		ctx := tghelpers.BuildContext(c)
		logger.Warn(ctx, logger.CompTelegram, "tg.rate_limit",
			slog.String("status", "rate_limited"),
		)
		if r.opts.OnLimited != nil {
			_ = r.opts.OnLimited(c)
		}
		return nil
	}
}

// RateLimitMiddleware returns a middleware that enforces the per-user rate.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	return NewRateLimiter(opts).Middleware
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}
