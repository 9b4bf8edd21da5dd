package middleware

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func newContext(t *testing.T, userID int64, text string) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(tele.Update{
		ID: 1,
		Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   text,
		},
	})
}

func TestRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(RateLimitOptions{Interval: time.Second, Burst: 2})
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1), "third update inside the window")
	assert.True(t, rl.Allow(2), "other users are independent")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow(1), "token refilled")
}

func TestRateLimiterEvictsIdleUsers(t *testing.T) {
	rl := NewRateLimiter(RateLimitOptions{Interval: time.Second, IdleTTL: time.Minute})
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow(1)
	rl.Allow(2)
	now = now.Add(2 * time.Minute)
	rl.Allow(3)
	assert.Len(t, rl.limiters, 1)
}

func TestRateLimitMiddlewareCallsOnLimited(t *testing.T) {
	var limited, handled int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	c := newContext(t, 5, "hi")
	require.NoError(t, h(c))
	require.NoError(t, h(c))
	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, limited)
}

func TestRateLimitMiddlewareExclusions(t *testing.T) {
	handled := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})
	h := mw(func(tele.Context) error { handled++; return nil })
	c := newContext(t, 5, "hi")
	for i := 0; i < 3; i++ {
		require.NoError(t, h(c))
	}
	assert.Equal(t, 3, handled)
}

func TestUserLocksSerializeSameUser(t *testing.T) {
	locks := NewUserLocks()
	var (
		active  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(42)
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.False(t, overlap.Load())
	assert.Equal(t, 0, locks.Len(), "lock table must be released")
}

func TestUserLocksDoNotBlockOtherUsers(t *testing.T) {
	locks := NewUserLocks()
	unlock := locks.Lock(1)
	defer unlock()

	done := make(chan struct{})
	go func() {
		locks.Lock(2)()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("user 2 blocked by user 1")
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{AdminID: 7, OnReject: func(tele.Context) error { rejected++; return nil }})
	called := 0
	h := mw(func(tele.Context) error { called++; return nil })

	require.NoError(t, h(newContext(t, 7, "/tree")))
	require.NoError(t, h(newContext(t, 8, "/tree")))
	assert.Equal(t, 1, called)
	assert.Equal(t, 1, rejected)
}

func TestRecoverWithSwallowsPanic(t *testing.T) {
	apologized := false
	h := RecoverWith(func(tele.Context) error { apologized = true; return nil })(func(tele.Context) error {
		panic(errors.New("boom"))
	})
	assert.NoError(t, h(newContext(t, 1, "x")))
	assert.True(t, apologized)
}

func TestCounters(t *testing.T) {
	c := newContext(t, 1, "x")
	var msgs int
	var kb bool
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		AddCounters(c, 3, false)
		AddCounters(c, 1, true)
		msgs, kb = GetCounters(c)
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, 4, msgs)
	assert.True(t, kb)
}
