package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket_RefillsOverTime(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	tb := NewTokenBucket(2, 1)
	tb.now = clock.now
	tb.lastRefill = clock.t

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
	assert.Equal(t, 0, tb.Remaining())

	wait, ok := tb.reserve()
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	clock.advance(500 * time.Millisecond)
	assert.False(t, tb.Allow())
	clock.advance(500 * time.Millisecond)
	assert.True(t, tb.Allow())

	// 不超过容量
	clock.advance(time.Hour)
	assert.Equal(t, 2, tb.Remaining())
}

func TestTokenBucket_WaitHonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, 0.001)
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestTokenBucket_WaitBlocksUntilRefill(t *testing.T) {
	tb := NewTokenBucket(1, 50)
	require.True(t, tb.Allow())

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	sw := NewSlidingWindow(3, 10*time.Second)
	sw.now = clock.now

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow())
		clock.advance(time.Second)
	}
	assert.False(t, sw.Allow())
	assert.Equal(t, 0, sw.Remaining())

	wait, ok := sw.reserve()
	assert.False(t, ok)
	assert.Equal(t, 7*time.Second, wait)

	clock.advance(7 * time.Second)
	assert.Equal(t, 1, sw.Remaining())
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())
}

func TestRateLimitManager(t *testing.T) {
	m := NewRateLimitManager()
	assert.Equal(t, 2400, m.Remaining(KeyOrderPost))
	assert.Equal(t, 100, m.Remaining(KeyAuth))

	// 未注册的键使用 general
	assert.Same(t, m.GetLimiter(KeyGeneral), m.GetLimiter("clob:unknown"))

	m.Set(KeyAuth, NewSlidingWindow(1, time.Minute))
	assert.True(t, m.Allow(KeyAuth))
	assert.False(t, m.Allow(KeyAuth))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Wait(ctx, KeyAuth), context.DeadlineExceeded)
	require.NoError(t, m.Wait(context.Background(), KeyOrderPost))
}

func TestRateLimitManager_Empty(t *testing.T) {
	m := &RateLimitManager{limiters: map[string]RateLimiter{}}
	assert.True(t, m.Allow(KeyOrderPost))
	assert.Equal(t, -1, m.Remaining(KeyOrderPost))
	assert.NoError(t, m.Wait(context.Background(), KeyOrderPost))
}
