package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock drives the limiter's injectable clock.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time          { return c.current }
func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestLimiter(maxRequests int, windowSeconds int) (*Limiter, *fakeClock) {
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	limiter := NewLimiter("openai", maxRequests, windowSeconds)
	limiter.now = clock.now
	return limiter, clock
}

func TestLimiterAllowsUpToMax(t *testing.T) {
	limiter, _ := newTestLimiter(3, 60)

	for i := 1; i <= 3; i++ {
		allowed, current, remaining := limiter.Check("alex")
		assert.True(t, allowed)
		assert.Equal(t, i, current)
		assert.Equal(t, 3-i, remaining)
	}

	allowed, current, remaining := limiter.Check("alex")
	assert.False(t, allowed)
	assert.Equal(t, 3, current)
	assert.Equal(t, 0, remaining)
}

func TestLimiterWindowSlides(t *testing.T) {
	limiter, clock := newTestLimiter(2, 60)

	limiter.Check("alex")
	clock.advance(30 * time.Second)
	limiter.Check("alex")

	allowed, _, _ := limiter.Check("alex")
	assert.False(t, allowed)

	// 31s later the first request has left the window; one slot frees up.
	clock.advance(31 * time.Second)
	allowed, current, _ := limiter.Check("alex")
	assert.True(t, allowed)
	assert.Equal(t, 2, current)
}

func TestLimiterDenialsDoNotExtendLockout(t *testing.T) {
	limiter, clock := newTestLimiter(1, 60)

	limiter.Check("alex")
	for i := 0; i < 5; i++ {
		clock.advance(10 * time.Second)
		allowed, _, _ := limiter.Check("alex")
		assert.False(t, allowed)
	}

	// 61s after the single counted request the user is clear, despite the
	// denied attempts in between.
	clock.advance(11 * time.Second)
	allowed, _, _ := limiter.Check("alex")
	assert.True(t, allowed)
}

func TestLimiterIsolatesUsers(t *testing.T) {
	limiter, _ := newTestLimiter(1, 60)

	allowed, _, _ := limiter.Check("alex")
	assert.True(t, allowed)
	allowed, _, _ = limiter.Check("alex")
	assert.False(t, allowed)

	allowed, _, _ = limiter.Check("jordan")
	assert.True(t, allowed, "one user's lockout never touches another")
}

func TestLimiterReset(t *testing.T) {
	limiter, _ := newTestLimiter(1, 60)

	limiter.Check("alex")
	allowed, _, _ := limiter.Check("alex")
	assert.False(t, allowed)

	limiter.Reset("alex")
	allowed, _, _ = limiter.Check("alex")
	assert.True(t, allowed)
}

func TestLimiterSweepDropsIdleUsers(t *testing.T) {
	limiter, clock := newTestLimiter(5, 60)

	limiter.Check("alex")
	clock.advance(2 * time.Minute)
	limiter.Check("jordan") // triggers the sweep

	limiter.mu.Lock()
	_, alexAlive := limiter.users["alex"]
	_, jordanAlive := limiter.users["jordan"]
	limiter.mu.Unlock()

	assert.False(t, alexAlive)
	assert.True(t, jordanAlive)
}
