package ratelimit

import (
	"fmt"
	"sync"
	"time"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

/*
Limiter is a per-user sliding-window request gate for one LLM provider.

Each user gets an isolated window (own timestamps, own lock), so one heavy
user cannot starve others and bucket access never contends across users.
Inactive users are swept opportunistically on Check, outside the per-user
hot path.
*/
type Limiter struct {
	provider    string
	maxRequests int
	window      time.Duration
	now         func() time.Time // injectable clock for tests

	mu        sync.Mutex // guards the users map only
	users     map[string]*userWindow
	lastSweep time.Time
}

type userWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// NewLimiter builds a limiter allowing maxRequests per windowSeconds per user.
func NewLimiter(provider string, maxRequests int, windowSeconds int) *Limiter {
	return &Limiter{
		provider:    provider,
		maxRequests: maxRequests,
		window:      time.Duration(windowSeconds) * time.Second,
		now:         time.Now,
		users:       make(map[string]*userWindow),
	}
}

// Provider names the LLM provider this limiter gates.
func (l *Limiter) Provider() string {
	return l.provider
}

/*
Check records a request attempt for the user and reports whether it is
allowed, along with the current in-window count and the remaining budget.
An allowed request is counted immediately; a denied one is not, so denials
never extend the lockout.
*/
func (l *Limiter) Check(userID string) (allowed bool, current int, remaining int) {
	now := l.now()
	window := l.windowFor(userID)
	l.maybeSweep(now)

	window.mu.Lock()
	defer window.mu.Unlock()

	window.timestamps = pruneOld(window.timestamps, now.Add(-l.window))
	current = len(window.timestamps)

	if current >= l.maxRequests {
		tl.Log(
			tl.Info, palette.Purple, "%s user '%s' on provider '%s' ('%s'/'%s' in window)",
			"Rate limited", userID, l.provider, fmt.Sprintf("%d", current), fmt.Sprintf("%d", l.maxRequests),
		)
		return false, current, 0
	}

	// Timestamps stay in insertion order: pruning drops a prefix and new
	// entries append at the tail.
	window.timestamps = append(window.timestamps, now)
	current++
	return true, current, l.maxRequests - current
}

// Reset clears the user's window.
func (l *Limiter) Reset(userID string) {
	l.mu.Lock()
	delete(l.users, userID)
	l.mu.Unlock()
}

func (l *Limiter) windowFor(userID string) *userWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	window, exists := l.users[userID]
	if !exists {
		window = &userWindow{}
		l.users[userID] = window
	}
	return window
}

/*
maybeSweep drops users whose newest request left the window, at most once
per window length. Runs under the map lock but never under a user lock the
hot path holds, and skips any bucket currently in use.
*/
func (l *Limiter) maybeSweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now

	cutoff := now.Add(-l.window)
	for userID, window := range l.users {
		if !window.mu.TryLock() {
			continue
		}
		// An empty window belongs to a Check in flight; only windows whose
		// newest entry aged out are idle.
		idle := len(window.timestamps) > 0 &&
			window.timestamps[len(window.timestamps)-1].Before(cutoff)
		window.mu.Unlock()
		if idle {
			delete(l.users, userID)
		}
	}
}

func pruneOld(timestamps []time.Time, cutoff time.Time) []time.Time {
	firstKept := len(timestamps)
	for i, ts := range timestamps {
		if ts.After(cutoff) {
			firstKept = i
			break
		}
	}
	return timestamps[firstKept:]
}
