package middleware

import (
	"net/http"
	"sync"
	"time"

	"dutyfreepos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// ── Replay rate limiter ───────────────────────────────────────────────────────
// Manual replay and connectivity hints each cost a round trip to the remote
// API. A stuck button or a flapping network interface must not turn into a
// request storm, so those routes get a fixed-window limit per client IP.

type rateEntry struct {
	count     int
	windowEnd time.Time
}

// RateLimiter is a fixed-window limiter keyed by client IP.
type RateLimiter struct {
	limit  int
	window time.Duration
	clock  clockwork.Clock

	mu      sync.Mutex
	entries map[string]*rateEntry
}

func NewRateLimiter(limit int, window time.Duration, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		entries: make(map[string]*rateEntry),
	}
}

// Allow records one request from key and reports whether it is within limit.
func (l *RateLimiter) Allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	entry, ok := l.entries[key]
	if !ok || now.After(entry.windowEnd) {
		l.purge(now)
		entry = &rateEntry{windowEnd: now.Add(l.window)}
		l.entries[key] = entry
	}
	entry.count++
	return entry.count <= l.limit, entry.windowEnd
}

// purge drops expired windows; called under lock when a new window opens,
// so the map never outgrows the set of recently active clients.
func (l *RateLimiter) purge(now time.Time) {
	for k, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, k)
		}
	}
}

// Middleware rejects requests over the limit with 429 and Retry-After.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, windowEnd := l.Allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", windowEnd.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests, try again in a moment"))
			return
		}
		c.Next()
	}
}
