package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const rateLimitMessage = "Too many requests – please try again in a minute."

// Decision is the outcome of one RateLimiter.Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter counts requests per key in fixed windows. A key's window
// opens at its first request and lasts for the configured duration, so
// a client can send up to 2*limit requests across a window boundary.
// Every request counts, including rejected ones.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*rateWindow
}

type rateWindow struct {
	count int
	start time.Time
}

// NewRateLimiter creates a limiter admitting limit requests per window.
// now may be nil, in which case the wall clock is used.
func NewRateLimiter(limit int, window time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		windows: make(map[string]*rateWindow),
	}
}

// Allow records a request for key and reports whether it is admitted.
func (rl *RateLimiter) Allow(key string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.start.Add(rl.window)) {
		w = &rateWindow{start: now}
		rl.windows[key] = w
	}
	w.count++

	remaining := rl.limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.count <= rl.limit,
		Limit:     rl.limit,
		Remaining: remaining,
		ResetAt:   w.start.Add(rl.window),
	}
}

// Sweep drops windows that have ended and returns how many it dropped.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	dropped := 0
	for key, w := range rl.windows {
		if !now.Before(w.start.Add(rl.window)) {
			delete(rl.windows, key)
			dropped++
		}
	}
	return dropped
}

// Run sweeps once per window until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// RateLimit creates a Gin middleware rejecting clients over the limit
// with 409 Conflict.
func RateLimit(limiter *RateLimiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		decision := limiter.Allow(clientIP)

		reset := 0
		if d := decision.ResetAt.Sub(limiter.now()); d > 0 {
			reset = int(math.Ceil(d.Seconds()))
		}

		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(reset))

		if !decision.Allowed {
			logger.Warn("Rate limit exceeded", zap.String("client_ip", clientIP), zap.String("path", c.Request.URL.Path))
			c.Header("Retry-After", strconv.Itoa(reset))
			abortWithMessage(c, http.StatusConflict, rateLimitMessage)
			return
		}
		c.Next()
	}
}
