package utils

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jcob-sikorski/mech-mashup/internal/apierror"
)

type rateWindow struct {
	start time.Time
	count int
}

// RateLimiter counts requests per client IP in fixed windows.
type RateLimiter struct {
	mu       sync.Mutex
	max      int
	interval time.Duration
	clients  map[string]*rateWindow
	now      func() time.Time

	lastSweep time.Time
}

// NewRateLimiter allows max requests per interval for each client. A max of zero disables limiting.
func NewRateLimiter(max int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		max:      max,
		interval: interval,
		clients:  make(map[string]*rateWindow),
		now:      time.Now,
	}
}

// Allow records a request from key and reports whether it is within the limit.
func (l *RateLimiter) Allow(key string) bool {
	if l.max <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[key]
	if !ok || now.Sub(w.start) >= l.interval {
		// Reset the counter if the interval has passed
		if now.Sub(l.lastSweep) >= l.interval {
			l.sweep(now)
		}
		w = &rateWindow{start: now}
		l.clients[key] = w
	}
	w.count++
	return w.count <= l.max
}

// sweep drops windows that have ended. It runs at most once per interval.
// Callers hold l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	l.lastSweep = now
	for k, w := range l.clients {
		if now.Sub(w.start) >= l.interval {
			delete(l.clients, k)
		}
	}
}

// Middleware protects an endpoint from abuse
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			msg := "Too many requests. Please try again later."
			c.JSON(http.StatusTooManyRequests, JSONResponse{
				Status:  "error",
				Message: msg,
				Error:   msg,
				Code:    apierror.CodeThrottled,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
