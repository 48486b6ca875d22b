// Package ratelimit throttles webhook traffic per sender.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Limiter allows a fixed number of requests per key in each one-minute
// window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	perMin  int
	now     func() time.Time
}

type window struct {
	start    time.Time
	requests int
}

func NewLimiter(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	return &Limiter{clients: make(map[string]*window), perMin: requestsPerMinute, now: time.Now}
}

// WithClock replaces the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records one request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[key]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.clients[key] = &window{start: now, requests: 1}
		return true
	}
	w.requests++
	return w.requests <= l.perMin
}

// Cleanup drops windows idle for longer than maxAge and returns how many.
func (l *Limiter) Cleanup(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	n := 0
	for k, w := range l.clients {
		if w.start.Before(cutoff) {
			delete(l.clients, k)
			n++
		}
	}
	return n
}

// Run cleans stale windows every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup(10 * time.Minute)
		}
	}
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware limits requests by the key extractKey returns. Requests with an
// empty key pass through so the handler can reject them with its own status.
func (l *Limiter) Middleware(extractKey func(*http.Request) string, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractKey(r)
			if key != "" && !l.Allow(key) {
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
