// Package ratelimit provides a per-client token bucket used to slow
// down credential and upload endpoints.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vidtube/vidtube/internal/httputil"
)

const staleAfter = 10 * time.Minute

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter refills each client's bucket at a fixed rate up to a burst
// ceiling. Clients are keyed by IP; stale buckets are pruned on access.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64

	lastPrune time.Time
}

func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		buckets:   make(map[string]*bucket),
		rate:      requestsPerSecond,
		burst:     float64(burst),
		lastPrune: time.Now(),
	}
}

func (l *Limiter) allow(clientIP string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > staleAfter {
		for ip, b := range l.buckets {
			if now.Sub(b.lastSeen) > staleAfter {
				delete(l.buckets, ip)
			}
		}
		l.lastPrune = now
	}

	b, ok := l.buckets[clientIP]
	if !ok {
		l.buckets[clientIP] = &bucket{tokens: l.burst - 1, lastSeen: now}
		return true
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "10")
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
