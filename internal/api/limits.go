package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// rateLimiters applies a per-driver token bucket to the GPS ingest
// path so one noisy device cannot flood the store.
type rateLimiters struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

func newRateLimiters(limit rate.Limit, burst int) *rateLimiters {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiters{m: map[string]*rate.Limiter{}, limit: limit, burst: burst}
}

func (l *rateLimiters) allow(id string) bool {
	l.mu.Lock()
	lim, ok := l.m[id]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.m[id] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
