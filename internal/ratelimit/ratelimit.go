// Package ratelimit throttles per-IP connection attempts so a single
// misbehaving client can't exhaust the server's file descriptors or
// Redis subscription slots. Built on a per-key rate.Limiter map, the
// same shape as a per-user budget tracker, generalized to per-IP keys
// since anonymous public-timeline clients aren't authenticated.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks one token-bucket limiter per client IP.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a Limiter allowing rps connection attempts per second per IP,
// with a burst of burst, evicting entries unused for longer than idleTTL.
func New(rps float64, burst int, idleTTL time.Duration) *Limiter {
	return &Limiter{
		limiters: make(map[string]*entry),
		rps:      rate.Limit(rps),
		burst:    burst,
		idleTTL:  idleTTL,
	}
}

// Allow reports whether a new connection attempt from ip is permitted.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	e, ok := l.limiters[ip]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = e
	}
	e.lastSeen = time.Now()
	limiter := e.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// Evict removes limiter entries that have been idle longer than idleTTL,
// bounding memory growth from clients that connect once and never return.
func (l *Limiter) Evict() {
	cutoff := time.Now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

// RunEvictor periodically calls Evict until stop is closed.
func (l *Limiter) RunEvictor(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Evict()
		}
	}
}

// Len reports the number of tracked IPs (for tests and diagnostics).
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
