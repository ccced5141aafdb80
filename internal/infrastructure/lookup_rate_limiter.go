package infrastructure

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LookupRateLimiter throttles live existence checks per user. WhatsApp
// rate-limits usync queries per device.
type LookupRateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*lookupBucket
	rate     rate.Limit
	burst    int
}

type lookupBucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

func NewLookupRateLimiter(perSecond float64, burst int) *LookupRateLimiter {
	return &LookupRateLimiter{
		limiters: make(map[int64]*lookupBucket),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

// Wait blocks until the user may issue one more lookup or ctx ends.
func (l *LookupRateLimiter) Wait(ctx context.Context, userID int64) error {
	return l.bucket(userID).Wait(ctx)
}

func (l *LookupRateLimiter) Allow(userID int64) bool {
	return l.bucket(userID).Allow()
}

func (l *LookupRateLimiter) bucket(userID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.limiters[userID]
	if !ok {
		b = &lookupBucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[userID] = b
	}
	b.lastUsed = time.Now()
	return b.limiter
}

// Prune drops limiters idle for longer than maxIdle.
func (l *LookupRateLimiter) Prune(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, b := range l.limiters {
		if time.Since(b.lastUsed) > maxIdle {
			delete(l.limiters, id)
			n++
		}
	}
	return n
}
