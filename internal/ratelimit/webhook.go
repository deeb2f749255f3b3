package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lukasai/lukas/internal/config"
)

const webhookIdleTTL = 10 * time.Minute

// WebhookLimiter is an in-process per-IP limiter for the public webhook
// route. It does not need redis.
type WebhookLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rate     rate.Limit
	burst    int
	now      func() time.Time
	lastGC   time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewWebhookLimiter(cfg config.Config) *WebhookLimiter {
	return newWebhookLimiter(cfg.RateLimit.WebhookIPRate, cfg.RateLimit.WebhookIPBurst, time.Now)
}

func newWebhookLimiter(perSecond float64, burst int, now func() time.Time) *WebhookLimiter {
	if perSecond <= 0 || burst <= 0 {
		return nil
	}
	return &WebhookLimiter{
		limiters: make(map[string]*ipLimiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		now:      now,
		lastGC:   now(),
	}
}

// Allow reports whether ip may call now. A nil limiter allows everything.
func (l *WebhookLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now

	if now.Sub(l.lastGC) > webhookIdleTTL {
		for key, v := range l.limiters {
			if now.Sub(v.lastSeen) > webhookIdleTTL {
				delete(l.limiters, key)
			}
		}
		l.lastGC = now
	}
	return entry.limiter.AllowN(now, 1)
}
