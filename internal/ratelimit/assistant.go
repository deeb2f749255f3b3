package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/internal/observability/metrics"
)

const (
	keyAssistantUser  = "assistant:user:%s"
	keyAssistantQuota = "assistant:quota:%s:%s"

	endpointAssistant = "assistant"
)

// AssistantLimiter throttles assistant calls per user and serializes calls
// that consume a limited quota.
type AssistantLimiter struct {
	bucket  *TokenBucket
	locker  *Locker
	metrics *metrics.Metrics
	log     *zap.Logger

	userRate  float64
	userBurst int
	lockTTL   time.Duration
}

func NewAssistantLimiter(cfg config.Config, bucket *TokenBucket, locker *Locker, obs *metrics.Metrics, log *zap.Logger) *AssistantLimiter {
	limitCfg := cfg.RateLimit
	return &AssistantLimiter{
		bucket:    bucket,
		locker:    locker,
		metrics:   obs,
		log:       log.Named("ratelimit.assistant"),
		userRate:  limitCfg.AssistantUserRate,
		userBurst: limitCfg.AssistantUserBurst,
		lockTTL:   limitCfg.QuotaLockTTL,
	}
}

func (l *AssistantLimiter) Enabled() bool {
	return l != nil && l.bucket.Enabled() && l.userRate > 0 && l.userBurst > 0
}

// AllowUser fails open when redis is unreachable.
func (l *AssistantLimiter) AllowUser(ctx context.Context, userID uuid.UUID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyAssistantUser, userID), l.userRate, l.userBurst)
	if err != nil {
		l.log.Warn("assistant rate limit unavailable", zap.Error(err))
		l.metrics.RecordRateLimitDenied(ctx, endpointAssistant, "unavailable")
		return &Result{Allowed: true}, nil
	}
	if res.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, endpointAssistant)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, endpointAssistant, "user_rate")
	}
	return res, nil
}

// WithQuotaLock runs fn while holding the user+feature quota lock. Without
// redis fn runs unguarded.
func (l *AssistantLimiter) WithQuotaLock(ctx context.Context, userID uuid.UUID, feature string, fn func(ctx context.Context) error) error {
	if l == nil || !l.locker.Enabled() || l.lockTTL <= 0 {
		return fn(ctx)
	}
	return l.locker.WithLock(ctx, fmt.Sprintf(keyAssistantQuota, userID, feature), l.lockTTL, fn)
}
