package scheduler

import (
	"strings"
	"time"

	"github.com/lukasai/lukas/internal/config"
)

const (
	JobExpireSubscriptions = "expire_subscriptions"
)

// Config controls job schedules, batch sizes and the replica lock.
type Config struct {
	Enabled         bool
	ExpirySpec      string
	ExpiryBatchSize int
	LockTTL         time.Duration
	JobTimeout      time.Duration
	EnabledJobs     []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		ExpirySpec:      "@every 5m",
		ExpiryBatchSize: 200,
		LockTTL:         4 * time.Minute,
		JobTimeout:      2 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:         cfg.Scheduler.Enabled,
		ExpirySpec:      cfg.Scheduler.ExpirySpec,
		ExpiryBatchSize: cfg.Scheduler.ExpiryBatchSize,
		LockTTL:         cfg.Scheduler.LockTTL,
		EnabledJobs:     cfg.Scheduler.EnabledJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.ExpirySpec) == "" {
		c.ExpirySpec = defaults.ExpirySpec
	}
	if c.ExpiryBatchSize <= 0 {
		c.ExpiryBatchSize = defaults.ExpiryBatchSize
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	// a job must finish before its lock can lapse to another replica
	if c.JobTimeout > c.LockTTL {
		c.JobTimeout = c.LockTTL
	}
	return c
}

// isJobEnabled treats an empty list as every job enabled.
func (c Config) isJobEnabled(job string) bool {
	if len(c.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range c.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), job) {
			return true
		}
	}
	return false
}
