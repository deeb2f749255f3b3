// Package scheduler runs periodic maintenance jobs on robfig/cron. Each run
// takes a redis lock so only one replica executes a job at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lukasai/lukas/internal/clock"
	obsmetrics "github.com/lukasai/lukas/internal/observability/metrics"
	"github.com/lukasai/lukas/internal/ratelimit"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
)

var ErrInvalidConfig = errors.New("invalid scheduler config")

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        Config
	Subscriptions subscriptiondomain.Service
	Locker        *ratelimit.Locker            `optional:"true"`
	Metrics       *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	subscriptions subscriptiondomain.Service
	locker        *ratelimit.Locker
	metrics       *obsmetrics.SchedulerMetrics
	cron          *cron.Cron
}

type job struct {
	name      string
	spec      string
	batchSize int
	run       func(ctx context.Context) error
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Subscriptions == nil {
		return nil, ErrInvalidConfig
	}
	log := p.Log.Named("scheduler").With(zap.String("component", "scheduler"))
	return &Scheduler{
		log:           log,
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		subscriptions: p.Subscriptions,
		locker:        p.Locker,
		metrics:       p.Metrics,
		cron: cron.New(
			cron.WithLogger(cronLogger{log: log.Sugar()}),
			cron.WithChain(cron.Recover(cronLogger{log: log.Sugar()})),
		),
	}, nil
}

func (s *Scheduler) jobs() []job {
	return []job{
		{
			name:      JobExpireSubscriptions,
			spec:      s.cfg.ExpirySpec,
			batchSize: s.cfg.ExpiryBatchSize,
			run:       s.ExpireSubscriptionsJob,
		},
	}
}

// Schedule registers every enabled job on the cron runner.
func (s *Scheduler) Schedule() error {
	for _, j := range s.jobs() {
		if !s.cfg.isJobEnabled(j.name) {
			s.log.Info("scheduler job disabled", zap.String("job", j.name))
			continue
		}
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			if err := s.runJob(context.Background(), j); err != nil {
				s.log.Warn("scheduler job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
		s.log.Info("scheduler job registered", zap.String("job", j.name), zap.String("spec", j.spec))
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs every enabled job immediately, in order.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var err error
	for _, j := range s.jobs() {
		if s.cfg.isJobEnabled(j.name) {
			err = errors.Join(err, s.runJob(ctx, j))
		}
	}
	return err
}

func (s *Scheduler) runJob(parent context.Context, j job) error {
	started := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, j.name, j.batchSize)
	log := s.logger(ctx).With(
		zap.String("job", j.name),
		zap.String("run_id", run.runID),
	)
	s.metrics.IncJobRun(j.name)

	err := s.withJobLock(ctx, j.name, func(ctx context.Context) error {
		if owner {
			s.logJobStart(ctx, run)
		}
		err := j.run(ctx)
		if owner {
			if err != nil && run.errorCount == 0 {
				run.IncError()
			}
			s.logJobFinish(ctx, run)
		}
		return err
	})
	s.metrics.ObserveJobDuration(j.name, time.Since(started))
	if err == nil {
		return nil
	}

	if errors.Is(err, obsmetrics.ErrLockNotAcquired) {
		s.metrics.IncJobSkipped(j.name)
		log.Debug("scheduler job skipped, lock held by another replica")
		return nil
	}

	s.metrics.IncJobError(j.name, err)
	// a timed out batch is picked up again on the next tick
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(j.name)
		log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", j.name, err)
}

// withJobLock runs fn under the replica lock. Without redis, or when redis
// fails, fn runs unlocked; every job must be idempotent.
func (s *Scheduler) withJobLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if !s.locker.Enabled() {
		return fn(ctx)
	}
	key := lockKey(name)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.logger(ctx).Warn("scheduler lock unavailable, running unlocked", zap.String("job", name), zap.Error(err))
		return fn(ctx)
	}
	if !ok {
		return obsmetrics.ErrLockNotAcquired
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.logger(ctx).Warn("scheduler lock release failed", zap.String("job", name), zap.Error(err))
		}
	}()
	return fn(ctx)
}

func lockKey(job string) string {
	return "scheduler:job:" + job
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
