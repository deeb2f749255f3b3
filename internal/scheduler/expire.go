package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// ExpireSubscriptionsJob expires active subscriptions whose period has ended,
// one batch at a time until a short batch comes back.
func (s *Scheduler) ExpireSubscriptionsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobExpireSubscriptions, s.cfg.ExpiryBatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := s.subscriptions.ExpireDue(ctx, now, s.cfg.ExpiryBatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.expire.failed", err, zap.Time("now", now))
			return err
		}
		run.AddProcessed(expired)
		s.metrics.AddBatchProcessed(JobExpireSubscriptions, "subscriptions", expired)
		if expired < s.cfg.ExpiryBatchSize {
			return nil
		}
	}
}
