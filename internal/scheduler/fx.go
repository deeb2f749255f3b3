package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	obsmetrics "github.com/lukasai/lukas/internal/observability/metrics"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(provideMetrics),
	fx.Provide(New),
	fx.Invoke(Register),
)

func provideMetrics(cfg obsmetrics.Config) *obsmetrics.SchedulerMetrics {
	return obsmetrics.SchedulerWithConfig(cfg)
}

// Register starts the cron runner with the application and drains it on stop.
func Register(lc fx.Lifecycle, cfg Config, sched *Scheduler, log *zap.Logger) error {
	if !cfg.Enabled {
		log.Info("scheduler disabled")
		return nil
	}
	if err := sched.Schedule(); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sched.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
	return nil
}
