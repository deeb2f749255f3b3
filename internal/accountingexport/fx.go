package accountingexport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/internal/observability"
)

var Module = fx.Module("accounting.export",
	fx.Provide(provideCollector),
	fx.Provide(NewPusher),
	fx.Invoke(Register),
)

// provideCollector labels series the same way as the service's own telemetry.
func provideCollector(obsCfg observability.Config, db *gorm.DB, clk clock.Clock) *Collector {
	return NewCollector(db, clk, prometheus.Labels(obsCfg.ConstLabels()))
}

// Worker refreshes the collector and pushes on a fixed interval.
type Worker struct {
	collector *Collector
	pusher    Pusher
	interval  time.Duration
	log       *zap.Logger

	failing atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewWorker(collector *Collector, pusher Pusher, interval time.Duration, log *zap.Logger) *Worker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Worker{
		collector: collector,
		pusher:    pusher,
		interval:  interval,
		log:       log.Named("accounting.export"),
	}
}

// ExportOnce refreshes and pushes a single snapshot. Failures are logged once
// per failure streak.
func (w *Worker) ExportOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPushTimeout*2)
	defer cancel()

	err := w.collector.Refresh(ctx)
	if err == nil {
		err = w.pusher.Push(ctx, w.collector.Gatherer())
	}
	if err != nil {
		if w.failing.CompareAndSwap(false, true) {
			w.log.Warn("accounting export failed", zap.Error(err))
		}
		return err
	}
	if w.failing.CompareAndSwap(true, false) {
		w.log.Info("accounting export recovered")
	}
	return nil
}

func (w *Worker) Start() {
	if w.stopCh != nil {
		return
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		_ = w.ExportOnce(context.Background())
		for {
			select {
			case <-ticker.C:
				_ = w.ExportOnce(context.Background())
			case <-w.stopCh:
				return
			}
		}
	}()
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.stopCh == nil {
		return nil
	}
	close(w.stopCh)
	if closer, ok := w.pusher.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	select {
	case <-w.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func Register(lc fx.Lifecycle, cfg config.Config, collector *Collector, pusher Pusher, log *zap.Logger) {
	if pusher == nil {
		return
	}
	worker := NewWorker(collector, pusher, cfg.Export.Interval, log)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting accounting export",
				zap.String("exporter", cfg.Export.Exporter),
				zap.Duration("interval", cfg.Export.Interval),
			)
			worker.Start()
			return nil
		},
		OnStop: worker.Stop,
	})
}
