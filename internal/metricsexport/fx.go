package metricsexport

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/invoiceflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultInterval = time.Minute

var Module = fx.Module("metrics.export",
	fx.Provide(NewPusher),
	fx.Provide(func() (*Collector, error) {
		return NewCollector(prometheus.DefaultRegisterer)
	}),
	fx.Invoke(startWorker),
)

// startWorker refreshes the business gauges on every tick so /metrics stays
// current, and pushes the default registry when an exporter is configured.
func startWorker(lc fx.Lifecycle, cfg config.Config, collector *Collector, pusher Pusher, db *gorm.DB, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("metricsexport")

	interval := cfg.MetricsExport.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					tick(ctx, collector, pusher, db, logger)
					select {
					case <-ticker.C:
					case <-ctx.Done():
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func tick(ctx context.Context, collector *Collector, pusher Pusher, db *gorm.DB, logger *zap.Logger) {
	if err := collector.Refresh(ctx, db); err != nil && ctx.Err() == nil {
		logger.Warn("metrics refresh failed", zap.Error(err))
	}
	if pusher == nil {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()
	if err := pusher.Push(pushCtx, prometheus.DefaultGatherer); err != nil && ctx.Err() == nil {
		logger.Warn("metrics push failed", zap.Error(err))
	}
}
