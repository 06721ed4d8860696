package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/provider-verify/internal/config"
)

// Checker periodically re-reads the sync history and raises alerts when
// verification quality degrades.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background sync-quality checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run evaluates the sync history once per interval. It blocks until ctx is
// cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("watching sync quality",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sync quality checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("collect sync metrics", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("sync quality within thresholds",
			zap.Int("scored_entries", snap.ScoredEntries),
			zap.Float64("low_score_rate", snap.LowScoreRate),
		)
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("sync quality degraded",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
		zap.Float64("avg_correctness", snap.AvgCorrectness),
		zap.Int("low_score_count", snap.LowScoreCount),
	)
}
