package monitoring

import (
	"context"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"

	"go.uber.org/zap"
)

type statsSource interface {
	Stats(ctx context.Context) domain.RegistryStats
}

// RegistryReporter periodically publishes registry sizes to a recorder.
type RegistryReporter struct {
	source   statsSource
	recorder ports.MetricsRecorder
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewRegistryReporter(source statsSource, recorder ports.MetricsRecorder, interval time.Duration, logger *zap.SugaredLogger) *RegistryReporter {
	return &RegistryReporter{
		source:   source,
		recorder: recorder,
		interval: interval,
		logger:   logger,
	}
}

// Run reports once immediately and then on every tick until ctx is done.
func (r *RegistryReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.report(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report(ctx)
		}
	}
}

func (r *RegistryReporter) report(ctx context.Context) {
	stats := r.source.Stats(ctx)
	r.recorder.UpdateRegistry(stats)
	r.logger.Debugw("registry stats",
		"peers", stats.Peers,
		"ip_rooms", stats.IPRooms,
		"secret_rooms", stats.SecretRooms,
		"pair_keys", stats.PairKeys,
	)
}
