package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// SystemMetricsCollector collects system-level metrics periodically
type SystemMetricsCollector struct {
	metrics  *Metrics
	logger   zerolog.Logger
	interval time.Duration
}

// NewSystemMetricsCollector creates a new system metrics collector
func NewSystemMetricsCollector(metrics *Metrics, logger zerolog.Logger, interval time.Duration) *SystemMetricsCollector {
	return &SystemMetricsCollector{
		metrics:  metrics,
		logger:   logger.With().Str("component", "system_metrics").Logger(),
		interval: interval,
	}
}

// Run collects once immediately and then on every tick until ctx is done.
func (c *SystemMetricsCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug().Msg("Stopping system metrics collection")
			return
		case <-ticker.C:
			c.Collect()
		}
	}
}

// Collect samples goroutine count and heap allocation.
func (c *SystemMetricsCollector) Collect() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	goroutines := runtime.NumGoroutine()
	c.metrics.UpdateSystemMetrics(goroutines, m.Alloc)

	c.logger.Debug().
		Int("goroutines", goroutines).
		Uint64("memory_bytes", m.Alloc).
		Msg("Updated system metrics")
}
