package workers

import (
	"bot-bridge/observability"
	"context"
	"log/slog"
	"time"
)

const DefaultHeartbeatInterval = 5 * time.Second

// HeartbeatWorker samples the process every interval for the health probe.
type HeartbeatWorker struct {
	log      *slog.Logger
	monitor  *observability.ProcessMonitor
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, monitor *observability.ProcessMonitor, interval time.Duration) *HeartbeatWorker {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &HeartbeatWorker{log: log, monitor: monitor, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if _, err := w.monitor.Sample(); err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := w.monitor.Sample()
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Debug("Heartbeat", "rss", stats.RSS, "cpu", stats.CPUPercent)
		}
	}
}
