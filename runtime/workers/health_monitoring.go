package workers

import (
	"collab-live/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker samples the server process and records CPU and
// resident memory on every tick.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	metrics        *observability.Metrics
	metricInterval time.Duration
	pid            int32
}

func NewHealthMonitoringWorker(log *slog.Logger, metrics *observability.Metrics,
	metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		metrics:        metrics,
		metricInterval: metricInterval,
		pid:            int32(os.Getpid()),
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(w.pid)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			cpu, rss, err := sample(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.metrics.ObserveProcess(cpu, rss)
			w.log.Debug("Process sampled", "pid", w.pid, "cpu", cpu, "rss", rss)
		}
	}
}

func sample(p *process.Process) (float64, uint64, error) {
	cpu, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	return cpu, mem.RSS, nil
}
