package workers

import (
	"collab-live/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHealthMonitoringWorker_RecordsProcessMemory(t *testing.T) {
	req := require.New(t)
	metrics := observability.New(prometheus.NewRegistry())
	worker := NewHealthMonitoringWorker(slog.Default(), metrics, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Then the resident memory of the test process is recorded
	req.Eventually(func() bool {
		return testutil.ToFloat64(metrics.ProcessMemory) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	req.NoError(<-done)
}
