package workers

import (
	"collab-live/observability"
	"context"
	"log/slog"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically reports the fill level of buffered channels.
// Reading len(channel) and cap(channel) is non-blocking, so this won't interfere
// with other goroutines. A channel above the warn ratio is logged.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	metrics        *observability.Metrics
	channels       []NamedChannel
	metricInterval time.Duration
	warnRatio      float64
}

func NewChannelCapacityWorker(log *slog.Logger, metrics *observability.Metrics,
	channels []NamedChannel, metricInterval time.Duration, warnRatio float64) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:            log,
		metrics:        metrics,
		channels:       channels,
		metricInterval: metricInterval,
		warnRatio:      warnRatio,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel capacity sampling")
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

// Sample records the current length of every channel.
func (w *ChannelCapacityWorker) Sample() {
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		capacity, length := v.Cap(), v.Len()
		w.metrics.SetQueueLength(nc.Name, length)
		if capacity > 0 && float64(length)/float64(capacity) >= w.warnRatio {
			w.log.Warn("Channel close to saturation", "name", nc.Name, "length", length, "capacity", capacity)
		}
	}
}
