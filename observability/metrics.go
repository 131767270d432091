// Package observability exposes Prometheus metrics for the live layer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the connection registry, the router
// and the mutation bridge. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	// Live connections, anonymous included
	Connections prometheus.Gauge

	// Identities currently in presence
	OnlineIdentities prometheus.Gauge

	// Rooms with at least one member
	ActiveRooms prometheus.Gauge

	// Events accepted by the hub, by type
	EventsPublished *prometheus.CounterVec

	// Per-connection deliveries, by type
	EventsDelivered *prometheus.CounterVec

	// Per-connection drops, by reason
	EventsDropped *prometheus.CounterVec

	// Bridge notifications lost after a committed write, by type
	NotifyFailures *prometheus.CounterVec

	// Fan-out duration of one event
	FanoutLatency prometheus.Histogram

	// Buffered channel fill level, by channel name
	QueueLength *prometheus.GaugeVec

	ProcessCPU    prometheus.Gauge
	ProcessMemory prometheus.Gauge
}

// New registers every metric on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "collab_live_connections",
			Help: "Number of registered live connections",
		}),
		OnlineIdentities: factory.NewGauge(prometheus.GaugeOpts{
			Name: "collab_live_online_identities",
			Help: "Number of identities in the presence set",
		}),
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "collab_live_active_rooms",
			Help: "Number of rooms with at least one member",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_live_events_published_total",
			Help: "Events accepted by the hub by type",
		}, []string{"type"}),
		EventsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_live_events_delivered_total",
			Help: "Events handed to a connection queue by type",
		}, []string{"type"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_live_events_dropped_total",
			Help: "Events dropped by reason",
		}, []string{"reason"}), // reason: "queue_full", "closed", "hub_saturated", "write_failed"
		NotifyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_live_notify_failures_total",
			Help: "Notifications lost after a committed write by event type",
		}, []string{"type"}),
		FanoutLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "collab_live_fanout_duration_seconds",
			Help:    "Duration of the fan-out of a single event",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		QueueLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "collab_live_queue_length",
			Help: "Number of items waiting in an internal channel",
		}, []string{"channel"}),
		ProcessCPU: factory.NewGauge(prometheus.GaugeOpts{
			Name: "collab_live_process_cpu_percent",
			Help: "CPU usage of the server process",
		}),
		ProcessMemory: factory.NewGauge(prometheus.GaugeOpts{
			Name: "collab_live_process_rss_bytes",
			Help: "Resident memory of the server process",
		}),
	}
}

func (m *Metrics) SetConnections(n int) {
	if m != nil {
		m.Connections.Set(float64(n))
	}
}

func (m *Metrics) SetOnline(n int) {
	if m != nil {
		m.OnlineIdentities.Set(float64(n))
	}
}

func (m *Metrics) SetActiveRooms(n int) {
	if m != nil {
		m.ActiveRooms.Set(float64(n))
	}
}

func (m *Metrics) IncPublished(eventType string) {
	if m != nil {
		m.EventsPublished.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncDelivered(eventType string) {
	if m != nil {
		m.EventsDelivered.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncDropped(reason string) {
	if m != nil {
		m.EventsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncNotifyFailure(eventType string) {
	if m != nil {
		m.NotifyFailures.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) ObserveFanout(d time.Duration) {
	if m != nil {
		m.FanoutLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) SetQueueLength(channel string, n int) {
	if m != nil {
		m.QueueLength.WithLabelValues(channel).Set(float64(n))
	}
}

// ObserveProcess records the last health sample of the process.
func (m *Metrics) ObserveProcess(cpu float64, rssBytes uint64) {
	if m != nil {
		m.ProcessCPU.Set(cpu)
		m.ProcessMemory.Set(float64(rssBytes))
	}
}
