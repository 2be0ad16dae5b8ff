package replication

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Push outcomes.
const (
	PushSucceeded     = "success"
	PushFailed        = "failure"
	PushUninitialized = "skipped_uninitialized"
	PushBridgeBlocked = "skipped_bridge"
	PushUnchanged     = "skipped_unchanged"
)

// Pull outcomes.
const (
	PullApplied   = "applied"
	PullNotFound  = "not_found"
	PullBusy      = "skipped_busy"
	PullDirty     = "skipped_dirty"
	PullDiscarded = "discarded_zombie"
	PullFailed    = "failure"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	Pushes        *prometheus.CounterVec
	Pulls         *prometheus.CounterVec
	RemoteLatency *prometheus.HistogramVec
	Dirty         prometheus.Gauge
	LastSync      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiftguard",
			Name:      "push_total",
			Help:      "Push attempts by outcome.",
		}, []string{"outcome"}),
		Pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiftguard",
			Name:      "pull_total",
			Help:      "Pull attempts by outcome.",
		}, []string{"outcome"}),
		RemoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shiftguard",
			Name:      "remote_call_seconds",
			Help:      "Latency of remote store calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Dirty: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shiftguard",
			Name:      "dirty",
			Help:      "1 while local changes are not confirmed pushed.",
		}),
		LastSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shiftguard",
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time of the last successful push or pull.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Pushes, m.Pulls, m.RemoteLatency, m.Dirty, m.LastSync)
	}
	return m
}

func (m *Metrics) push(outcome string) {
	m.Pushes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) pull(outcome string) {
	m.Pulls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observe(op string, start time.Time) {
	m.RemoteLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) setDirty(dirty bool) {
	if dirty {
		m.Dirty.Set(1)
	} else {
		m.Dirty.Set(0)
	}
}

func (m *Metrics) synced(at time.Time) {
	m.LastSync.Set(float64(at.UnixMilli()) / 1000)
}
