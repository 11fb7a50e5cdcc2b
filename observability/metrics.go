package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"nftfi/core/events"
	nativecommon "nftfi/native/common"
)

// FinancingMetricsRecorder tracks engine entry points and published events.
type FinancingMetricsRecorder struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
	events  *prometheus.CounterVec
	paused  prometheus.Gauge
}

var (
	financingOnce     sync.Once
	financingRegistry *FinancingMetricsRecorder
)

// FinancingMetrics returns the lazily-initialised recorder registered with the
// default Prometheus registry.
func FinancingMetrics() *FinancingMetricsRecorder {
	financingOnce.Do(func() {
		financingRegistry = NewFinancingMetrics(prometheus.DefaultRegisterer)
	})
	return financingRegistry
}

// NewFinancingMetrics builds a recorder registered with reg. Tests pass a
// fresh registry.
func NewFinancingMetrics(reg prometheus.Registerer) *FinancingMetricsRecorder {
	m := &FinancingMetricsRecorder{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftfi",
			Subsystem: "financing",
			Name:      "calls_total",
			Help:      "Engine entry point calls segmented by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nftfi",
			Subsystem: "financing",
			Name:      "call_duration_seconds",
			Help:      "Latency distribution for engine entry points.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftfi",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Committed financing events segmented by type.",
		}, []string{"type"}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nftfi",
			Subsystem: "financing",
			Name:      "paused",
			Help:      "1 while the financing module is paused.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.latency, m.events, m.paused)
	}
	return m
}

// Outcome classifies err into a stable label value.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch nativecommon.KindOf(err) {
	case nativecommon.ErrNotFound:
		return "not_found"
	case nativecommon.ErrValidation:
		return "invalid"
	case nativecommon.ErrState:
		return "conflict"
	case nativecommon.ErrUnauthorized:
		return "unauthorized"
	case nativecommon.ErrModulePaused:
		return "paused"
	case nativecommon.ErrReentrantCall:
		return "reentrant"
	default:
		return "error"
	}
}

// Observe records the outcome and latency of one entry point call.
func (m *FinancingMetricsRecorder) Observe(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if op = strings.TrimSpace(op); op == "" {
		op = "unknown"
	}
	m.calls.WithLabelValues(op, Outcome(err)).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// Emit counts a committed event. It makes the recorder an events.Emitter.
func (m *FinancingMetricsRecorder) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.events.WithLabelValues(evt.EventType()).Inc()
	if toggled, ok := evt.(events.PauseToggled); ok {
		m.SetPaused(toggled.Paused)
	}
}

func (m *FinancingMetricsRecorder) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}
