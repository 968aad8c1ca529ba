package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics records repository operations and purchased units. A nil
// *StoreMetrics is valid and records nothing.
type StoreMetrics struct {
	duration  *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	purchased prometheus.Counter
}

// NewStoreMetrics registers the store metrics on the provided registerer.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coinstock",
		Name:      "store_operation_duration_seconds",
		Help:      "Duration of repository operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinstock",
		Name:      "store_operation_failures_total",
		Help:      "Failed repository operations by envelope code.",
	}, []string{"op", "code"})
	purchased := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "coinstock",
		Name:      "purchased_units_total",
		Help:      "Units added to stock through recorded purchases.",
	})
	reg.MustRegister(duration, failures, purchased)
	return &StoreMetrics{
		duration:  duration,
		failures:  failures,
		purchased: purchased,
	}
}

func (m *StoreMetrics) ObserveDuration(op string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

func (m *StoreMetrics) IncFailure(op string, code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(op), normalizeLabel(code)).Inc()
}

func (m *StoreMetrics) AddPurchasedUnits(units int) {
	if m == nil || m.purchased == nil || units <= 0 {
		return
	}
	m.purchased.Add(float64(units))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
