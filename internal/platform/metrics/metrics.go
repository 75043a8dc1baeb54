package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline. A nil *Metrics is
// valid and records nothing, so components can take it as optional.
type Metrics struct {
	Outcomes          *prometheus.CounterVec
	ProcessDuration   *prometheus.HistogramVec
	GeocodeCache      *prometheus.CounterVec
	GeocodeRequests   *prometheus.CounterVec
	BreakerTransition *prometheus.CounterVec
	LockContention    prometheus.Counter
	BatchRetries      prometheus.Counter
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skrining_outcomes_total",
			Help: "Terminal outcomes of entity processing, labelled by kind.",
		}, []string{"kind"}),
		ProcessDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skrining_process_duration_seconds",
			Help:    "Wall time spent processing one entity, labelled by outcome kind.",
			Buckets: []float64{0.05, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
		GeocodeCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skrining_geocode_cache_total",
			Help: "Geocode cache lookups, labelled by result (hit|miss).",
		}, []string{"result"}),
		GeocodeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skrining_geocode_requests_total",
			Help: "Geocode provider calls, labelled by provider and status.",
		}, []string{"provider", "status"}),
		BreakerTransition: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skrining_circuit_transitions_total",
			Help: "Circuit breaker state changes, labelled by breaker and new state.",
		}, []string{"breaker", "state"}),
		LockContention: f.NewCounter(prometheus.CounterOpts{
			Name: "skrining_lock_contention_total",
			Help: "Entity lock acquisitions that found the lock already held.",
		}),
		BatchRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "skrining_batch_retries_total",
			Help: "Entities re-run after a navigation failure.",
		}),
	}
}

// ObserveOutcome counts an outcome and its processing time.
func (m *Metrics) ObserveOutcome(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(kind).Inc()
	m.ProcessDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncrementGeocodeCache records a cache hit or miss.
func (m *Metrics) IncrementGeocodeCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.GeocodeCache.WithLabelValues("hit").Inc()
		return
	}
	m.GeocodeCache.WithLabelValues("miss").Inc()
}

// IncrementGeocodeRequest records a provider call result.
func (m *Metrics) IncrementGeocodeRequest(provider, status string) {
	if m == nil {
		return
	}
	m.GeocodeRequests.WithLabelValues(provider, status).Inc()
}

// IncrementBreakerTransition records a breaker opening or closing.
func (m *Metrics) IncrementBreakerTransition(name, state string) {
	if m == nil {
		return
	}
	m.BreakerTransition.WithLabelValues(name, state).Inc()
}

// IncrementLockContention counts a lock that was already held.
func (m *Metrics) IncrementLockContention() {
	if m == nil {
		return
	}
	m.LockContention.Inc()
}

// IncrementBatchRetries counts an entity retry.
func (m *Metrics) IncrementBatchRetries() {
	if m == nil {
		return
	}
	m.BatchRetries.Inc()
}
