package workspaces

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for runner operations.
type Metrics struct {
	bootstrapDuration prometheus.Histogram
	runsTotal         *prometheus.CounterVec
	forksTotal        *prometheus.CounterVec

	registered bool
	mu         sync.Mutex
}

// NewMetrics creates a new Metrics instance under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		bootstrapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "bootstrap_duration_seconds",
			Help:      "Time spent bootstrapping the base environment",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "runs_total",
			Help:      "Total number of workspace runs by network and outcome",
		}, []string{"network", "outcome"}),
		forksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "forks_total",
			Help:      "Total number of workspace forks by strategy",
		}, []string{"strategy"}),
	}
}

// Register registers the metrics with the provided registerer.
// If registerer is nil, the default prometheus registerer is used.
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	collectors := []prometheus.Collector{
		m.bootstrapDuration,
		m.runsTotal,
		m.forksTotal,
	}

	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			for i := 0; i < len(collectors); i++ {
				registerer.Unregister(collectors[i])
			}

			return err
		}
	}

	m.registered = true

	return nil
}

// Unregister unregisters the metrics from the provided registerer.
func (m *Metrics) Unregister(registerer prometheus.Registerer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registered {
		return
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	registerer.Unregister(m.bootstrapDuration)
	registerer.Unregister(m.runsTotal)
	registerer.Unregister(m.forksTotal)

	m.registered = false
}

// ObserveBootstrap records how long the base environment took to come up.
func (m *Metrics) ObserveBootstrap(d time.Duration) {
	m.bootstrapDuration.Observe(d.Seconds())
}

// IncRun records a completed run.
func (m *Metrics) IncRun(network, outcome string) {
	m.runsTotal.WithLabelValues(network, outcome).Inc()
}

// IncFork records a fork by strategy.
func (m *Metrics) IncFork(strategy string) {
	m.forksTotal.WithLabelValues(strategy).Inc()
}
