package sandbox

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for sandbox process lifecycle operations.
type Metrics struct {
	startedTotal       prometheus.Counter
	stoppedTotal       prometheus.Counter
	startFailuresTotal prometheus.Counter
	crashedTotal       prometheus.Counter
	running            prometheus.Gauge
	startDuration      prometheus.Histogram

	registered bool
	mu         sync.Mutex
}

// NewMetrics creates a new Metrics instance under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		startedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "started_total",
			Help:      "Total number of sandbox node processes started",
		}),
		stoppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "stopped_total",
			Help:      "Total number of sandbox node processes stopped",
		}),
		startFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "start_failures_total",
			Help:      "Total number of sandbox node processes that failed to start",
		}),
		crashedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "crashed_total",
			Help:      "Total number of sandbox node processes that exited unexpectedly",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "running",
			Help:      "Number of sandbox node processes currently running",
		}),
		startDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "start_duration_seconds",
			Help:      "Time from spawning a sandbox node to it answering RPC",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
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

	collectors := m.collectors()

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

	for _, c := range m.collectors() {
		registerer.Unregister(c)
	}

	m.registered = false
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.startedTotal,
		m.stoppedTotal,
		m.startFailuresTotal,
		m.crashedTotal,
		m.running,
		m.startDuration,
	}
}

// ObserveStart records a successful start.
func (m *Metrics) ObserveStart(d time.Duration) {
	m.startedTotal.Inc()
	m.running.Inc()
	m.startDuration.Observe(d.Seconds())
}

// IncStartFailure records a failed start.
func (m *Metrics) IncStartFailure() {
	m.startFailuresTotal.Inc()
}

// IncStopped records an orderly stop.
func (m *Metrics) IncStopped() {
	m.stoppedTotal.Inc()
	m.running.Dec()
}

// IncCrashed records an unexpected process exit.
func (m *Metrics) IncCrashed() {
	m.crashedTotal.Inc()
	m.running.Dec()
}
