package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for cache operations. Each cache instance
// gets its own Metrics with the cache name baked in as a constant label.
type Metrics struct {
	insertionsTotal prometheus.Counter
	hitsTotal       prometheus.Counter
	missesTotal     prometheus.Counter
	evictionsTotal  prometheus.Counter
	sizeGauge       prometheus.Gauge

	// Registration tracking
	registered bool
	mu         sync.Mutex
}

// MetricsConfig holds configuration for cache metrics.
type MetricsConfig struct {
	// Namespace is the prometheus namespace for metrics.
	Namespace string
	// Name identifies the cache instance, e.g. "receipts".
	Name string
	// ConstLabels are additional constant labels added to all metrics.
	ConstLabels prometheus.Labels
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(cfg MetricsConfig) *Metrics {
	constLabels := prometheus.Labels{"cache": cfg.Name}
	for k, v := range cfg.ConstLabels {
		constLabels[k] = v
	}

	return &Metrics{
		insertionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "cache",
			Name:        "insertions_total",
			Help:        "Total number of cache insertions",
			ConstLabels: constLabels,
		}),
		hitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "cache",
			Name:        "hits_total",
			Help:        "Total number of cache hits",
			ConstLabels: constLabels,
		}),
		missesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "cache",
			Name:        "misses_total",
			Help:        "Total number of cache misses",
			ConstLabels: constLabels,
		}),
		evictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "cache",
			Name:        "evictions_total",
			Help:        "Total number of cache evictions",
			ConstLabels: constLabels,
		}),
		sizeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "cache",
			Name:        "size",
			Help:        "Current number of items in the cache",
			ConstLabels: constLabels,
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

	collectors := []prometheus.Collector{
		m.insertionsTotal,
		m.hitsTotal,
		m.missesTotal,
		m.evictionsTotal,
		m.sizeGauge,
	}

	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			// Try to unregister any previously registered collectors
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

	registerer.Unregister(m.insertionsTotal)
	registerer.Unregister(m.hitsTotal)
	registerer.Unregister(m.missesTotal)
	registerer.Unregister(m.evictionsTotal)
	registerer.Unregister(m.sizeGauge)

	m.registered = false
}

// IncInsertions increments the insertions counter.
func (m *Metrics) IncInsertions() {
	m.insertionsTotal.Inc()
}

// IncHits increments the hits counter.
func (m *Metrics) IncHits() {
	m.hitsTotal.Inc()
}

// IncMisses increments the misses counter.
func (m *Metrics) IncMisses() {
	m.missesTotal.Inc()
}

// IncEvictions increments the evictions counter.
func (m *Metrics) IncEvictions() {
	m.evictionsTotal.Inc()
}

// SetSize sets the current cache size.
func (m *Metrics) SetSize(size float64) {
	m.sizeGauge.Set(size)
}
