package execution

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for execution node operations.
type Metrics struct {
	txSentTotal        prometheus.Counter
	receiptWaitSeconds prometheus.Histogram
	stateOpsTotal      *prometheus.CounterVec

	registered bool
	mu         sync.Mutex
}

// NewMetrics creates a new Metrics instance under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		txSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "transactions_sent_total",
			Help:      "Total number of transactions submitted to the node",
		}),
		receiptWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "receipt_wait_seconds",
			Help:      "Time spent waiting for transaction receipts",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		stateOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "state_ops_total",
			Help:      "Total number of dev RPC state operations by method",
		}, []string{"op"}),
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
		m.txSentTotal,
		m.receiptWaitSeconds,
		m.stateOpsTotal,
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

	registerer.Unregister(m.txSentTotal)
	registerer.Unregister(m.receiptWaitSeconds)
	registerer.Unregister(m.stateOpsTotal)

	m.registered = false
}

// IncTxSent increments the sent transactions counter.
func (m *Metrics) IncTxSent() {
	m.txSentTotal.Inc()
}

// ObserveReceiptWait records how long a receipt took to land.
func (m *Metrics) ObserveReceiptWait(d time.Duration) {
	m.receiptWaitSeconds.Observe(d.Seconds())
}

// IncStateOp increments the state operation counter for a dev RPC method.
func (m *Metrics) IncStateOp(op string) {
	m.stateOpsTotal.WithLabelValues(op).Inc()
}
