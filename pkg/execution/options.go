package execution

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Options configures execution node behavior.
type Options struct {
	// ReceiptTTL bounds how long mined receipts stay cached.
	ReceiptTTL time.Duration
	// ReceiptPollInterval is the delay between receipt lookups while a
	// transaction is pending.
	ReceiptPollInterval time.Duration
	// ReceiptTimeout bounds how long to wait for a transaction to be mined.
	ReceiptTimeout time.Duration
	// MetricsNamespace is the prometheus namespace for node metrics.
	MetricsNamespace string
	// MetricsRegisterer receives the node's collectors. Nil disables metrics.
	MetricsRegisterer prometheus.Registerer
}

// DefaultOptions returns sane defaults for sandbox use, where blocks are
// mined instantly.
func DefaultOptions() *Options {
	return &Options{
		ReceiptTTL:          5 * time.Minute,
		ReceiptPollInterval: 250 * time.Millisecond,
		ReceiptTimeout:      2 * time.Minute,
	}
}
