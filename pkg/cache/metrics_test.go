package cache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Namespace: "workspaces",
		Name:      "receipts",
	})
	require.NotNil(t, m)

	registry := prometheus.NewRegistry()
	err := m.Register(registry)
	require.NoError(t, err)

	m.IncInsertions()
	m.IncInsertions()
	m.IncHits()
	m.IncMisses()
	m.IncEvictions()
	m.SetSize(2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.insertionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.hitsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.missesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.evictionsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.sizeGauge))
}

func TestMetrics_RegisterIdempotent(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Namespace: "workspaces",
		Name:      "receipts",
	})

	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))

	// Second registration is a no-op, not an error.
	require.NoError(t, m.Register(registry))
}

func TestMetrics_RegisterConflictRollsBack(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := NewMetrics(MetricsConfig{
		Namespace: "workspaces",
		Name:      "receipts",
	})
	require.NoError(t, first.Register(registry))

	// Same namespace and name collide on every collector.
	second := NewMetrics(MetricsConfig{
		Namespace: "workspaces",
		Name:      "receipts",
	})
	err := second.Register(registry)
	require.Error(t, err)

	// The failed registration must not leave partial collectors behind:
	// unregistering the first set and re-registering should succeed.
	first.Unregister(registry)
	require.NoError(t, second.Register(registry))
}

func TestMetrics_Unregister(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Namespace: "workspaces",
		Name:      "versions",
	})

	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))

	m.Unregister(registry)

	// After unregistering, a fresh Metrics with the same identity registers
	// cleanly.
	again := NewMetrics(MetricsConfig{
		Namespace: "workspaces",
		Name:      "versions",
	})
	require.NoError(t, again.Register(registry))
}

func TestMetrics_ConstLabels(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Namespace:   "workspaces",
		Name:        "receipts",
		ConstLabels: prometheus.Labels{"network": "sandbox"},
	})

	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))

	m.IncHits()

	families, err := registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	var found bool

	for _, fam := range families {
		if fam.GetName() != "workspaces_cache_hits_total" {
			continue
		}

		for _, metric := range fam.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}

			assert.Equal(t, "receipts", labels["cache"])
			assert.Equal(t, "sandbox", labels["network"])

			found = true
		}
	}

	assert.True(t, found, "expected workspaces_cache_hits_total to be gathered")
}

func TestCacheWithMetrics(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Namespace: "workspaces",
		Name:      "receipts",
	})

	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))

	log := logrus.New()
	config := DefaultConfig()
	config.Metrics = m

	cache := NewLookupCacheWithConfig[string, int](log, config)

	cache.Set("a", 1)

	_, ok := cache.Get("a")
	require.True(t, ok)

	_, ok = cache.Get("missing")
	require.False(t, ok)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.insertionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.hitsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.missesTotal))
}
