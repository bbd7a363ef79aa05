package testutil

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// PromCounterHasValue reports whether the named counter with exactly the
// given label values has the expected value.
func PromCounterHasValue(t testing.TB, metrics []*dto.MetricFamily, value float64, name string, label ...string) bool {
	t.Helper()
	m := findMetric(t, metrics, name, label...)
	return m != nil && value == m.GetCounter().GetValue()
}

// PromHistogramSampleCount returns how many observations the named histogram
// recorded for the given label values.
func PromHistogramSampleCount(t testing.TB, metrics []*dto.MetricFamily, name string, label ...string) uint64 {
	t.Helper()
	m := findMetric(t, metrics, name, label...)
	if m == nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func findMetric(t testing.TB, metrics []*dto.MetricFamily, name string, label ...string) *dto.Metric {
	t.Helper()
	for _, family := range metrics {
		if family.GetName() != name {
			continue
		}
	metricsLoop:
		for _, m := range family.GetMetric() {
			require.Equal(t, len(label), len(m.GetLabel()))
			for i, lv := range label {
				if lv != m.GetLabel()[i].GetValue() {
					continue metricsLoop
				}
			}
			return m
		}
	}
	return nil
}
