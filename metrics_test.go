package codegate

import (
	"sync"
	"testing"
)

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Inc(MetricVerifySuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().Counters[MetricVerifySuccess]; got != 1600 {
		t.Fatalf("expected 1600, got %d", got)
	}
}

func TestMetricsNilAndOutOfRange(t *testing.T) {
	var m *Metrics
	m.Inc(MetricCodeIssued)
	m.Add(MetricCodeIssued, 5)
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("expected empty snapshot from nil registry")
	}

	reg := NewMetrics()
	reg.Inc(metricCount + 1)
	for _, v := range reg.Snapshot().Counters {
		if v != 0 {
			t.Fatal("expected out-of-range inc to be ignored")
		}
	}
}
