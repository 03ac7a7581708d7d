package codegate

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricCodeIssued counts successfully issued verification codes.
	MetricCodeIssued MetricID = iota
	// MetricIssueFailure counts rejected or failed issuance attempts.
	MetricIssueFailure
	// MetricDeliveryFailure counts outbound mail transport failures.
	MetricDeliveryFailure
	// MetricVerifySuccess counts admissions.
	MetricVerifySuccess
	// MetricVerifyFailure counts failed verification attempts.
	MetricVerifyFailure
	// MetricLimitReached counts budget-exhausted rejections.
	MetricLimitReached
	// MetricBlocked counts denylisted-caller rejections.
	MetricBlocked
	// MetricSessionExpired counts liveness checks that found a dead session.
	MetricSessionExpired
	// MetricSessionPurged counts sessions removed by the coarse GC sweep.
	MetricSessionPurged
	// MetricCodesHarvested counts discovered codes persisted by the
	// correlation engine.
	MetricCodesHarvested
	// MetricHarvestRetry counts mailbox fetch attempts after the first.
	MetricHarvestRetry
	// MetricMailboxError counts mailbox connect/search failures.
	MetricMailboxError
	// MetricGlobalReset counts global session resets.
	MetricGlobalReset

	metricCount
)

// Metrics is a fixed-size atomic counter registry.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

func (m *Metrics) Add(id MetricID, delta uint64) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(delta)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
