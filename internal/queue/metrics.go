package queue

import (
	"sync"
	"time"
)

// Metrics keeps running processing counters. SLA breaches are an
// observability signal only: a slow success still counts as processed.
type Metrics struct {
	mu            sync.Mutex
	processed     int64
	failed        int64
	slaBreaches   int64
	totalDuration time.Duration
}

// MetricsSnapshot is the point-in-time counter view.
type MetricsSnapshot struct {
	Processed         int64         `json:"processed"`
	Failed            int64         `json:"failed"`
	SLABreaches       int64         `json:"sla_breaches"`
	AvgProcessingTime time.Duration `json:"avg_processing_time_ms"`
	SLACompliance     float64       `json:"sla_compliance"`
	ErrorRate         float64       `json:"error_rate"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordSuccess counts a processed job and, when the duration exceeds
// the job's SLA target, an SLA breach.
func (m *Metrics) RecordSuccess(duration, slaTarget time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
	m.totalDuration += duration
	if duration > slaTarget {
		m.slaBreaches++
	}
}

// RecordFailure counts a terminally failed job.
func (m *Metrics) RecordFailure(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
	m.totalDuration += duration
}

// Snapshot derives compliance and error rates from the raw counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MetricsSnapshot{
		Processed:   m.processed,
		Failed:      m.failed,
		SLABreaches: m.slaBreaches,
	}
	total := m.processed + m.failed
	if total > 0 {
		snap.AvgProcessingTime = m.totalDuration / time.Duration(total)
	}
	if m.processed > 0 {
		snap.SLACompliance = float64(m.processed-m.slaBreaches) / float64(m.processed)
		snap.ErrorRate = float64(m.failed) / float64(m.processed)
	}
	return snap
}
