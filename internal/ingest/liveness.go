package ingest

import (
	"sync"
	"time"
)

// Liveness thresholds: a webhook source that has gone quiet usually
// means a broken provider binding, not a quiet customer base.
const (
	livenessWarnAfter     = 5 * time.Minute
	livenessCriticalAfter = 10 * time.Minute
)

// Liveness status values.
const (
	LivenessOK       = "ok"
	LivenessWarn     = "warn"
	LivenessCritical = "error"
)

// SourceLiveness reports the inbound-event recency for one tenant
// instance.
type SourceLiveness struct {
	TenantID    string        `json:"tenant_id"`
	LastEventAt time.Time     `json:"last_event_at"`
	Silence     time.Duration `json:"silence_ms"`
	Status      string        `json:"status"`
}

// LivenessTracker records the last inbound event per webhook source.
type LivenessTracker struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func NewLivenessTracker() *LivenessTracker {
	return &LivenessTracker{
		last: map[string]time.Time{},
		now:  time.Now,
	}
}

// Record notes an inbound event from the source.
func (t *LivenessTracker) Record(tenantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[tenantID] = t.now()
}

// Snapshot reports every known source with its silence status.
func (t *LivenessTracker) Snapshot() []SourceLiveness {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	out := make([]SourceLiveness, 0, len(t.last))
	for tenantID, last := range t.last {
		silence := now.Sub(last)
		status := LivenessOK
		switch {
		case silence > livenessCriticalAfter:
			status = LivenessCritical
		case silence > livenessWarnAfter:
			status = LivenessWarn
		}
		out = append(out, SourceLiveness{
			TenantID:    tenantID,
			LastEventAt: last,
			Silence:     silence,
			Status:      status,
		})
	}
	return out
}
