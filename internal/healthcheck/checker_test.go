package healthcheck

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpflowai/helpflow/internal/chat"
	"github.com/helpflowai/helpflow/internal/ingest"
	"github.com/helpflowai/helpflow/internal/queue"
)

type stubQueue struct {
	health queue.Health
	paused bool
}

func (s *stubQueue) GetHealth() queue.Health { return s.health }
func (s *stubQueue) Paused() bool            { return s.paused }

type stubBreaker struct {
	stats chat.BreakerStats
}

func (s *stubBreaker) PrimaryName() string             { return "anthropic" }
func (s *stubBreaker) PrimaryStats() chat.BreakerStats { return s.stats }

type stubLiveness struct {
	sources []ingest.SourceLiveness
}

func (s *stubLiveness) Snapshot() []ingest.SourceLiveness { return s.sources }

func TestQueueChecker(t *testing.T) {
	t.Parallel()

	healthy := &stubQueue{health: queue.Health{IsHealthy: true}}
	results := NewQueueChecker(nil, healthy).ListChecks(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusOK, results[0].Status)

	healthy.paused = true
	results = NewQueueChecker(nil, healthy).ListChecks(context.Background())
	assert.Equal(t, StatusWarn, results[0].Status)

	degraded := &stubQueue{health: queue.Health{
		IsHealthy: false,
		Counts:    queue.Counts{Waiting: 150, Failed: 12},
	}}
	results = NewQueueChecker(nil, degraded).ListChecks(context.Background())
	assert.Equal(t, StatusError, results[0].Status)
	assert.Equal(t, 150, results[0].Metadata["waiting"])
}

func TestProviderChecker(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state chat.BreakerState
		want  string
	}{
		{chat.BreakerClosed, StatusOK},
		{chat.BreakerHalfOpen, StatusWarn},
		{chat.BreakerOpen, StatusError},
	}
	for _, tc := range cases {
		checker := NewProviderChecker(&stubBreaker{stats: chat.BreakerStats{State: tc.state}})
		results := checker.ListChecks(context.Background())
		require.Len(t, results, 1)
		assert.Equal(t, tc.want, results[0].Status, "state %s", tc.state)
	}
}

func TestWebhookChecker(t *testing.T) {
	t.Parallel()

	checker := NewWebhookChecker(&stubLiveness{})
	results := checker.ListChecks(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusUnknown, results[0].Status)

	checker = NewWebhookChecker(&stubLiveness{sources: []ingest.SourceLiveness{
		{TenantID: "t1", Status: ingest.LivenessOK, Silence: time.Minute},
		{TenantID: "t2", Status: ingest.LivenessWarn, Silence: 7 * time.Minute},
		{TenantID: "t3", Status: ingest.LivenessCritical, Silence: 15 * time.Minute},
	}})
	results = checker.ListChecks(context.Background())
	require.Len(t, results, 3)
	statuses := map[string]string{}
	for _, r := range results {
		statuses[r.Metadata["tenant_id"].(string)] = r.Status
	}
	assert.Equal(t, StatusOK, statuses["t1"])
	assert.Equal(t, StatusWarn, statuses["t2"])
	assert.Equal(t, StatusError, statuses["t3"])
}

func TestRegistryAndOverall(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(
		NewQueueChecker(nil, &stubQueue{health: queue.Health{IsHealthy: true}}),
		NewProviderChecker(&stubBreaker{stats: chat.BreakerStats{State: chat.BreakerHalfOpen}}),
		nil,
	)
	results := reg.ListChecks(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, StatusWarn, Overall(results))

	assert.Equal(t, StatusOK, Overall(nil))
	assert.Equal(t, StatusError, Overall([]CheckResult{
		{Status: StatusWarn}, {Status: StatusError}, {Status: StatusOK},
	}))
	assert.Equal(t, StatusOK, Overall([]CheckResult{{Status: StatusUnknown}}))
}
