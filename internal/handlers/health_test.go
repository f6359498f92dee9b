package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpflowai/helpflow/internal/healthcheck"
	"github.com/helpflowai/helpflow/internal/queue"
)

type fakeHealthQueue struct {
	health queue.Health
	paused bool
}

func (f *fakeHealthQueue) Counts() queue.Counts    { return f.health.Counts }
func (f *fakeHealthQueue) GetHealth() queue.Health { return f.health }
func (f *fakeHealthQueue) Paused() bool            { return f.paused }

// stubHealthSource narrows fakeHealthQueue to the checker interface.
type stubHealthSource struct {
	q *fakeHealthQueue
}

func (s *stubHealthSource) GetHealth() queue.Health { return s.q.GetHealth() }
func (s *stubHealthSource) Paused() bool            { return s.q.Paused() }

func TestHealthReport(t *testing.T) {
	t.Parallel()

	metrics := queue.NewMetrics()
	metrics.RecordSuccess(100, 200)
	q := &fakeHealthQueue{health: queue.Health{IsHealthy: true, Counts: queue.Counts{Waiting: 2}}}
	checks := healthcheck.NewRegistry(healthcheck.NewQueueChecker(nil, &stubHealthSource{q}))

	e := echo.New()
	NewHealthHandler(nil, metrics, q, nil, nil, checks).Register(e)

	rec := do(e, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, healthcheck.StatusOK, report.Status)
	assert.Equal(t, 2, report.Queue.Counts.Waiting)
	assert.EqualValues(t, 1, report.Metrics.Processed)
	require.Len(t, report.Checks, 1)
}

func TestHealthDegradedStillAnswers200(t *testing.T) {
	t.Parallel()

	q := &fakeHealthQueue{health: queue.Health{IsHealthy: false, Counts: queue.Counts{Waiting: 500}}}
	checks := healthcheck.NewRegistry(healthcheck.NewQueueChecker(nil, &stubHealthSource{q}))

	e := echo.New()
	NewHealthHandler(nil, nil, q, nil, nil, checks).Register(e)

	rec := do(e, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, healthcheck.StatusError, report.Status)
}
