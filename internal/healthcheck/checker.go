// Package healthcheck evaluates runtime checks over the processing
// pipeline and aggregates them into a single health verdict.
package healthcheck

import "context"

const (
	// StatusOK indicates check passed.
	StatusOK = "ok"
	// StatusWarn indicates check completed with warning.
	StatusWarn = "warn"
	// StatusError indicates check failed.
	StatusError = "error"
	// StatusUnknown indicates check result is not yet known.
	StatusUnknown = "unknown"
)

// CheckResult is one runtime check item produced by a checker.
type CheckResult struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Label    string         `json:"label"`
	Status   string         `json:"status"`
	Summary  string         `json:"summary"`
	Detail   string         `json:"detail,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Checker evaluates one or more runtime checks.
type Checker interface {
	ListChecks(ctx context.Context) []CheckResult
}

// Registry fans a health evaluation out over its checkers.
type Registry struct {
	checkers []Checker
}

func NewRegistry(checkers ...Checker) *Registry {
	return &Registry{checkers: checkers}
}

// ListChecks evaluates every registered checker in order.
func (r *Registry) ListChecks(ctx context.Context) []CheckResult {
	if r == nil {
		return []CheckResult{}
	}
	results := make([]CheckResult, 0, len(r.checkers))
	for _, c := range r.checkers {
		if c == nil {
			continue
		}
		results = append(results, c.ListChecks(ctx)...)
	}
	return results
}

// Overall collapses check results into the worst observed status.
// Unknown does not degrade the verdict; an unprobed check is not a
// failing one.
func Overall(results []CheckResult) string {
	overall := StatusOK
	for _, r := range results {
		switch r.Status {
		case StatusError:
			return StatusError
		case StatusWarn:
			overall = StatusWarn
		}
	}
	return overall
}
