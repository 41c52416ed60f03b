// Package health reports whether a rabbitkit client can reach its broker.
package health

import (
	"context"
	"time"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	}
	return 2
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Error     string                 `json:"error,omitempty"`
}

// Report is the aggregate of several checks
type Report struct {
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Checks    []CheckResult `json:"checks"`
}

// Checker defines the interface for health checks
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

// Run executes checkers in order; the report status is the worst result
func Run(ctx context.Context, checkers ...Checker) Report {
	start := time.Now()
	report := Report{
		Status:    StatusHealthy,
		Timestamp: start,
		Checks:    make([]CheckResult, 0, len(checkers)),
	}

	for _, c := range checkers {
		result := c.Check(ctx)
		if result.Status.rank() > report.Status.rank() {
			report.Status = result.Status
		}
		report.Checks = append(report.Checks, result)
	}

	report.Duration = time.Since(start)
	return report
}
