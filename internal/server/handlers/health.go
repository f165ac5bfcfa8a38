// internal/server/handlers/health.go

package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthCheck reports a dependency failure as an error
type HealthCheck func(ctx context.Context) error

// CheckResult is the outcome of one health check
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// HealthStatus is the health response body
type HealthStatus struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// HealthHandler runs the named checks and answers 200 when all pass, else 503
func HealthHandler(service string, checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := HealthStatus{
			Status:    StatusHealthy,
			Service:   service,
			Timestamp: time.Now().Unix(),
			Checks:    make(map[string]CheckResult, len(names)),
		}

		for _, name := range names {
			start := time.Now()
			err := checks[name](ctx)
			result := CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
			if err != nil {
				result.Status = StatusUnhealthy
				result.Message = err.Error()
				status.Status = StatusUnhealthy
			}
			status.Checks[name] = result
		}

		code := http.StatusOK
		if status.Status != StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		respondWithJSON(w, code, status)
	}
}
