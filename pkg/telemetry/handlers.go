package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// MetricsExporter is the subset of pkg/metrics.Registry the HTTP facade
// needs.
type MetricsExporter interface {
	ExportJSON() ([]byte, error)
}

// MetricsHandler returns an http.HandlerFunc that dumps reg's current
// metrics as JSON, implementing the observability facade's metrics
// endpoint.
func MetricsHandler(reg MetricsExporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := reg.ExportJSON()
		if err != nil {
			http.Error(w, "failed to export metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

// HealthChecker is the subset of pkg/health.Orchestrator the HTTP facade
// needs.
type HealthChecker interface {
	Check(ctx context.Context, correlationID string) any
}

// HealthCheckFunc adapts a plain function (such as a closure wrapping
// *health.Orchestrator, whose Check returns a concrete health.CheckResult
// rather than `any`) to HealthChecker.
type HealthCheckFunc func(ctx context.Context, correlationID string) any

// Check implements HealthChecker.
func (f HealthCheckFunc) Check(ctx context.Context, correlationID string) any {
	return f(ctx, correlationID)
}

// HealthHandler returns an http.HandlerFunc that runs a fresh comprehensive
// health check and serializes the result as JSON, implementing the
// observability facade's health endpoint.
func HealthHandler(checker HealthChecker, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		result := checker.Check(ctx, correlationID)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			http.Error(w, "failed to encode health result", http.StatusInternalServerError)
		}
	}
}
