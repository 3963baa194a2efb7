// Package health implements the comprehensive health orchestrator: parallel
// component probes, overall-status aggregation, a bounded history ring, and
// a recovery manager, generalizing the teacher's sequential
// pkg/core.DefaultHealthCheckProvider into a concurrent one.
package health

import "time"

// Status mirrors pkg/core.HealthStatus plus the UNKNOWN state the spec
// requires for missing dependencies.
type Status string

const (
	StatusHealthy   Status = "HEALTHY"
	StatusDegraded  Status = "DEGRADED"
	StatusUnhealthy Status = "UNHEALTHY"
	StatusUnknown   Status = "UNKNOWN"
)

// ComponentHealth is one probe's result.
type ComponentHealth struct {
	Name            string         `json:"name"`
	Kind            string         `json:"kind"`
	Status          Status         `json:"status"`
	Message         string         `json:"message,omitempty"`
	LastCheck       time.Time      `json:"last_check"`
	ResponseTimeMS  float64        `json:"response_time_ms"`
	ErrorCount      int            `json:"error_count,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Summary is the HEALTHY/DEGRADED/UNHEALTHY/UNKNOWN component count.
type Summary struct {
	Healthy   int `json:"healthy"`
	Degraded  int `json:"degraded"`
	Unhealthy int `json:"unhealthy"`
	Unknown   int `json:"unknown"`
}

// CheckResult is the perform_comprehensive_health_check() response.
type CheckResult struct {
	OverallStatus Status                     `json:"overall_status"`
	Components    map[string]ComponentHealth `json:"components"`
	Timestamp     time.Time                  `json:"timestamp"`
	CorrelationID string                     `json:"correlation_id,omitempty"`
	DurationMS    float64                    `json:"duration_ms"`
	Summary       Summary                    `json:"summary"`
	Alerts        []string                   `json:"alerts"`
}

// HistoryEntry is one bounded-ring record of a past CheckResult.
type HistoryEntry struct {
	Timestamp           time.Time         `json:"timestamp"`
	OverallStatus       Status            `json:"overall_status"`
	ComponentStatusMap  map[string]Status `json:"component_status_map"`
	DurationMS          float64           `json:"duration_ms"`
}

// RecoveryResult is the attempt_component_recovery() response.
type RecoveryResult struct {
	Success      bool           `json:"success"`
	Component    string         `json:"component"`
	RecoveryType string         `json:"recovery_type"`
	DurationMS   float64        `json:"duration_ms"`
	Actions      []string       `json:"actions"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Thresholds bounds the resource probes' warning/critical percentages.
// Overridable by configuration; the zero value is never used directly —
// callers go through Thresholds.withDefaults().
type Thresholds struct {
	DiskWarningPercent      float64
	DiskCriticalPercent     float64
	MemoryWarningPercent    float64
	MemoryCriticalPercent   float64
	CPUWarningPercent       float64
	CPUCriticalPercent      float64
	ConnPoolWarningPercent  float64 // db_conn_threshold_percent
	ConnPoolCriticalPercent float64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.DiskWarningPercent == 0 {
		t.DiskWarningPercent = 85
	}
	if t.DiskCriticalPercent == 0 {
		t.DiskCriticalPercent = 95
	}
	if t.MemoryWarningPercent == 0 {
		t.MemoryWarningPercent = 85
	}
	if t.MemoryCriticalPercent == 0 {
		t.MemoryCriticalPercent = 95
	}
	if t.CPUWarningPercent == 0 {
		t.CPUWarningPercent = 85
	}
	if t.CPUCriticalPercent == 0 {
		t.CPUCriticalPercent = 95
	}
	if t.ConnPoolWarningPercent == 0 {
		t.ConnPoolWarningPercent = 80
	}
	if t.ConnPoolCriticalPercent == 0 {
		t.ConnPoolCriticalPercent = 95
	}
	return t
}

func bucketByPercent(used, warning, critical float64) Status {
	switch {
	case used >= critical:
		return StatusUnhealthy
	case used >= warning:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
