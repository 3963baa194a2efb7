package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/netover/tws-gateway/pkg/telemetry"
)

var orchTracer = otel.Tracer("tws-gateway/health")

// Probe checks one component's health. Implementations report a dependency
// that is not configured as StatusUnknown rather than as an error, and a
// dependency that fails its check as StatusUnhealthy; Probe itself never
// panics — Orchestrator treats a panic the same as a timeout.
type Probe func(ctx context.Context) ComponentHealth

// criticalComponents are the names whose UNHEALTHY status alone forces the
// overall result to UNHEALTHY regardless of the other components.
var criticalComponents = map[string]bool{"database": true, "redis": true}

// FixedProbeSet is the spec's mandated probe name list, in the order they
// are registered by NewOrchestrator's caller.
var FixedProbeSet = []string{
	"database", "redis", "cache_hierarchy", "file_system", "memory", "cpu",
	"tws_monitor", "connection_pools", "websocket_pool",
}

// Config bounds one comprehensive health check invocation.
type Config struct {
	ComponentTimeout time.Duration
	GlobalTimeout    time.Duration
	MaxHistoryEntries int
	RetentionDays    int
}

func (c Config) withDefaults() Config {
	if c.ComponentTimeout <= 0 {
		c.ComponentTimeout = 5 * time.Second
	}
	if c.GlobalTimeout <= 0 {
		c.GlobalTimeout = 15 * time.Second
	}
	if c.MaxHistoryEntries <= 0 {
		c.MaxHistoryEntries = 500
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 7
	}
	return c
}

// Orchestrator runs the fixed probe set concurrently and aggregates them
// into a single CheckResult, per perform_comprehensive_health_check().
type Orchestrator struct {
	probes map[string]Probe
	cfg    Config

	mu      sync.Mutex
	history []HistoryEntry
}

// NewOrchestrator creates an Orchestrator. Probes not present in the
// supplied map are synthesized as UNKNOWN at check time, matching the
// spec's "missing dependencies yield UNKNOWN not an exception" rule.
func NewOrchestrator(probes map[string]Probe, cfg Config) *Orchestrator {
	return &Orchestrator{probes: probes, cfg: cfg.withDefaults()}
}

// Check runs perform_comprehensive_health_check().
func (o *Orchestrator) Check(ctx context.Context, correlationID string) CheckResult {
	ctx, span := orchTracer.Start(ctx, "health.check")
	defer span.End()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.GlobalTimeout)
	defer cancel()

	results := o.runProbes(ctx)

	summary := Summary{}
	for _, ch := range results {
		switch ch.Status {
		case StatusHealthy:
			summary.Healthy++
		case StatusDegraded:
			summary.Degraded++
		case StatusUnhealthy:
			summary.Unhealthy++
		default:
			summary.Unknown++
		}
	}

	overall := aggregateStatus(results, summary)
	alerts := buildAlerts(results)

	result := CheckResult{
		OverallStatus: overall,
		Components:    results,
		Timestamp:     start,
		CorrelationID: correlationID,
		DurationMS:    float64(time.Since(start).Microseconds()) / 1000,
		Summary:       summary,
		Alerts:        alerts,
	}

	o.pushHistory(result)
	return result
}

// runProbes executes every probe in FixedProbeSet concurrently, each
// bounded by ComponentTimeout; a probe that is absent, times out, or
// panics synthesizes a result instead of failing the whole check.
func (o *Orchestrator) runProbes(ctx context.Context) map[string]ComponentHealth {
	type indexed struct {
		name   string
		health ComponentHealth
	}
	out := make(chan indexed, len(FixedProbeSet))
	var wg sync.WaitGroup

	for _, name := range FixedProbeSet {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- indexed{name: name, health: o.runOne(ctx, name)}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make(map[string]ComponentHealth, len(FixedProbeSet))
	for ix := range out {
		results[ix.name] = ix.health
	}
	return results
}

func (o *Orchestrator) runOne(ctx context.Context, name string) ComponentHealth {
	ctx, span := orchTracer.Start(ctx, "health.probe")
	defer span.End()

	probe, ok := o.probes[name]
	if !ok {
		span.SetAttributes(telemetry.ComponentHealthAttributes(name, string(StatusUnknown))...)
		return ComponentHealth{Name: name, Status: StatusUnknown, Message: "no probe registered", LastCheck: time.Now()}
	}

	probeCtx, cancel := context.WithTimeout(ctx, o.cfg.ComponentTimeout)
	defer cancel()

	type probeOutcome struct {
		health ComponentHealth
		panicked error
	}
	done := make(chan probeOutcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- probeOutcome{panicked: fmt.Errorf("probe panic: %v", r)}
			}
		}()
		done <- probeOutcome{health: probe(probeCtx)}
	}()

	select {
	case <-probeCtx.Done():
		span.SetAttributes(telemetry.ComponentHealthAttributes(name, string(StatusUnhealthy))...)
		return ComponentHealth{
			Name: name, Status: StatusUnhealthy, Message: probeCtx.Err().Error(),
			LastCheck: time.Now(), ResponseTimeMS: msSince(start),
		}
	case outcome := <-done:
		if outcome.panicked != nil {
			span.SetAttributes(telemetry.ComponentHealthAttributes(name, string(StatusUnhealthy))...)
			return ComponentHealth{
				Name: name, Status: StatusUnhealthy, Message: outcome.panicked.Error(),
				LastCheck: time.Now(), ResponseTimeMS: msSince(start),
			}
		}
		ch := outcome.health
		ch.Name = name
		span.SetAttributes(telemetry.ComponentHealthAttributes(name, string(ch.Status))...)
		if ch.LastCheck.IsZero() {
			ch.LastCheck = time.Now()
		}
		if ch.ResponseTimeMS == 0 {
			ch.ResponseTimeMS = msSince(start)
		}
		return ch
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// aggregateStatus implements the overall-status rule, worst-status-wins: a
// critical component UNHEALTHY forces UNHEALTHY; otherwise > 50% unhealthy
// forces UNHEALTHY; otherwise any UNHEALTHY or DEGRADED component at all
// (not just > 30% of them) is DEGRADED; else HEALTHY.
func aggregateStatus(results map[string]ComponentHealth, summary Summary) Status {
	for name := range criticalComponents {
		if ch, ok := results[name]; ok && ch.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
	}

	total := len(results)
	if total == 0 {
		return StatusUnknown
	}
	if float64(summary.Unhealthy) > 0.5*float64(total) {
		return StatusUnhealthy
	}
	if summary.Unhealthy > 0 || summary.Degraded > 0 {
		return StatusDegraded
	}
	return StatusHealthy
}

func buildAlerts(results map[string]ComponentHealth) []string {
	alerts := make([]string, 0)
	for _, name := range FixedProbeSet {
		ch, ok := results[name]
		if !ok || ch.Status == StatusHealthy {
			continue
		}
		alerts = append(alerts, fmt.Sprintf("%s: %s is %s - %s", alertLevel(ch.Status), name, ch.Status, ch.Message))
	}
	return alerts
}

func alertLevel(s Status) string {
	switch s {
	case StatusUnhealthy:
		return "CRITICAL"
	case StatusDegraded:
		return "WARNING"
	default:
		return "INFO"
	}
}

func (o *Orchestrator) pushHistory(result CheckResult) {
	entry := HistoryEntry{
		Timestamp:     result.Timestamp,
		OverallStatus: result.OverallStatus,
		DurationMS:    result.DurationMS,
	}
	entry.ComponentStatusMap = make(map[string]Status, len(result.Components))
	for name, ch := range result.Components {
		entry.ComponentStatusMap[name] = ch.Status
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.history = append(o.history, entry)
	if len(o.history) > o.cfg.MaxHistoryEntries {
		over := len(o.history) - o.cfg.MaxHistoryEntries
		o.history = o.history[over:]
	}
	o.ageOutHistoryLocked(time.Now())
}

func (o *Orchestrator) ageOutHistoryLocked(now time.Time) {
	cutoff := now.AddDate(0, 0, -o.cfg.RetentionDays)
	kept := o.history[:0:0]
	for _, e := range o.history {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	o.history = kept
}

// History returns a snapshot of the bounded history ring, oldest first.
func (o *Orchestrator) History() []HistoryEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]HistoryEntry, len(o.history))
	copy(out, o.history)
	return out
}
