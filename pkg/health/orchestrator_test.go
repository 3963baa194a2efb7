package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func healthyProbe(kind string) Probe {
	return func(ctx context.Context) ComponentHealth { return ComponentHealth{Kind: kind, Status: StatusHealthy} }
}

func unhealthyProbe(kind, msg string) Probe {
	return func(ctx context.Context) ComponentHealth { return ComponentHealth{Kind: kind, Status: StatusUnhealthy, Message: msg} }
}

func degradedProbe(kind, msg string) Probe {
	return func(ctx context.Context) ComponentHealth { return ComponentHealth{Kind: kind, Status: StatusDegraded, Message: msg} }
}

func allHealthyProbes() map[string]Probe {
	probes := make(map[string]Probe, len(FixedProbeSet))
	for _, name := range FixedProbeSet {
		probes[name] = healthyProbe(name)
	}
	return probes
}

func TestCheckAllHealthyYieldsHealthy(t *testing.T) {
	o := NewOrchestrator(allHealthyProbes(), Config{})
	result := o.Check(context.Background(), "corr-1")
	if result.OverallStatus != StatusHealthy {
		t.Errorf("overall = %s, want HEALTHY", result.OverallStatus)
	}
	if result.Summary.Healthy != len(FixedProbeSet) {
		t.Errorf("summary = %+v", result.Summary)
	}
}

func TestCheckMissingProbeYieldsUnknownNotError(t *testing.T) {
	probes := allHealthyProbes()
	delete(probes, "websocket_pool")
	o := NewOrchestrator(probes, Config{})
	result := o.Check(context.Background(), "")
	if result.Components["websocket_pool"].Status != StatusUnknown {
		t.Errorf("status = %s, want UNKNOWN", result.Components["websocket_pool"].Status)
	}
}

func TestCheckCriticalComponentUnhealthyForcesOverallUnhealthy(t *testing.T) {
	probes := allHealthyProbes()
	probes["database"] = unhealthyProbe("database", "connection refused")
	o := NewOrchestrator(probes, Config{})
	result := o.Check(context.Background(), "")
	if result.OverallStatus != StatusUnhealthy {
		t.Errorf("overall = %s, want UNHEALTHY (database is critical)", result.OverallStatus)
	}
}

func TestCheckNonCriticalUnhealthyYieldsDegraded(t *testing.T) {
	probes := allHealthyProbes()
	probes["cpu"] = unhealthyProbe("cpu", "sample failed")
	o := NewOrchestrator(probes, Config{})
	result := o.Check(context.Background(), "")
	if result.OverallStatus != StatusDegraded {
		t.Errorf("overall = %s, want DEGRADED", result.OverallStatus)
	}
	found := false
	for _, a := range result.Alerts {
		if a == "CRITICAL: cpu is UNHEALTHY - sample failed" {
			found = true
		}
	}
	if !found {
		t.Errorf("alerts = %v, missing expected cpu alert", result.Alerts)
	}
}

func TestCheckSingleDegradedYieldsOverallDegraded(t *testing.T) {
	probes := allHealthyProbes()
	probes["cpu"] = degradedProbe("cpu", "elevated load")
	o := NewOrchestrator(probes, Config{})
	result := o.Check(context.Background(), "")
	if result.OverallStatus != StatusDegraded {
		t.Errorf("overall = %s, want DEGRADED (one of nine DEGRADED still raises overall)", result.OverallStatus)
	}
}

func TestCheckMajorityUnhealthyForcesOverallUnhealthy(t *testing.T) {
	probes := allHealthyProbes()
	count := 0
	for name := range probes {
		if count >= 5 {
			break
		}
		if criticalComponents[name] {
			continue
		}
		probes[name] = unhealthyProbe(name, "down")
		count++
	}
	o := NewOrchestrator(probes, Config{})
	result := o.Check(context.Background(), "")
	if result.OverallStatus != StatusUnhealthy {
		t.Errorf("overall = %s, want UNHEALTHY (>50%% unhealthy)", result.OverallStatus)
	}
}

func TestCheckProbeTimeoutSynthesizesUnhealthy(t *testing.T) {
	probes := allHealthyProbes()
	probes["memory"] = func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		return ComponentHealth{Status: StatusHealthy}
	}
	o := NewOrchestrator(probes, Config{ComponentTimeout: 10 * time.Millisecond, GlobalTimeout: time.Second})
	result := o.Check(context.Background(), "")
	if result.Components["memory"].Status != StatusUnhealthy {
		t.Errorf("status = %s, want UNHEALTHY on timeout", result.Components["memory"].Status)
	}
}

func TestCheckProbePanicSynthesizesUnhealthy(t *testing.T) {
	probes := allHealthyProbes()
	probes["redis"] = func(ctx context.Context) ComponentHealth { panic("boom") }
	o := NewOrchestrator(probes, Config{})
	result := o.Check(context.Background(), "")
	if result.Components["redis"].Status != StatusUnhealthy {
		t.Errorf("status = %s, want UNHEALTHY on panic", result.Components["redis"].Status)
	}
	if result.OverallStatus != StatusUnhealthy {
		t.Error("redis is critical, panic should force overall UNHEALTHY")
	}
}

func TestHistoryBoundedByMaxEntries(t *testing.T) {
	o := NewOrchestrator(allHealthyProbes(), Config{MaxHistoryEntries: 2})
	o.Check(context.Background(), "1")
	o.Check(context.Background(), "2")
	o.Check(context.Background(), "3")
	if len(o.History()) != 2 {
		t.Errorf("history length = %d, want 2", len(o.History()))
	}
}

func TestPingProbeReportsHealthyAndUnhealthy(t *testing.T) {
	ok := PingProbe("db", func(ctx context.Context) error { return nil })
	if ok(context.Background()).Status != StatusHealthy {
		t.Error("expected healthy ping")
	}
	failing := PingProbe("db", func(ctx context.Context) error { return errors.New("refused") })
	if failing(context.Background()).Status != StatusUnhealthy {
		t.Error("expected unhealthy ping")
	}
	unset := PingProbe("db", nil)
	if unset(context.Background()).Status != StatusUnknown {
		t.Error("expected unknown ping when unconfigured")
	}
}
