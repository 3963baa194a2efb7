package health

import (
	"context"
	"runtime"
	"syscall"
	"time"

	"github.com/netover/tws-gateway/pkg/resilience"
	"github.com/netover/tws-gateway/pkg/telemetry"
)

// breakerStateCode maps a circuit breaker's string state to the numeric
// code BreakerStateAttributes records (0=closed, 1=half-open, 2=open),
// ordered by severity so a dashboard can alert on state >= 1.
func breakerStateCode(s resilience.State) int64 {
	switch s {
	case resilience.StateOpen:
		return 2
	case resilience.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// MemoryProbe reports heap usage against Thresholds.Memory*. Grounded on
// runtime.MemStats rather than a third-party system-metrics library: no
// such dependency (e.g. gopsutil) appears anywhere in this repository's
// example pack, so this probe is one of the few stdlib-only pieces, with
// that gap noted in the design ledger.
func MemoryProbe(limitBytes uint64, thresholds Thresholds) Probe {
	thresholds = thresholds.withDefaults()
	return func(ctx context.Context) ComponentHealth {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		var usedPercent float64
		if limitBytes > 0 {
			usedPercent = float64(m.Sys) / float64(limitBytes) * 100
		}

		status := bucketByPercent(usedPercent, thresholds.MemoryWarningPercent, thresholds.MemoryCriticalPercent)
		return ComponentHealth{
			Kind:   "resource",
			Status: status,
			Metadata: map[string]any{
				"sys_bytes":        m.Sys,
				"heap_alloc_bytes": m.HeapAlloc,
				"used_percent":     usedPercent,
				"num_goroutine":    runtime.NumGoroutine(),
			},
		}
	}
}

// CPUProbe takes three samples 50ms apart of the runtime's cumulative GC
// CPU fraction (runtime.MemStats.GCCPUFraction, the only CPU signal the
// standard library exposes without a platform-specific syscall) and
// averages them to dampen a single burst reading.
func CPUProbe(thresholds Thresholds) Probe {
	thresholds = thresholds.withDefaults()
	return func(ctx context.Context) ComponentHealth {
		samples := make([]float64, 0, 3)
		for i := 0; i < 3; i++ {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			samples = append(samples, m.GCCPUFraction*100)
			if i < 2 {
				select {
				case <-ctx.Done():
					return ComponentHealth{Kind: "resource", Status: StatusUnknown, Message: ctx.Err().Error()}
				case <-time.After(50 * time.Millisecond):
				}
			}
		}

		var sum float64
		for _, s := range samples {
			sum += s
		}
		mean := sum / float64(len(samples))

		status := bucketByPercent(mean, thresholds.CPUWarningPercent, thresholds.CPUCriticalPercent)
		return ComponentHealth{
			Kind:     "resource",
			Status:   status,
			Metadata: map[string]any{"gc_cpu_percent": mean, "samples": samples},
		}
	}
}

// FileSystemProbe reports disk usage for path against Thresholds.Disk*.
func FileSystemProbe(path string, thresholds Thresholds) Probe {
	thresholds = thresholds.withDefaults()
	return func(ctx context.Context) ComponentHealth {
		var stat syscall.Statfs_t
		if err := syscall.Statfs(path, &stat); err != nil {
			return ComponentHealth{Kind: "filesystem", Status: StatusUnknown, Message: err.Error()}
		}

		total := stat.Blocks * uint64(stat.Bsize)
		free := stat.Bavail * uint64(stat.Bsize)
		used := total - free
		var usedPercent float64
		if total > 0 {
			usedPercent = float64(used) / float64(total) * 100
		}

		status := bucketByPercent(usedPercent, thresholds.DiskWarningPercent, thresholds.DiskCriticalPercent)
		return ComponentHealth{
			Kind:   "filesystem",
			Status: status,
			Metadata: map[string]any{
				"path": path, "total_bytes": total, "used_bytes": used, "used_percent": usedPercent,
			},
		}
	}
}

// ConnPoolStats is the minimal pool-state view a connection-pool probe
// needs; it is supplied by the stats callback passed to ConnPoolProbe.
type ConnPoolStats struct {
	InUse int
	Max   int
}

// ConnPoolProbe reports pool utilization against Thresholds.ConnPool*.
func ConnPoolProbe(name string, stats func() ConnPoolStats, thresholds Thresholds) Probe {
	thresholds = thresholds.withDefaults()
	return func(ctx context.Context) ComponentHealth {
		s := stats()
		var usedPercent float64
		if s.Max > 0 {
			usedPercent = float64(s.InUse) / float64(s.Max) * 100
		}
		status := bucketByPercent(usedPercent, thresholds.ConnPoolWarningPercent, thresholds.ConnPoolCriticalPercent)
		return ComponentHealth{
			Kind:   "pool",
			Status: status,
			Metadata: map[string]any{
				"pool": name, "in_use": s.InUse, "max": s.Max, "used_percent": usedPercent,
			},
		}
	}
}

// BreakerProbe reports a circuit breaker's state as component health: OPEN
// is UNHEALTHY, HALF_OPEN is DEGRADED, CLOSED is HEALTHY. cmd/gateway wires it as the
// connection_pools probe over the tws_api breaker from
// pkg/resilience.Registry.
func BreakerProbe(name string, breaker *resilience.CircuitBreaker) Probe {
	return func(ctx context.Context) ComponentHealth {
		if breaker == nil {
			return ComponentHealth{Kind: "circuitbreaker", Status: StatusUnknown, Message: "breaker not configured"}
		}
		_, span := orchTracer.Start(ctx, "health.probe.breaker")
		defer span.End()

		state := breaker.State()
		span.SetAttributes(telemetry.BreakerStateAttributes(name, breakerStateCode(state))...)

		var status Status
		switch state {
		case resilience.StateOpen:
			status = StatusUnhealthy
		case resilience.StateHalfOpen:
			status = StatusDegraded
		default:
			status = StatusHealthy
		}
		return ComponentHealth{
			Kind:   "circuitbreaker",
			Status: status,
			Metadata: map[string]any{"breaker": name, "state": string(state)},
		}
	}
}

// PingProbe wraps a simple connectivity check (database, redis, the TWS
// backend itself) into a Probe: success is HEALTHY, failure is UNHEALTHY,
// a nil ping func is UNKNOWN.
func PingProbe(kind string, ping func(ctx context.Context) error) Probe {
	return func(ctx context.Context) ComponentHealth {
		if ping == nil {
			return ComponentHealth{Kind: kind, Status: StatusUnknown, Message: "not configured"}
		}
		if err := ping(ctx); err != nil {
			return ComponentHealth{Kind: kind, Status: StatusUnhealthy, Message: err.Error()}
		}
		return ComponentHealth{Kind: kind, Status: StatusHealthy}
	}
}
