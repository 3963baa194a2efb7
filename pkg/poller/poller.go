// Package poller runs the proactive TWS poller: a long-running task that
// periodically pulls a small plan snapshot from the backend, records it
// into the graph service's temporal store, and publishes gauges.
package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/netover/tws-gateway/pkg/apperrors"
	"github.com/netover/tws-gateway/pkg/graph"
	"github.com/netover/tws-gateway/pkg/metrics"
	"github.com/netover/tws-gateway/pkg/telemetry"
)

var tracer = otel.Tracer("tws-gateway/poller")

// BackendSnapshot is the subset of pkg/backend.Client the poller pulls
// from every tick.
type BackendSnapshot interface {
	EngineInfo(ctx context.Context) (json.RawMessage, error)
	PlanJobCount(ctx context.Context) (json.RawMessage, error)
	PlanJobIssues(ctx context.Context) (json.RawMessage, error)
}

// StateRecorder is the subset of pkg/graph.Service the poller feeds.
type StateRecorder interface {
	RecordJobState(jobID string, state graph.JobState, at time.Time, source string)
}

// Config bounds the poller's cadence and failure handling.
type Config struct {
	Interval         time.Duration
	IterationTimeout time.Duration
	MaxBackoff       time.Duration
	FailureThreshold int // consecutive failures before backing off
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.IterationTimeout <= 0 {
		c.IterationTimeout = 10 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	return c
}

type jobCountResponse struct {
	Total int `json:"total"`
}

type jobIssuesResponse struct {
	Jobs []struct {
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"jobs"`
}

type engineInfoResponse struct {
	WorkstationsOffline int `json:"workstationsOffline"`
}

// Poller is a single-flight ticker loop over one backend client. Only one
// goroutine may ever be running a Poller's Run method at a time; the
// runMu/running guard enforces that so a misbehaving caller can't start it
// twice against the same client.
type Poller struct {
	backend  BackendSnapshot
	recorder StateRecorder
	cfg      Config
	metrics  *metrics.Registry
	logger   *slog.Logger

	runMu   sync.Mutex
	running bool

	consecutiveFailures int
	iteration           int
}

// New creates a Poller.
func New(backend BackendSnapshot, recorder StateRecorder, cfg Config, reg *metrics.Registry, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		backend: backend, recorder: recorder, cfg: cfg.withDefaults(),
		metrics: reg, logger: logger,
	}
}

// Run blocks, polling until ctx is cancelled. It is cancel-safe at the
// points the spec names: sleep, awaiting the backend, and awaiting the
// graph service's record call — an iteration aborted mid-fetch leaves no
// partial gauge mutation, since gauges are only set after the full
// snapshot decodes successfully.
func (p *Poller) Run(ctx context.Context) error {
	p.runMu.Lock()
	if p.running {
		p.runMu.Unlock()
		return apperrors.New(apperrors.CodeInternal, "poller already running for this backend client", nil)
	}
	p.running = true
	p.runMu.Unlock()
	defer func() {
		p.runMu.Lock()
		p.running = false
		p.runMu.Unlock()
	}()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.tick(ctx)
			p.applyBackoff(ticker)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.iteration++
	ctx, span := tracer.Start(ctx, "poller.tick")
	defer span.End()
	span.SetAttributes(telemetry.PollerAttributes(p.iteration, p.consecutiveFailures)...)

	iterCtx, cancel := context.WithTimeout(ctx, p.cfg.IterationTimeout)
	defer cancel()

	if err := p.pollOnce(iterCtx); err != nil {
		p.consecutiveFailures++
		p.metrics.IncrCounter("tws_poll_errors_total", nil, 1)
		p.logger.Warn("poller: iteration failed", "error", err, "consecutive_failures", p.consecutiveFailures)
		telemetry.RecordError(span, err)
		return
	}
	p.consecutiveFailures = 0
}

// applyBackoff widens the ticker's period additively, capped at
// MaxBackoff, once FailureThreshold consecutive iterations have failed; it
// resets to the configured cadence as soon as an iteration succeeds.
func (p *Poller) applyBackoff(ticker *time.Ticker) {
	if p.consecutiveFailures == 0 {
		ticker.Reset(p.cfg.Interval)
		return
	}
	if p.consecutiveFailures < p.cfg.FailureThreshold {
		return
	}
	extra := time.Duration(p.consecutiveFailures-p.cfg.FailureThreshold+1) * p.cfg.Interval
	next := p.cfg.Interval + extra
	if next > p.cfg.MaxBackoff {
		next = p.cfg.MaxBackoff
	}
	ticker.Reset(next)
}

func (p *Poller) pollOnce(ctx context.Context) error {
	infoRaw, err := p.backend.EngineInfo(ctx)
	if err != nil {
		return err
	}
	countRaw, err := p.backend.PlanJobCount(ctx)
	if err != nil {
		return err
	}
	issuesRaw, err := p.backend.PlanJobIssues(ctx)
	if err != nil {
		return err
	}

	var info engineInfoResponse
	if err := json.Unmarshal(infoRaw, &info); err != nil {
		return apperrors.New(apperrors.CodeBackendHTTP, "poller: malformed engine info snapshot", err)
	}
	var count jobCountResponse
	if err := json.Unmarshal(countRaw, &count); err != nil {
		return apperrors.New(apperrors.CodeBackendHTTP, "poller: malformed job count snapshot", err)
	}
	var issues jobIssuesResponse
	if err := json.Unmarshal(issuesRaw, &issues); err != nil {
		return apperrors.New(apperrors.CodeBackendHTTP, "poller: malformed job issues snapshot", err)
	}

	now := time.Now()
	failed := 0
	for _, j := range issues.Jobs {
		p.recorder.RecordJobState(j.Name, graph.JobState(j.State), now, "poller")
		if isFailingState(j.State) {
			failed++
		}
	}

	p.metrics.SetGauge("tws_jobs_total", nil, float64(count.Total))
	p.metrics.SetGauge("tws_jobs_failed", nil, float64(failed))
	p.metrics.SetGauge("tws_workstations_offline", nil, float64(info.WorkstationsOffline))
	p.metrics.SetGauge("tws_last_poll_timestamp", nil, float64(now.Unix()))

	return nil
}

func isFailingState(state string) bool {
	switch state {
	case "ABEND", "FAIL", "ERROR":
		return true
	default:
		return false
	}
}
