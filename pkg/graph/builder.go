package graph

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/netover/tws-gateway/pkg/telemetry"
)

var graphTracer = otel.Tracer("tws-gateway/graph")

// BuildConfig bounds a single graph construction.
type BuildConfig struct {
	MaxDepth int
	TTL      time.Duration
}

func (c BuildConfig) withDefaults() BuildConfig {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 5
	}
	if c.TTL <= 0 {
		c.TTL = 300 * time.Second
	}
	return c
}

// Service owns the graph cache and backend expander; GetDependencyGraph is
// its one construction entry point, the analyses in analysis.go and the
// advanced queries in temporal.go/negation.go/bottleneck.go/verify.go all
// operate on its *Graph return value.
type Service struct {
	expander Expander
	cache    *graphCache
	cfg      BuildConfig
	logger   *slog.Logger

	temporal *temporalStore
	verified *verificationStore
}

// NewService creates a graph Service. logger defaults to slog.Default() if nil.
func NewService(expander Expander, cfg BuildConfig, logger *slog.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		expander: expander,
		cache:    newGraphCache(cfg.TTL),
		cfg:      cfg,
		logger:   logger,
		temporal: newTemporalStore(256),
		verified: newVerificationStore(),
	}
}

// GetDependencyGraph builds (or returns cached) dependency graph rooted at
// jobID, expanded up to depth levels of predecessors/successors.
func (s *Service) GetDependencyGraph(ctx context.Context, jobID string, depth int, forceRefresh bool) (*Graph, error) {
	ctx, span := graphTracer.Start(ctx, "graph.get_dependency_graph")
	defer span.End()

	if depth <= 0 || depth > s.cfg.MaxDepth {
		depth = s.cfg.MaxDepth
	}
	key := cacheKey(jobID, depth)
	now := time.Now()

	if !forceRefresh {
		if g, ok := s.cache.get(key, now); ok {
			span.SetAttributes(telemetry.GraphBuildAttributes(jobID, depth, g.NumNodes(), len(g.Edges()), true)...)
			return g, nil
		}
	}

	g, err := s.build(ctx, jobID, depth)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.cache.put(key, g, now)
	span.SetAttributes(telemetry.GraphBuildAttributes(jobID, depth, g.NumNodes(), len(g.Edges()), false)...)
	return g, nil
}

// build runs the bounded bidirectional BFS described in the graph service
// spec: from jobID, at each visited node with remaining depth > 0, fetch
// its predecessors and successors and add DEPENDS_ON edges both ways.
// Transient backend errors during expansion are logged and skipped; the
// call only fails if the root node itself cannot be reached.
func (s *Service) build(ctx context.Context, jobID string, depth int) (*Graph, error) {
	g := newGraph()
	root := g.nodeID(jobID)

	type frontierNode struct {
		id        int
		remaining int
	}
	visited := map[int]bool{root: true}
	queue := []frontierNode{{id: root, remaining: depth}}

	rootReached := false
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.remaining <= 0 {
			continue
		}

		name := g.Node(cur.id)
		preds, predErr := s.expander.Predecessors(ctx, name)
		succs, succErr := s.expander.Successors(ctx, name)

		if cur.id == root {
			rootReached = predErr == nil || succErr == nil
			if !rootReached {
				return nil, predErr
			}
		} else {
			if predErr != nil {
				s.logger.Warn("graph: predecessor fetch failed, skipping", "job", name, "error", predErr)
			}
			if succErr != nil {
				s.logger.Warn("graph: successor fetch failed, skipping", "job", name, "error", succErr)
			}
		}

		// Predecessor/successor edges come straight off the backend's
		// current-plan dependency data, so they are direct observations,
		// not derived facts — they start at EXPLICIT confidence.
		now := time.Now()
		for _, p := range preds {
			pid := g.nodeID(p)
			g.addEdge(pid, cur.id, RelationDependsOn, ConfidenceExplicit, []string{"backend:predecessor"}, now)
			if !visited[pid] {
				visited[pid] = true
				queue = append(queue, frontierNode{id: pid, remaining: cur.remaining - 1})
			}
		}
		for _, sc := range succs {
			sid := g.nodeID(sc)
			g.addEdge(cur.id, sid, RelationDependsOn, ConfidenceExplicit, []string{"backend:successor"}, now)
			if !visited[sid] {
				visited[sid] = true
				queue = append(queue, frontierNode{id: sid, remaining: cur.remaining - 1})
			}
		}
	}

	return g, nil
}

// ClearCache drops every cached graph.
func (s *Service) ClearCache() { s.cache.clear() }

// CacheStats reports get_cache_stats().
func (s *Service) CacheStats() Stats { return s.cache.stats(time.Now()) }
