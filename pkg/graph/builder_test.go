package graph

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeExpander is a static predecessor/successor map for tests, avoiding
// any dependency on pkg/backend or an HTTP round trip.
type fakeExpander struct {
	preds map[string][]string
	succs map[string][]string
	errOn map[string]error
}

func (f *fakeExpander) Predecessors(ctx context.Context, jobID string) ([]string, error) {
	if err, ok := f.errOn[jobID]; ok {
		return nil, err
	}
	return f.preds[jobID], nil
}

func (f *fakeExpander) Successors(ctx context.Context, jobID string) ([]string, error) {
	if err, ok := f.errOn[jobID]; ok {
		return nil, err
	}
	return f.succs[jobID], nil
}

// chain: A -> B -> C -> D
func chainExpander() *fakeExpander {
	return &fakeExpander{
		preds: map[string][]string{"B": {"A"}, "C": {"B"}, "D": {"C"}},
		succs: map[string][]string{"A": {"B"}, "B": {"C"}, "C": {"D"}},
	}
}

func TestBuildDependencyGraphFollowsChain(t *testing.T) {
	svc := NewService(chainExpander(), BuildConfig{MaxDepth: 5}, nil)
	g, err := svc.GetDependencyGraph(context.Background(), "B", 5, false)
	if err != nil {
		t.Fatalf("GetDependencyGraph: %v", err)
	}
	if g.NumNodes() != 4 {
		t.Errorf("nodes = %d, want 4", g.NumNodes())
	}
	if _, ok := g.Lookup("D"); !ok {
		t.Error("expected D reachable within depth 5")
	}
}

func TestBuildDependencyGraphRespectsDepth(t *testing.T) {
	svc := NewService(chainExpander(), BuildConfig{MaxDepth: 5}, nil)
	g, err := svc.GetDependencyGraph(context.Background(), "B", 1, false)
	if err != nil {
		t.Fatalf("GetDependencyGraph: %v", err)
	}
	if _, ok := g.Lookup("D"); ok {
		t.Error("D should not be reachable at depth 1 from B")
	}
	if _, ok := g.Lookup("A"); !ok {
		t.Error("A should be reachable at depth 1 from B")
	}
}

func TestBuildDependencyGraphCachesResult(t *testing.T) {
	exp := chainExpander()
	svc := NewService(exp, BuildConfig{MaxDepth: 5, TTL: time.Minute}, nil)
	g1, _ := svc.GetDependencyGraph(context.Background(), "B", 5, false)
	// Mutate the expander's view; a cached call should not see it.
	exp.succs["C"] = append(exp.succs["C"], "E")
	g2, _ := svc.GetDependencyGraph(context.Background(), "B", 5, false)
	if g1 != g2 {
		t.Error("expected cached graph instance to be reused")
	}
}

func TestBuildDependencyGraphForceRefreshRebuilds(t *testing.T) {
	exp := chainExpander()
	svc := NewService(exp, BuildConfig{MaxDepth: 5, TTL: time.Minute}, nil)
	g1, _ := svc.GetDependencyGraph(context.Background(), "B", 5, false)
	g2, _ := svc.GetDependencyGraph(context.Background(), "B", 5, true)
	if g1 == g2 {
		t.Error("expected force_refresh to rebuild the graph")
	}
}

func TestBuildDependencyGraphSkipsTransientErrorsExceptAtRoot(t *testing.T) {
	exp := chainExpander()
	exp.errOn = map[string]error{"C": errors.New("transient backend hiccup")}
	svc := NewService(exp, BuildConfig{MaxDepth: 5}, nil)

	g, err := svc.GetDependencyGraph(context.Background(), "A", 5, false)
	if err != nil {
		t.Fatalf("GetDependencyGraph should tolerate a non-root failure: %v", err)
	}
	if _, ok := g.Lookup("C"); !ok {
		t.Error("C should still be a node even though its own expansion failed")
	}
	if _, ok := g.Lookup("D"); ok {
		t.Error("D should not be reachable since C's expansion failed")
	}
}

func TestBuildDependencyGraphFailsWhenRootUnreachable(t *testing.T) {
	exp := &fakeExpander{errOn: map[string]error{"Z": errors.New("root unreachable")}}
	svc := NewService(exp, BuildConfig{MaxDepth: 5}, nil)

	_, err := svc.GetDependencyGraph(context.Background(), "Z", 5, false)
	if err == nil {
		t.Fatal("expected error when the root node itself is unreachable")
	}
}

func TestCacheStatsReportsValidAndExpired(t *testing.T) {
	svc := NewService(chainExpander(), BuildConfig{MaxDepth: 5, TTL: time.Minute}, nil)
	svc.GetDependencyGraph(context.Background(), "B", 5, false)

	stats := svc.CacheStats()
	if stats.Total != 1 || stats.Valid != 1 || stats.Expired != 0 {
		t.Errorf("stats = %+v", stats)
	}

	svc.ClearCache()
	stats = svc.CacheStats()
	if stats.Total != 0 {
		t.Errorf("expected empty cache after ClearCache, got %+v", stats)
	}
}
