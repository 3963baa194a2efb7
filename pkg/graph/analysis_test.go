package graph

import (
	"testing"
	"time"
)

// buildTestGraph constructs A->B->C->D, A->E, bypassing the BFS builder so
// analysis tests don't depend on an Expander.
func buildTestGraph() *Graph {
	g := newGraph()
	a, b, c, d, e := g.nodeID("A"), g.nodeID("B"), g.nodeID("C"), g.nodeID("D"), g.nodeID("E")
	now := time.Now()
	g.addEdge(a, b, RelationDependsOn, ConfidenceExplicit, nil, now)
	g.addEdge(b, c, RelationDependsOn, ConfidenceExplicit, nil, now)
	g.addEdge(c, d, RelationDependsOn, ConfidenceExplicit, nil, now)
	g.addEdge(a, e, RelationDependsOn, ConfidenceExplicit, nil, now)
	return g
}

func TestFindCriticalPathLongestChain(t *testing.T) {
	g := buildTestGraph()
	cp := FindCriticalPath(g)
	if !cp.IsDAG {
		t.Fatal("expected a DAG")
	}
	if len(cp.Jobs) != 4 {
		t.Errorf("path = %v, want length 4 (A,B,C,D)", cp.Jobs)
	}
}

func TestFindCriticalPathDetectsCycle(t *testing.T) {
	g := newGraph()
	a, b := g.nodeID("A"), g.nodeID("B")
	now := time.Now()
	g.addEdge(a, b, RelationDependsOn, ConfidenceExplicit, nil, now)
	g.addEdge(b, a, RelationDependsOn, ConfidenceExplicit, nil, now)

	cp := FindCriticalPath(g)
	if cp.IsDAG {
		t.Error("expected cycle to be detected as not a DAG")
	}
}

func TestGetImpactAnalysisSeverityBuckets(t *testing.T) {
	g := buildTestGraph()
	impact, ok := GetImpactAnalysis(g, "A")
	if !ok {
		t.Fatal("expected A to be found")
	}
	if len(impact.Descendants) != 4 {
		t.Errorf("descendants = %v", impact.Descendants)
	}
	if impact.Severity != SeverityMedium {
		t.Errorf("severity = %s, want medium (4 descendants)", impact.Severity)
	}
}

func TestGetImpactAnalysisUnknownJob(t *testing.T) {
	g := buildTestGraph()
	if _, ok := GetImpactAnalysis(g, "ZZZ"); ok {
		t.Error("expected unknown job to return ok=false")
	}
}

func TestGetCriticalJobsReturnsTopN(t *testing.T) {
	g := buildTestGraph()
	top := GetCriticalJobs(g, 2)
	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}
	found := map[string]bool{}
	for _, cj := range top {
		found[cj.Job] = true
	}
	if !found["B"] && !found["C"] {
		t.Errorf("expected B or C among the top critical jobs, got %+v", top)
	}
}

func TestGetDependencyChainAncestorsAndDescendants(t *testing.T) {
	g := buildTestGraph()
	desc, ok := GetDependencyChain(g, "A", DirectionDescendants)
	if !ok || len(desc) != 4 {
		t.Errorf("descendants of A = %v", desc)
	}
	anc, ok := GetDependencyChain(g, "D", DirectionAncestors)
	if !ok || len(anc) != 3 {
		t.Errorf("ancestors of D = %v", anc)
	}
}
