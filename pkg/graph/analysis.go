package graph

import "sort"

// Severity buckets for impact analysis.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

func severityFor(count int) Severity {
	switch {
	case count > 20:
		return SeverityCritical
	case count > 10:
		return SeverityHigh
	case count > 3:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// CriticalPath is the result of FindCriticalPath: the longest directed path
// through the DAG, expressed as job ids in traversal order.
type CriticalPath struct {
	Jobs    []string
	IsDAG   bool
}

// FindCriticalPath returns the longest directed path in g. If g is not a
// DAG (i.e. it contains a cycle) it returns an empty path with IsDAG=false;
// callers are expected to emit a warning metric in that case.
func FindCriticalPath(g *Graph) CriticalPath {
	order, ok := topologicalOrder(g)
	if !ok {
		return CriticalPath{IsDAG: false}
	}

	n := g.NumNodes()
	longest := make([]int, n)
	prev := make([]int, n)
	for i := range prev {
		prev[i] = -1
	}

	best, bestEnd := 0, 0
	if n > 0 {
		bestEnd = order[0]
	}
	for _, u := range order {
		for _, ei := range g.out[u] {
			v := g.edges[ei].Target
			if longest[u]+1 > longest[v] {
				longest[v] = longest[u] + 1
				prev[v] = u
				if longest[v] > best {
					best = longest[v]
					bestEnd = v
				}
			}
		}
	}

	path := []int{}
	for at := bestEnd; at != -1; at = prev[at] {
		path = append([]int{at}, path...)
	}

	jobs := make([]string, len(path))
	for i, id := range path {
		jobs[i] = g.Node(id)
	}
	return CriticalPath{Jobs: jobs, IsDAG: true}
}

// topologicalOrder returns a Kahn's-algorithm ordering, or ok=false if g
// contains a cycle.
func topologicalOrder(g *Graph) ([]int, bool) {
	n := g.NumNodes()
	indeg := make([]int, n)
	for _, e := range g.edges {
		indeg[e.Target]++
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, n)
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		for _, ei := range g.out[u] {
			v := g.edges[ei].Target
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	return order, len(order) == n
}

// ImpactAnalysis is the get_impact_analysis result.
type ImpactAnalysis struct {
	Job         string
	Descendants []string
	Severity    Severity
}

// GetImpactAnalysis reports every job that depends, transitively, on job.
func GetImpactAnalysis(g *Graph, job string) (ImpactAnalysis, bool) {
	id, ok := g.Lookup(job)
	if !ok {
		return ImpactAnalysis{}, false
	}
	descSet := g.Descendants(id)
	descendants := make([]string, 0, len(descSet))
	for d := range descSet {
		descendants = append(descendants, g.Node(d))
	}
	sort.Strings(descendants)
	return ImpactAnalysis{Job: job, Descendants: descendants, Severity: severityFor(len(descendants))}, true
}

// CriticalJob is one entry of GetCriticalJobs.
type CriticalJob struct {
	Job         string
	Centrality  float64
	Severity    Severity
}

// GetCriticalJobs ranks jobs by betweenness centrality (fraction of
// all-pairs shortest paths passing through each node) and returns the
// top n, each tagged with its impact-analysis severity bucket.
func GetCriticalJobs(g *Graph, topN int) []CriticalJob {
	n := g.NumNodes()
	centrality := make([]float64, n)

	for s := 0; s < n; s++ {
		dist, pathCount, order := bfsShortestPaths(g, s)
		dependents := make([]float64, n)
		for i := len(order) - 1; i >= 0; i-- {
			w := order[i]
			for _, ei := range g.in[w] {
				v := g.edges[ei].Source
				if dist[v]+1 == dist[w] {
					share := (pathCount[v] / pathCount[w]) * (1 + dependents[w])
					dependents[v] += share
				}
			}
			if w != s {
				centrality[w] += dependents[w]
			}
		}
	}

	type scored struct {
		id    int
		score float64
	}
	scoredNodes := make([]scored, n)
	for i := range scoredNodes {
		scoredNodes[i] = scored{id: i, score: centrality[i]}
	}
	sort.Slice(scoredNodes, func(i, j int) bool {
		if scoredNodes[i].score != scoredNodes[j].score {
			return scoredNodes[i].score > scoredNodes[j].score
		}
		return g.Node(scoredNodes[i].id) < g.Node(scoredNodes[j].id)
	})

	if topN <= 0 || topN > len(scoredNodes) {
		topN = len(scoredNodes)
	}

	out := make([]CriticalJob, 0, topN)
	for _, sc := range scoredNodes[:topN] {
		impact, _ := GetImpactAnalysis(g, g.Node(sc.id))
		out = append(out, CriticalJob{Job: g.Node(sc.id), Centrality: sc.score, Severity: impact.Severity})
	}
	return out
}

// bfsShortestPaths runs an unweighted BFS from s returning, for every
// node: shortest distance, number of shortest paths, and nodes in
// non-decreasing distance order (Brandes' algorithm bookkeeping).
func bfsShortestPaths(g *Graph, s int) (dist []int, pathCount []float64, order []int) {
	n := g.NumNodes()
	dist = make([]int, n)
	pathCount = make([]float64, n)
	for i := range dist {
		dist[i] = -1
	}
	dist[s] = 0
	pathCount[s] = 1

	queue := []int{s}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		order = append(order, v)
		for _, ei := range g.out[v] {
			w := g.edges[ei].Target
			if dist[w] == -1 {
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
			if dist[w] == dist[v]+1 {
				pathCount[w] += pathCount[v]
			}
		}
	}

	for i, d := range dist {
		if d == -1 {
			dist[i] = 1 << 30 // unreachable, never matches dist[v]+1 == dist[w]
		}
	}
	return dist, pathCount, order
}

// Direction selects which side of the dependency edge to follow.
type Direction string

const (
	DirectionAncestors   Direction = "ancestors"
	DirectionDescendants Direction = "descendants"
)

// GetDependencyChain returns the ancestors or descendants of job.
func GetDependencyChain(g *Graph, job string, dir Direction) ([]string, bool) {
	id, ok := g.Lookup(job)
	if !ok {
		return nil, false
	}
	var set map[int]struct{}
	if dir == DirectionAncestors {
		set = g.Ancestors(id)
	} else {
		set = g.Descendants(id)
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, g.Node(n))
	}
	sort.Strings(out)
	return out, true
}
