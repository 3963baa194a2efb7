package graph

import "sort"

// FindSafeJobs returns nodes(g) - ({failingJob} u descendants(g, failingJob)):
// every job that is neither the failing one nor downstream of it.
func FindSafeJobs(g *Graph, failingJob string) ([]string, bool) {
	id, ok := g.Lookup(failingJob)
	if !ok {
		return nil, false
	}
	excluded := g.Descendants(id)
	excluded[id] = struct{}{}

	safe := make([]string, 0, g.NumNodes()-len(excluded))
	for i := 0; i < g.NumNodes(); i++ {
		if _, isExcluded := excluded[i]; !isExcluded {
			safe = append(safe, g.Node(i))
		}
	}
	sort.Strings(safe)
	return safe, true
}

// FindIndependentJobs returns nodes with no path to or from resource in g.
func FindIndependentJobs(g *Graph, resource string) ([]string, bool) {
	id, ok := g.Lookup(resource)
	if !ok {
		return nil, false
	}
	connected := g.Descendants(id)
	for n := range g.Ancestors(id) {
		connected[n] = struct{}{}
	}
	connected[id] = struct{}{}

	independent := make([]string, 0, g.NumNodes()-len(connected))
	for i := 0; i < g.NumNodes(); i++ {
		if _, isConnected := connected[i]; !isConnected {
			independent = append(independent, g.Node(i))
		}
	}
	sort.Strings(independent)
	return independent, true
}
