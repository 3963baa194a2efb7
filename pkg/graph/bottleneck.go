package graph

import "sort"

// SharedBottleneck is one entry of FindSharedBottlenecks: a node that is an
// ancestor of at least two jobs in the queried set.
type SharedBottleneck struct {
	Job   string
	Count int
}

// FindSharedBottlenecks returns, for every node that is an ancestor of two
// or more jobs in jobList, the count of jobs it feeds into, sorted by
// count descending.
func FindSharedBottlenecks(g *Graph, jobList []string) []SharedBottleneck {
	counts := make(map[int]int)
	for _, job := range jobList {
		id, ok := g.Lookup(job)
		if !ok {
			continue
		}
		for ancestor := range g.Ancestors(id) {
			counts[ancestor]++
		}
	}

	out := make([]SharedBottleneck, 0)
	for node, count := range counts {
		if count >= 2 {
			out = append(out, SharedBottleneck{Job: g.Node(node), Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Job < out[j].Job
	})
	return out
}

// ConflictRisk ranks how likely two jobs are to contend for the same
// upstream resources.
type ConflictRisk string

const (
	ConflictNone   ConflictRisk = "none"
	ConflictLow    ConflictRisk = "low"
	ConflictMedium ConflictRisk = "medium"
	ConflictHigh   ConflictRisk = "high"
)

func riskForCount(n int) ConflictRisk {
	switch {
	case n == 0:
		return ConflictNone
	case n <= 2:
		return ConflictLow
	case n <= 5:
		return ConflictMedium
	default:
		return ConflictHigh
	}
}

func (r ConflictRisk) bumpedUp() ConflictRisk {
	switch r {
	case ConflictNone:
		return ConflictLow
	case ConflictLow:
		return ConflictMedium
	case ConflictMedium:
		return ConflictHigh
	default:
		return ConflictHigh
	}
}

// ResourceConflict is the check_resource_conflict result.
type ResourceConflict struct {
	CommonPredecessors []string
	CommonSuccessors   []string
	ConflictRisk       ConflictRisk
}

// CheckResourceConflict reports the predecessors and successors job a and b
// share, and a risk bucket derived from the predecessor overlap. resources,
// if non-nil, maps a job id to the resource names it consumes; any overlap
// there bumps the risk bucket up one step.
func CheckResourceConflict(g *Graph, a, b string, resources map[string][]string) (ResourceConflict, bool) {
	idA, okA := g.Lookup(a)
	idB, okB := g.Lookup(b)
	if !okA || !okB {
		return ResourceConflict{}, false
	}

	predsA, predsB := g.Ancestors(idA), g.Ancestors(idB)
	succsA, succsB := g.Descendants(idA), g.Descendants(idB)

	commonPreds := intersectNodeNames(g, predsA, predsB)
	commonSuccs := intersectNodeNames(g, succsA, succsB)

	risk := riskForCount(len(commonPreds))
	if resources != nil && sharesResource(resources[a], resources[b]) {
		risk = risk.bumpedUp()
	}

	return ResourceConflict{
		CommonPredecessors: commonPreds,
		CommonSuccessors:   commonSuccs,
		ConflictRisk:       risk,
	}, true
}

func intersectNodeNames(g *Graph, a, b map[int]struct{}) []string {
	out := make([]string, 0)
	for n := range a {
		if _, ok := b[n]; ok {
			out = append(out, g.Node(n))
		}
	}
	sort.Strings(out)
	return out
}

func sharesResource(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, r := range a {
		set[r] = struct{}{}
	}
	for _, r := range b {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
