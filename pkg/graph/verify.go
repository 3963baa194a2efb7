package graph

import "sync"

// VerificationStatus classifies how confident the graph service is that an
// edge between two jobs actually exists — this is the query that prevents
// an LLM from inventing a dependency that was never observed.
type VerificationStatus string

const (
	VerificationExplicit     VerificationStatus = "EXPLICIT"
	VerificationInferred     VerificationStatus = "INFERRED"
	VerificationCoOccurrence VerificationStatus = "CO_OCCURRENCE"
	VerificationUnknown      VerificationStatus = "UNKNOWN"
)

type registeredEdge struct {
	evidence map[string]struct{}
}

// verificationStore holds edges explicitly registered by a caller as
// confirmed, independent of any single built graph (built graphs expire and
// are rebuilt; confirmed facts about job relationships should not).
type verificationStore struct {
	mu    sync.RWMutex
	edges map[[2]string]*registeredEdge
}

func newVerificationStore() *verificationStore {
	return &verificationStore{edges: make(map[[2]string]*registeredEdge)}
}

// RegisterVerifiedDependency upgrades src->tgt to EXPLICIT confidence and
// unions the supplied evidence into whatever is already recorded.
func (v *verificationStore) RegisterVerifiedDependency(src, tgt string, evidence []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := [2]string{src, tgt}
	e, ok := v.edges[key]
	if !ok {
		e = &registeredEdge{evidence: make(map[string]struct{})}
		v.edges[key] = e
	}
	for _, ev := range evidence {
		e.evidence[ev] = struct{}{}
	}
}

func (v *verificationStore) explicit(src, tgt string) ([]string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.edges[[2]string{src, tgt}]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(e.evidence))
	for ev := range e.evidence {
		out = append(out, ev)
	}
	return out, true
}

// VerificationResult is the verify_dependency response.
type VerificationResult struct {
	Status     VerificationStatus
	Evidence   []string
	Derivation []string // job ids on the transitive path, INFERRED only
}

// RegisterVerifiedDependency exposes the Service-level entry point.
func (s *Service) RegisterVerifiedDependency(src, tgt string, evidence []string) {
	s.verified.RegisterVerifiedDependency(src, tgt, evidence)
}

// VerifyDependency checks src->tgt against the explicit registration store
// first, then against g's transitive closure over EXPLICIT graph edges,
// then falls back to mere co-occurrence in g's node set.
func (s *Service) VerifyDependency(g *Graph, src, tgt string) VerificationResult {
	if evidence, ok := s.verified.explicit(src, tgt); ok {
		return VerificationResult{Status: VerificationExplicit, Evidence: evidence}
	}

	srcID, okSrc := g.Lookup(src)
	tgtID, okTgt := g.Lookup(tgt)
	if !okSrc || !okTgt {
		return VerificationResult{Status: VerificationUnknown}
	}

	if path, ok := explicitPath(g, srcID, tgtID); ok {
		jobs := make([]string, len(path))
		for i, id := range path {
			jobs[i] = g.Node(id)
		}
		return VerificationResult{Status: VerificationInferred, Derivation: jobs}
	}

	return VerificationResult{Status: VerificationCoOccurrence}
}

// explicitPath runs BFS from src to tgt following only EXPLICIT edges,
// reconstructing the path if one exists.
func explicitPath(g *Graph, src, tgt int) ([]int, bool) {
	if src == tgt {
		return []int{src}, true
	}

	prev := make(map[int]int)
	visited := map[int]bool{src: true}
	queue := []int{src}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, ei := range g.out[u] {
			e := g.edges[ei]
			if e.Confidence != ConfidenceExplicit {
				continue
			}
			v := e.Target
			if visited[v] {
				continue
			}
			visited[v] = true
			prev[v] = u
			if v == tgt {
				path := []int{v}
				for at := u; ; at = prev[at] {
					path = append([]int{at}, path...)
					if at == src {
						break
					}
				}
				return path, true
			}
			queue = append(queue, v)
		}
	}
	return nil, false
}
