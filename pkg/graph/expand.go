package graph

import (
	"context"
	"encoding/json"
)

// Expander fetches the immediate predecessors/successors of a job from the
// backend. Implemented by backendExpander, wrapping pkg/backend.Client;
// kept as an interface so builder tests can supply a fake without an HTTP
// round trip.
type Expander interface {
	Predecessors(ctx context.Context, jobID string) ([]string, error)
	Successors(ctx context.Context, jobID string) ([]string, error)
}

// backendClient is the subset of pkg/backend.Client the graph builder needs.
type backendClient interface {
	PlanJobPredecessors(ctx context.Context, id string, depth int) (json.RawMessage, error)
	PlanJobSuccessors(ctx context.Context, id string, depth int) (json.RawMessage, error)
}

type backendExpander struct {
	client backendClient
}

// NewBackendExpander adapts a pkg/backend.Client to the Expander interface.
func NewBackendExpander(client backendClient) Expander {
	return &backendExpander{client: client}
}

func (b *backendExpander) Predecessors(ctx context.Context, jobID string) ([]string, error) {
	raw, err := b.client.PlanJobPredecessors(ctx, jobID, 1)
	if err != nil {
		return nil, err
	}
	return decodeJobIDs(raw)
}

func (b *backendExpander) Successors(ctx context.Context, jobID string) ([]string, error) {
	raw, err := b.client.PlanJobSuccessors(ctx, jobID, 1)
	if err != nil {
		return nil, err
	}
	return decodeJobIDs(raw)
}

// jobRef covers the handful of shapes the TWS REST API uses to name a job
// inside a list response: a bare string, or an object carrying one of
// several common key names.
type jobRef struct {
	Name  string `json:"name"`
	JobID string `json:"jobId"`
	ID    string `json:"id"`
}

func (j jobRef) resolve() string {
	switch {
	case j.Name != "":
		return j.Name
	case j.JobID != "":
		return j.JobID
	default:
		return j.ID
	}
}

// decodeJobIDs parses a predecessor/successor list response into plain job
// id strings, tolerating both ["JOB1","JOB2"] and [{"name":"JOB1"}, ...].
func decodeJobIDs(raw json.RawMessage) ([]string, error) {
	var asStrings []string
	if err := json.Unmarshal(raw, &asStrings); err == nil {
		return asStrings, nil
	}

	var asRefs []jobRef
	if err := json.Unmarshal(raw, &asRefs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(asRefs))
	for _, r := range asRefs {
		if id := r.resolve(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
