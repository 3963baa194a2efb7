// Package backend implements a read-only JSON-over-HTTP client for the
// workload-automation engine's REST API. Grounded on the teacher's
// pkg/llm/ollama.go for the manual marshal/NewRequestWithContext/decode
// shape, generalized from a single chat endpoint into one method per
// documented backend path. The client never retries or caches on its own —
// callers compose it with pkg/resilience and pkg/cache.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/netover/tws-gateway/pkg/apperrors"
	"github.com/netover/tws-gateway/pkg/metrics"
	"github.com/netover/tws-gateway/pkg/telemetry"
)

var tracer = otel.Tracer("tws-gateway/backend")

// Config configures a Client.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to {base}/twsd/api/v2/... with HTTP Basic auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	metrics  *metrics.Registry
}

// New creates a backend Client.
func New(cfg Config, reg *metrics.Registry) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		metrics:  reg,
	}
}

// ListParams is the common query-parameter shape shared by the model/plan
// listing endpoints: a free-text query, an optional folder filter, and a
// page size bounded to [1,1000] (default 50 when unset).
type ListParams struct {
	Query  string
	Folder string
	Status string
	Limit  int
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.Query != "" {
		v.Set("query", p.Query)
	}
	if p.Folder != "" {
		v.Set("folder", p.Folder)
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	v.Set("limit", strconv.Itoa(limit))
	return v
}

// get performs GET {base}/twsd/api/v2/{path}?{query}, decoding the JSON
// response body into out. Every call is recorded on the metrics registry
// under its normalized endpoint token regardless of outcome.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := normalizeEndpoint(path)
	start := time.Now()
	status := "error"

	ctx, span := tracer.Start(ctx, "backend.get")
	defer func() {
		span.SetAttributes(telemetry.BackendRequestAttributes(endpoint, status, float64(time.Since(start).Milliseconds()))...)
		span.End()
	}()

	reqURL := fmt.Sprintf("%s/twsd/api/v2/%s", c.baseURL, path)
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.record(endpoint, status, start)
		ae := apperrors.New(apperrors.CodeConfiguration, "failed to build backend request", err)
		telemetry.RecordError(span, ae)
		return ae
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		status = "unavailable"
		c.record(endpoint, status, start)
		ae := apperrors.New(apperrors.CodeBackendUnavailable, "backend request failed", err).
			WithContext("endpoint", endpoint).
			WithRecoverable(true)
		telemetry.RecordError(span, ae)
		return ae
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status = strconv.Itoa(resp.StatusCode)
		c.record(endpoint, status, start)
		ae := apperrors.New(apperrors.CodeBackendHTTP, "backend returned non-2xx status", nil).
			WithContext("endpoint", endpoint).
			WithContext("status", resp.StatusCode).
			WithRecoverable(resp.StatusCode >= 500)
		telemetry.RecordError(span, ae)
		return ae
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			status = "decode_error"
			c.record(endpoint, status, start)
			ae := apperrors.New(apperrors.CodeBackendHTTP, "failed to decode backend response", err).
				WithContext("endpoint", endpoint)
			telemetry.RecordError(span, ae)
			return ae
		}
	}

	status = "200"
	c.record(endpoint, status, start)
	return nil
}

func (c *Client) record(endpoint, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.IncrCounter("backend_request_total", metrics.Labels{"endpoint": endpoint, "status": status}, 1)
	c.metrics.Observe("backend_request_latency_seconds", metrics.Labels{"endpoint": endpoint}, time.Since(start).Seconds())
}

// pathLiterals is every fixed segment this client's REST paths are built
// from (see the Plan*/Model*/Engine* methods below). A segment not in this
// set is a resolved job/jobstream/workstation/resource id, not a literal
// route token.
var pathLiterals = map[string]bool{
	"engine": true, "info": true, "configuration": true,
	"model": true, "user": true, "group": true,
	"jobdefinition": true, "jobstream": true, "workstation": true,
	"plan": true, "job": true, "predecessors": true, "successors": true,
	"description": true, "count": true, "issues": true, "joblog": true,
	"resource": true, "folder": true, "objects-count": true,
	"consumed-jobs": true, "runs": true,
}

// normalizeEndpoint collapses path parameters to a stable, low-cardinality
// metrics/span label, e.g. "plan/job/12345/predecessors" ->
// "plan_job_{id}_predecessors": leading slash stripped, "/" -> "_", and any
// segment outside pathLiterals (a resolved id) replaced with "{id}".
func normalizeEndpoint(path string) string {
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if !pathLiterals[seg] {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "_")
}

// EngineInfo returns GET engine/info.
func (c *Client) EngineInfo(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "engine/info", nil, &out)
	return out, err
}

// EngineConfiguration returns GET engine/configuration?key=...
func (c *Client) EngineConfiguration(ctx context.Context, key string) (json.RawMessage, error) {
	v := url.Values{}
	if key != "" {
		v.Set("key", key)
	}
	var out json.RawMessage
	err := c.get(ctx, "engine/configuration", v, &out)
	return out, err
}

// ModelUser returns GET model/user.
func (c *Client) ModelUser(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "model/user", nil, &out)
	return out, err
}

// ModelGroup returns GET model/group.
func (c *Client) ModelGroup(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "model/group", nil, &out)
	return out, err
}

// ModelJobDefinitions returns GET model/jobdefinition?query=&folder=&limit=.
func (c *Client) ModelJobDefinitions(ctx context.Context, p ListParams) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "model/jobdefinition", p.values(), &out)
	return out, err
}

// ModelJobDefinition returns GET model/jobdefinition/{id}.
func (c *Client) ModelJobDefinition(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "model/jobdefinition/"+id, nil, &out)
	return out, err
}

// ModelJobStreams returns GET model/jobstream?query=&folder=&limit=.
func (c *Client) ModelJobStreams(ctx context.Context, p ListParams) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "model/jobstream", p.values(), &out)
	return out, err
}

// ModelJobStream returns GET model/jobstream/{id}.
func (c *Client) ModelJobStream(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "model/jobstream/"+id, nil, &out)
	return out, err
}

// ModelWorkstations returns GET model/workstation?query=&limit=.
func (c *Client) ModelWorkstations(ctx context.Context, p ListParams) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "model/workstation", p.values(), &out)
	return out, err
}

// ModelWorkstation returns GET model/workstation/{id}.
func (c *Client) ModelWorkstation(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "model/workstation/"+id, nil, &out)
	return out, err
}

// PlanJobs returns GET plan/job?query=&folder=&status=&limit=.
func (c *Client) PlanJobs(ctx context.Context, p ListParams) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/job", p.values(), &out)
	return out, err
}

// PlanJob returns GET plan/job/{id}.
func (c *Client) PlanJob(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/job/"+id, nil, &out)
	return out, err
}

// depthValues builds the depth query param, omitting it entirely when depth
// is 0 (letting the server's own default apply rather than substituting 1).
func depthValues(depth int) url.Values {
	v := url.Values{}
	if depth > 0 {
		v.Set("depth", strconv.Itoa(depth))
	}
	return v
}

// PlanJobPredecessors returns GET plan/job/{id}/predecessors?depth=.
func (c *Client) PlanJobPredecessors(ctx context.Context, id string, depth int) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/job/"+id+"/predecessors", depthValues(depth), &out)
	return out, err
}

// PlanJobSuccessors returns GET plan/job/{id}/successors?depth=.
func (c *Client) PlanJobSuccessors(ctx context.Context, id string, depth int) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/job/"+id+"/successors", depthValues(depth), &out)
	return out, err
}

// PlanJobModel returns GET plan/job/{id}/model.
func (c *Client) PlanJobModel(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/job/"+id+"/model", nil, &out)
	return out, err
}

// PlanJobModelDescription returns GET plan/job/{id}/model/description. The
// response is treated as opaque JSON, same as every other endpoint here —
// a non-JSON body surfaces as a decode error rather than silently
// succeeding with a mistyped result.
func (c *Client) PlanJobModelDescription(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/job/"+id+"/model/description", nil, &out)
	return out, err
}

// PlanJobCount returns GET plan/job/count.
func (c *Client) PlanJobCount(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/job/count", nil, &out)
	return out, err
}

// PlanJobIssues returns GET plan/job/issues.
func (c *Client) PlanJobIssues(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/job/issues", nil, &out)
	return out, err
}

// PlanJobLog returns GET plan/job/joblog.
func (c *Client) PlanJobLog(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/job/joblog", nil, &out)
	return out, err
}

// PlanJobStreams returns GET plan/jobstream?query=&folder=&limit=.
func (c *Client) PlanJobStreams(ctx context.Context, p ListParams) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/jobstream", p.values(), &out)
	return out, err
}

// PlanJobStream returns GET plan/jobstream/{id}.
func (c *Client) PlanJobStream(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/jobstream/"+id, nil, &out)
	return out, err
}

// PlanJobStreamPredecessors returns GET plan/jobstream/{id}/predecessors?depth=.
func (c *Client) PlanJobStreamPredecessors(ctx context.Context, id string, depth int) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/jobstream/"+id+"/predecessors", depthValues(depth), &out)
	return out, err
}

// PlanJobStreamSuccessors returns GET plan/jobstream/{id}/successors?depth=.
func (c *Client) PlanJobStreamSuccessors(ctx context.Context, id string, depth int) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/jobstream/"+id+"/successors", depthValues(depth), &out)
	return out, err
}

// PlanJobStreamModelDescription returns GET plan/jobstream/{id}/model/description.
func (c *Client) PlanJobStreamModelDescription(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/jobstream/"+id+"/model/description", nil, &out)
	return out, err
}

// PlanJobStreamCount returns GET plan/jobstream/count.
func (c *Client) PlanJobStreamCount(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/jobstream/count", nil, &out)
	return out, err
}

// PlanResources returns GET plan/resource?query=&limit=.
func (c *Client) PlanResources(ctx context.Context, p ListParams) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/resource", p.values(), &out)
	return out, err
}

// PlanResource returns GET plan/resource/{id}.
func (c *Client) PlanResource(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.get(ctx, "plan/resource/"+id, nil, &out)
	return out, err
}

// PlanFolderObjectsCount returns GET plan/folder/objects-count?folder=.
func (c *Client) PlanFolderObjectsCount(ctx context.Context, folder string) (json.RawMessage, error) {
	v := url.Values{}
	if folder != "" {
		v.Set("folder", folder)
	}
	var out json.RawMessage
	err := c.get(ctx, "plan/folder/objects-count", v, &out)
	return out, err
}

// PlanConsumedJobsRuns returns GET plan/consumed-jobs/runs?jobName=&limit=.
func (c *Client) PlanConsumedJobsRuns(ctx context.Context, jobName string, limit int) (json.RawMessage, error) {
	v := url.Values{}
	if jobName != "" {
		v.Set("jobName", jobName)
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	v.Set("limit", strconv.Itoa(limit))
	var out json.RawMessage
	err := c.get(ctx, "plan/consumed-jobs/runs", v, &out)
	return out, err
}
