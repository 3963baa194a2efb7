package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/netover/tws-gateway/pkg/apperrors"
	"github.com/netover/tws-gateway/pkg/metrics"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := New(Config{BaseURL: srv.URL, Username: "u", Password: "p"}, metrics.NewRegistry())
	return c, srv
}

func TestPlanJobReturnsBodyVerbatim(t *testing.T) {
	c, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/twsd/api/v2/plan/job/JOB1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "u" || pass != "p" {
			t.Error("expected basic auth credentials")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"JOB1","status":"RUNNING"}`))
	})
	defer srv.Close()

	raw, err := c.PlanJob(context.Background(), "JOB1")
	if err != nil {
		t.Fatalf("PlanJob: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["status"] != "RUNNING" {
		t.Errorf("status = %v", out["status"])
	}
}

func TestNonJSONHandlerErrors(t *testing.T) {
	c, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})
	defer srv.Close()

	if _, err := c.PlanJob(context.Background(), "JOB1"); err == nil {
		t.Fatal("expected a backend HTTP error on 500")
	}
}

func TestListParamsLimitDefaultAndClamp(t *testing.T) {
	var gotLimit string
	c, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`[]`))
	})
	defer srv.Close()

	_, _ = c.ModelJobDefinitions(context.Background(), ListParams{})
	if gotLimit != "50" {
		t.Errorf("default limit = %s, want 50", gotLimit)
	}

	_, _ = c.ModelJobDefinitions(context.Background(), ListParams{Limit: 5000})
	if gotLimit != "1000" {
		t.Errorf("clamped limit = %s, want 1000", gotLimit)
	}
}

func TestDepthOmittedWhenZero(t *testing.T) {
	var sawDepth bool
	c, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, sawDepth = r.URL.Query()["depth"]
		w.Write([]byte(`[]`))
	})
	defer srv.Close()

	_, _ = c.PlanJobPredecessors(context.Background(), "JOB1", 0)
	if sawDepth {
		t.Error("depth=0 should omit the query parameter entirely")
	}

	_, _ = c.PlanJobPredecessors(context.Background(), "JOB1", 3)
	if !sawDepth {
		t.Error("depth=3 should set the query parameter")
	}
}

func TestEngineConfigurationKeyParam(t *testing.T) {
	var gotKey string
	c, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	_, _ = c.EngineConfiguration(context.Background(), "timezone")
	if gotKey != "timezone" {
		t.Errorf("key = %s", gotKey)
	}
}

func TestConnectionFailureIsBackendUnavailable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"}, metrics.NewRegistry())
	_, err := c.EngineInfo(context.Background())
	if err == nil {
		t.Fatal("expected connection failure")
	}
	if code := apperrors.As(err).Code; code != apperrors.CodeBackendUnavailable {
		t.Errorf("code = %s, want %s", code, apperrors.CodeBackendUnavailable)
	}
}

func TestNormalizeEndpointCollapsesIDs(t *testing.T) {
	cases := map[string]string{
		"engine/info":                   "engine_info",
		"plan/job/JOB12345/predecessors": "plan_job_{id}_predecessors",
		"plan/job/count":                 "plan_job_count",
		"plan/job/issues":                "plan_job_issues",
		"plan/jobstream/STREAM1/model/description": "plan_jobstream_{id}_model_description",
		"model/jobdefinition/" + "abc-123":          "model_jobdefinition_{id}",
		"plan/folder/objects-count":                 "plan_folder_objects-count",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in); got != want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}
