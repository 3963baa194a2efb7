package metrics

import "testing"

func TestCounterAccumulates(t *testing.T) {
	r := NewRegistry()
	r.IncrCounter("requests_total", Labels{"endpoint": "jobs"}, 1)
	r.IncrCounter("requests_total", Labels{"endpoint": "jobs"}, 2)

	snaps := r.Export()
	if len(snaps) != 1 {
		t.Fatalf("len(snaps) = %d, want 1", len(snaps))
	}
	if snaps[0].Value != 3 {
		t.Errorf("value = %v, want 3", snaps[0].Value)
	}
}

func TestLabelsDistinguishSeries(t *testing.T) {
	r := NewRegistry()
	r.IncrCounter("requests_total", Labels{"endpoint": "jobs"}, 1)
	r.IncrCounter("requests_total", Labels{"endpoint": "status"}, 1)

	if len(r.Export()) != 2 {
		t.Fatalf("expected two distinct series, got %d", len(r.Export()))
	}
}

func TestGaugeOverwrites(t *testing.T) {
	r := NewRegistry()
	r.SetGauge("cache_size", nil, 10)
	r.SetGauge("cache_size", nil, 4)

	snaps := r.Export()
	if snaps[0].Value != 4 {
		t.Errorf("value = %v, want 4", snaps[0].Value)
	}
}

func TestHistogramPercentiles(t *testing.T) {
	r := NewRegistry()
	for i := 1; i <= 100; i++ {
		r.Observe("latency_seconds", nil, float64(i))
	}

	snaps := r.Export()
	if len(snaps) != 1 {
		t.Fatalf("len(snaps) = %d", len(snaps))
	}
	s := snaps[0]
	if s.Count != 100 {
		t.Errorf("count = %d, want 100", s.Count)
	}
	if s.P50 < 49 || s.P50 > 52 {
		t.Errorf("p50 = %v, expected near 50", s.P50)
	}
	if s.P99 < 98 {
		t.Errorf("p99 = %v, expected near 99-100", s.P99)
	}
}

func TestHistogramBoundedSamples(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < maxHistogramSamples+500; i++ {
		r.Observe("latency_seconds", nil, 1.0)
	}
	h := r.histograms["latency_seconds"]
	if len(h.samples) > maxHistogramSamples {
		t.Errorf("samples retained = %d, want <= %d", len(h.samples), maxHistogramSamples)
	}
	if h.count != int64(maxHistogramSamples+500) {
		t.Errorf("count should keep accumulating past the sample cap, got %d", h.count)
	}
}

func TestExportJSON(t *testing.T) {
	r := NewRegistry()
	r.IncrCounter("x", nil, 1)
	b, err := r.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if len(b) == 0 {
		t.Error("expected non-empty JSON")
	}
}
