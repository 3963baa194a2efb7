package graph

import "testing"

func TestFindSafeJobsExcludesFailingAndDescendants(t *testing.T) {
	g := buildTestGraph()
	safe, ok := FindSafeJobs(g, "B")
	if !ok {
		t.Fatal("expected B to be found")
	}
	want := map[string]bool{"A": true, "E": true}
	if len(safe) != len(want) {
		t.Fatalf("safe = %v, want %v", safe, want)
	}
	for _, j := range safe {
		if !want[j] {
			t.Errorf("unexpected safe job %q", j)
		}
	}
}

func TestFindIndependentJobsExcludesConnected(t *testing.T) {
	g := buildTestGraph()
	independent, ok := FindIndependentJobs(g, "C")
	if !ok {
		t.Fatal("expected C to be found")
	}
	for _, j := range independent {
		if j == "C" || j == "B" || j == "D" || j == "A" {
			t.Errorf("%q should not be independent of C", j)
		}
	}
	found := false
	for _, j := range independent {
		if j == "E" {
			found = true
		}
	}
	if !found {
		t.Error("E has no path to/from C, expected it to be independent")
	}
}
