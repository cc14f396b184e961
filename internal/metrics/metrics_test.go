package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAccumulate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")

	m.IncJobsSubmitted("H1-1E", 3)
	m.IncJobsSubmitted("H1-1E", 1)
	m.IncStatusPolls("H1-1E", "COMPLETED")
	m.ObserveCacheLookup(true)
	m.ObserveCacheLookup(false)
	m.ObserveCacheLookup(false)

	if got := testutil.ToFloat64(m.JobsSubmitted.WithLabelValues("H1-1E")); got != 4 {
		t.Errorf("jobs submitted = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.StatusPolls.WithLabelValues("H1-1E", "COMPLETED")); got != 1 {
		t.Errorf("status polls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheHits); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheMisses); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncJobsSubmitted("d", 1)
	m.IncSubmissionErrors("d")
	m.IncStatusPolls("d", "QUEUED")
	m.IncCancellations("d")
	m.IncBatchesStarted("d")
	m.IncReauthentications()
	m.ObserveCacheLookup(true)
	m.ObserveResultFetchDuration("d", 1)
	m.ObserveCompileDuration("d", "2", 0.1)
}

func TestInitIsIdempotent(t *testing.T) {
	a := Init("")
	b := Init("other")
	if a != b || Get() != a {
		t.Error("Init should return the same instance on every call")
	}
}
