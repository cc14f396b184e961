// Package metrics provides Prometheus metrics for the quantum backend.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the backend.
type Metrics struct {
	// Job lifecycle
	JobsSubmitted    *prometheus.CounterVec
	SubmissionErrors *prometheus.CounterVec
	StatusPolls      *prometheus.CounterVec
	Cancellations    *prometheus.CounterVec
	BatchesStarted   *prometheus.CounterVec

	// Session
	Reauthentications prometheus.Counter

	// Result cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Timing
	ResultFetchDuration *prometheus.HistogramVec
	CompileDuration     *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	initOnce       sync.Once
)

// Init initializes the metrics package with global metrics.
// Later calls return the metrics created by the first one.
func Init(namespace string) *Metrics {
	initOnce.Do(func() {
		defaultMetrics = newMetrics(promauto.With(prometheus.DefaultRegisterer), namespace)
	})
	return defaultMetrics
}

// New creates metrics registered on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	return newMetrics(promauto.With(reg), namespace)
}

func newMetrics(f promauto.Factory, namespace string) *Metrics {
	if namespace == "" {
		namespace = "quantum_backend"
	}

	return &Metrics{
		JobsSubmitted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_submitted_total",
				Help:      "Total number of jobs accepted by the service",
			},
			[]string{"device"},
		),
		SubmissionErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submission_errors_total",
				Help:      "Total number of failed job submissions",
			},
			[]string{"device"},
		),
		StatusPolls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_polls_total",
				Help:      "Total number of job status queries by reported status",
			},
			[]string{"device", "status"},
		),
		Cancellations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cancellations_total",
				Help:      "Total number of cancel requests sent",
			},
			[]string{"device"},
		),
		BatchesStarted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_started_total",
				Help:      "Total number of batches opened",
			},
			[]string{"device"},
		),
		Reauthentications: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reauthentications_total",
				Help:      "Total number of forced re-logins after an unauthorized response",
			},
		),
		CacheHits: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "result_cache_hits_total",
				Help:      "Result lookups served from the cache",
			},
		),
		CacheMisses: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "result_cache_misses_total",
				Help:      "Result lookups that needed the service",
			},
		),
		ResultFetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "result_fetch_duration_seconds",
				Help:      "Time spent waiting for a job result",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 0.1s to ~27min
			},
			[]string{"device"},
		),
		CompileDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "Time to run the default compilation pass",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
			},
			[]string{"device", "level"},
		),
	}
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// The helpers below are safe to call on a nil *Metrics.

// IncJobsSubmitted increments the submitted jobs counter.
func (m *Metrics) IncJobsSubmitted(device string, n int) {
	if m == nil {
		return
	}
	m.JobsSubmitted.WithLabelValues(device).Add(float64(n))
}

// IncSubmissionErrors increments the submission errors counter.
func (m *Metrics) IncSubmissionErrors(device string) {
	if m == nil {
		return
	}
	m.SubmissionErrors.WithLabelValues(device).Inc()
}

// IncStatusPolls counts one status query.
func (m *Metrics) IncStatusPolls(device, status string) {
	if m == nil {
		return
	}
	m.StatusPolls.WithLabelValues(device, status).Inc()
}

// IncCancellations counts one cancel request.
func (m *Metrics) IncCancellations(device string) {
	if m == nil {
		return
	}
	m.Cancellations.WithLabelValues(device).Inc()
}

// IncBatchesStarted counts one opened batch.
func (m *Metrics) IncBatchesStarted(device string) {
	if m == nil {
		return
	}
	m.BatchesStarted.WithLabelValues(device).Inc()
}

// IncReauthentications counts one forced re-login.
func (m *Metrics) IncReauthentications() {
	if m == nil {
		return
	}
	m.Reauthentications.Inc()
}

// ObserveCacheLookup counts a cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// ObserveResultFetchDuration records time spent waiting for a result.
func (m *Metrics) ObserveResultFetchDuration(device string, seconds float64) {
	if m == nil {
		return
	}
	m.ResultFetchDuration.WithLabelValues(device).Observe(seconds)
}

// ObserveCompileDuration records the compilation time for one circuit.
func (m *Metrics) ObserveCompileDuration(device, level string, seconds float64) {
	if m == nil {
		return
	}
	m.CompileDuration.WithLabelValues(device, level).Observe(seconds)
}
