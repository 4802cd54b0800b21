// Package metrics holds the Prometheus collectors of the crawl and load
// pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mathwiki"

// Metrics groups every collector
type Metrics struct {
	pagesFetched        *prometheus.CounterVec
	fetchRetries        prometheus.Counter
	fetchDuration       prometheus.Histogram
	problemsExtracted   *prometheus.CounterVec
	answersResolved     *prometheus.CounterVec
	answerConflicts     prometheus.Counter
	batchesCommitted    *prometheus.CounterVec
	batchOps            prometheus.Histogram
	classifierFallbacks prometheus.Counter
	httpRequests        *prometheus.CounterVec
	httpLatency         *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg uses a fresh private
// registry, which keeps repeated construction in tests from colliding.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{
		pagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Page loads by result (ok, not_ready, error)",
		}, []string{"result"}),
		fetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Page loads retried after a retryable failure",
		}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of page loads including readiness polling",
			Buckets:   prometheus.DefBuckets,
		}),
		problemsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "problems_extracted_total",
			Help:      "Problem pages processed by result (ok, skipped)",
		}, []string{"result"}),
		answersResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Resolved answers by source; unresolved answers use source none",
		}, []string{"source"}),
		answerConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_conflicts_total",
			Help:      "Problems whose answer key disagrees with the solution",
		}),
		batchesCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_batches_total",
			Help:      "Store batches by result (committed, failed)",
		}, []string{"result"}),
		batchOps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_batch_ops",
			Help:      "Write operations per committed batch",
			Buckets:   []float64{1, 10, 50, 100, 200, 300, 400, 500},
		}),
		classifierFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_fallbacks_total",
			Help:      "Classifier batches that fell back to the default label",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests received",
		}, []string{"method", "route", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// PageFetched records one page load
func (m *Metrics) PageFetched(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(d.Seconds())
}

// FetchRetried records one retry
func (m *Metrics) FetchRetried() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

// ProblemExtracted records one processed problem page
func (m *Metrics) ProblemExtracted(result string) {
	if m == nil {
		return
	}
	m.problemsExtracted.WithLabelValues(result).Inc()
}

// AnswerResolved records the answer source of one problem
func (m *Metrics) AnswerResolved(source string, conflict bool) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.answersResolved.WithLabelValues(source).Inc()
	if conflict {
		m.answerConflicts.Inc()
	}
}

// BatchCommitted records a committed batch and its size
func (m *Metrics) BatchCommitted(ops int) {
	if m == nil {
		return
	}
	m.batchesCommitted.WithLabelValues("committed").Inc()
	m.batchOps.Observe(float64(ops))
}

// BatchFailed records a batch that could not be committed
func (m *Metrics) BatchFailed() {
	if m == nil {
		return
	}
	m.batchesCommitted.WithLabelValues("failed").Inc()
}

// ClassifierFallback records a batch labelled with the default label
func (m *Metrics) ClassifierFallback() {
	if m == nil {
		return
	}
	m.classifierFallbacks.Inc()
}

// Handler exposes the registry the metrics were registered with
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request count and latency per route
func (m *Metrics) Middleware(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		m.httpRequests.WithLabelValues(r.Method, route, status).Inc()
		m.httpLatency.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}
