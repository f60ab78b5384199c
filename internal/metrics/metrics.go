package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "domainmap"

// Crawl outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeBusy    = "busy"
	OutcomeError   = "error"
)

// Task results used as the "result" label.
const (
	ResultAcked        = "acked"
	ResultRetried      = "retried"
	ResultDeferred     = "deferred"
	ResultDeadLettered = "dead_lettered"
)

// Metrics holds the collectors of one crawl process.
type Metrics struct {
	registry *prometheus.Registry

	crawls     *prometheus.CounterVec
	tasks      *prometheus.CounterVec
	fetchTime  prometheus.Histogram
	crawlTime  prometheus.Histogram
	linksFound prometheus.Counter
	submitted  prometheus.Counter
	inFlight   prometheus.Gauge
}

// New creates a Metrics with a fresh registry that also exports the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		crawls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawls_total",
			Help:      "Domains processed, by outcome.",
		}, []string{"outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Queue deliveries finished, by result.",
		}, []string{"result"}),
		fetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time until response headers of fetched pages.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		crawlTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Time spent processing one domain.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		linksFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_found_total",
			Help:      "Distinct linked domains extracted from pages.",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Linked domains submitted to the queue.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Tasks currently being processed by this process.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.crawls, m.tasks, m.fetchTime, m.crawlTime,
		m.linksFound, m.submitted, m.inFlight,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCrawl records the outcome and duration of one domain.
func (m *Metrics) ObserveCrawl(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.crawls.WithLabelValues(outcome).Inc()
	m.crawlTime.Observe(elapsed.Seconds())
}

// ObserveFetch records the header latency of a fetched page.
func (m *Metrics) ObserveFetch(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetchTime.Observe(elapsed.Seconds())
}

// AddLinks counts extracted linked domains.
func (m *Metrics) AddLinks(n int) {
	if m == nil {
		return
	}
	m.linksFound.Add(float64(n))
}

// AddSubmitted counts domains submitted to the queue.
func (m *Metrics) AddSubmitted(n int) {
	if m == nil {
		return
	}
	m.submitted.Add(float64(n))
}

// ObserveTask records how a delivery was finished.
func (m *Metrics) ObserveTask(result string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(result).Inc()
}

// TaskStarted increments the in-flight gauge.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// TaskDone decrements the in-flight gauge.
func (m *Metrics) TaskDone() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
		return nil
	}
}
