// Package metrics exposes Prometheus counters for the label scan.
//
// Metrics:
//   - labelscraper_labels_processed_total (Counter): identifiers visited by the scan
//   - labelscraper_records_written_total (Counter): records appended to the store
//   - labelscraper_labels_skipped_total (Counter): labels without email or URLs
//   - labelscraper_fetch_failures_total (Counter): detail requests that yielded no label
//   - labelscraper_append_failures_total (Counter): store appends that failed
//   - labelscraper_rate_limit_waits_total (Counter): HTTP 429 pauses
//   - labelscraper_requests_total{endpoint, status} (Counter): Discogs requests by outcome
//   - labelscraper_request_duration_seconds{endpoint} (Histogram): Discogs request latency
//   - labelscraper_scan_position (Gauge): last identifier visited
//   - labelscraper_scan_total (Gauge): identifier upper bound reported by Discogs
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"labelscraper/pkg/logger"
)

var (
	labelsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelscraper_labels_processed_total",
		Help: "Label identifiers visited by the scan",
	})

	recordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelscraper_records_written_total",
		Help: "Records appended to the store",
	})

	labelsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelscraper_labels_skipped_total",
		Help: "Labels skipped because they carry neither email nor URLs",
	})

	fetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelscraper_fetch_failures_total",
		Help: "Label detail requests that yielded no label",
	})

	appendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelscraper_append_failures_total",
		Help: "Store appends that failed",
	})

	rateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labelscraper_rate_limit_waits_total",
		Help: "Pauses taken after HTTP 429 responses",
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labelscraper_requests_total",
		Help: "Discogs requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "labelscraper_request_duration_seconds",
		Help:    "Discogs request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	scanPosition = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labelscraper_scan_position",
		Help: "Last label identifier visited",
	})

	scanTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labelscraper_scan_total",
		Help: "Label identifier upper bound reported by Discogs",
	})
)

// LabelProcessed records a visited identifier
func LabelProcessed(id int) {
	labelsProcessed.Inc()
	scanPosition.Set(float64(id))
}

// RecordWritten counts a successful append
func RecordWritten() { recordsWritten.Inc() }

// LabelSkipped counts a label without email or URLs
func LabelSkipped() { labelsSkipped.Inc() }

// FetchFailed counts a detail request that produced no label
func FetchFailed() { fetchFailures.Inc() }

// AppendFailed counts a failed append
func AppendFailed() { appendFailures.Inc() }

// RateLimitWait counts an HTTP 429 pause
func RateLimitWait() { rateLimitWaits.Inc() }

// SetTotal records the scan upper bound
func SetTotal(total int) { scanTotal.Set(float64(total)) }

// ObserveRequest records a Discogs request outcome. status 0 means no response.
func ObserveRequest(endpoint string, status int, duration time.Duration) {
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	requestsTotal.WithLabelValues(endpoint, statusLabel).Inc()
	requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Router serves GET /metrics and GET /healthz
func Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", Handler())
	return r
}

// Serve exposes Router on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, log logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(log, "metrics", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.LogComponentStop(log, "metrics", "context cancelled")
		return nil
	}
}
