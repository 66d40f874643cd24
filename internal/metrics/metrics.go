// Package metrics exposes Prometheus collectors for the catalog
// service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlPagesTotal        *prometheus.CounterVec
	crawlMoviesStoredTotal prometheus.Counter
	crawlItemsSkippedTotal *prometheus.CounterVec
	crawlActive            prometheus.Gauge
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than
// once.
func Init() {
	once.Do(func() {
		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_crawl_pages_total",
				Help: "Detail pages fetched during crawls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlMoviesStoredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_crawl_movies_stored_total",
				Help: "Movie records successfully upserted into the catalog.",
			},
		)

		crawlItemsSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_crawl_items_skipped_total",
				Help: "Crawl items skipped without aborting the run, labeled by reason.",
			},
			[]string{"reason"},
		)

		crawlActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_crawl_active",
				Help: "1 while a crawl run is active.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePage counts one fetched detail page by outcome ("ok" or
// "error").
func ObservePage(outcome string) {
	Init()
	crawlPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveStored counts one upserted movie record.
func ObserveStored() {
	Init()
	crawlMoviesStoredTotal.Inc()
}

// ObserveSkipped counts one skipped crawl item by reason.
func ObserveSkipped(reason string) {
	Init()
	crawlItemsSkippedTotal.WithLabelValues(reason).Inc()
}

// SetCrawlActive flips the active-crawl gauge.
func SetCrawlActive(active bool) {
	Init()
	if active {
		crawlActive.Set(1)
		return
	}
	crawlActive.Set(0)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
