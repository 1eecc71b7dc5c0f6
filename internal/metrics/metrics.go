// Package metrics exposes Prometheus collectors for the store crawler.
package metrics

import (
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes reported through ObserveRecord.
const (
	RecordStored           = "stored"
	RecordNoStructuredData = "no_structured_data"
	RecordExtractFailed    = "extract_failed"
	RecordSinkFailed       = "sink_failed"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerBytesTotal          *prometheus.CounterVec
	crawlerLinksTotal          *prometheus.CounterVec
	crawlerRecordsTotal        *prometheus.CounterVec
	crawlerFetchErrorsTotal    *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages fetched, labeled by site and page kind.",
			},
			[]string{"site", "kind"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerLinksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_links_discovered_total",
				Help: "Links queued from list pages, labeled by the page kind they lead to.",
			},
			[]string{"kind"},
		)

		crawlerRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_store_records_total",
				Help: "Store detail pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerFetchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_errors_total",
				Help: "Failed fetches, labeled by page kind and HTTP status code (0 for transport errors).",
			},
			[]string{"kind", "code"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObservePage counts one fetched page of the given kind.
func ObservePage(site, kind string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, kind).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveLinks counts links queued towards pages of kind.
func ObserveLinks(kind string, n int) {
	Init()
	if n > 0 {
		crawlerLinksTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveRecord counts one store page outcome.
func ObserveRecord(outcome string) {
	Init()
	crawlerRecordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchError counts a failed fetch.
func ObserveFetchError(kind string, code int) {
	Init()
	crawlerFetchErrorsTotal.WithLabelValues(kind, strconv.Itoa(code)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
