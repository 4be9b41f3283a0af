// Package metrics exposes Prometheus counters for the import pipeline and HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zone_import",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zone_import",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})

	// ImportsTotal counts uploads by outcome: staged, unparsable, no_geometry, error.
	ImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zone_import",
		Subsystem: "pipeline",
		Name:      "imports_total",
		Help:      "Total uploaded documents by outcome",
	}, []string{"outcome"})

	PlacemarksExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zone_import",
		Subsystem: "pipeline",
		Name:      "placemarks_extracted_total",
		Help:      "Total placemarks extracted from uploaded documents",
	})

	// MetadataStrategy counts canonicalized descriptions by strategy and whether the fallback fired.
	MetadataStrategy = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zone_import",
		Subsystem: "pipeline",
		Name:      "metadata_strategy_total",
		Help:      "Canonicalized descriptions by parsing strategy",
	}, []string{"strategy", "fallback"})

	// StoreResolutions counts store lookups by match tier.
	StoreResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zone_import",
		Subsystem: "stores",
		Name:      "resolutions_total",
		Help:      "Store name resolutions by match tier",
	}, []string{"tier"})

	StoreSnapshotLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zone_import",
		Subsystem: "stores",
		Name:      "snapshot_loads_total",
		Help:      "Store directory snapshot loads by source",
	}, []string{"source"})

	// Submissions counts draft submissions by outcome: submitted, failed, blocked.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zone_import",
		Subsystem: "staging",
		Name:      "submissions_total",
		Help:      "Draft submissions by outcome",
	}, []string{"outcome"})
)

// Middleware records request count and latency per route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
