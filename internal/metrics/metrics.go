// Package metrics exposes Prometheus collectors for the syncer and the web server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gistblog"

// Sync outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Per-post results of a sync cycle.
const (
	ResultCreated       = "created"
	ResultUpdated       = "updated"
	ResultSkipped       = "skipped"
	ResultPublished     = "published"
	ResultPublishFailed = "publish_failed"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of sync cycles by outcome",
		},
		[]string{"status"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	SyncPostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_posts_total",
			Help:      "Gists processed by sync cycles, by result",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RenderCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_cache_total",
			Help:      "Render cache lookups by result",
		},
		[]string{"cache", "result"},
	)
)

// RecordSyncRun records one sync cycle.
func RecordSyncRun(status string, duration float64) {
	SyncRunsTotal.WithLabelValues(status).Inc()
	SyncDuration.Observe(duration)
}

func RecordSyncPosts(result string, n int) {
	if n <= 0 {
		return
	}
	SyncPostsTotal.WithLabelValues(result).Add(float64(n))
}

func RecordHTTPRequest(method, route, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// RecordCacheLookup records a hit or miss on a named in-process cache.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	RenderCacheTotal.WithLabelValues(cache, result).Inc()
}
