// Package metrics holds this proxy's own self-telemetry, registered
// against the default Prometheus registry, which the process serves on the
// listener given by the config's top-level `metrics` entry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_proxy_requests_total",
			Help: "Total proxied scrape requests by proxy name and response status",
		},
		[]string{"proxy", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metrics_proxy_request_duration_seconds",
			Help:    "End-to-end handling duration for a proxied scrape request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"proxy"},
	)
	activeRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metrics_proxy_active_requests",
			Help: "In-flight proxied scrape requests",
		},
		[]string{"proxy"},
	)
	upstreamFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_proxy_upstream_fetch_total",
			Help: "Total upstream fetch attempts by proxy name and outcome",
		},
		[]string{"proxy", "outcome"},
	)
	upstreamFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metrics_proxy_upstream_fetch_duration_seconds",
			Help:    "Upstream fetch duration as observed by the proxy",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"proxy"},
	)
	sampleCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_proxy_sample_cache_hits_total",
			Help: "Sample cache lookups served from a fresh reduce_time_resolution entry",
		},
		[]string{"proxy"},
	)
	sampleCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_proxy_sample_cache_misses_total",
			Help: "Sample cache lookups that found no fresh entry",
		},
		[]string{"proxy"},
	)
	filteredSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_proxy_filtered_samples_total",
			Help: "Samples dropped by label filter rules, by proxy name",
		},
		[]string{"proxy"},
	)
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		requestDuration,
		activeRequests,
		upstreamFetchTotal,
		upstreamFetchDuration,
		sampleCacheHits,
		sampleCacheMisses,
		filteredSamplesTotal,
	)
}

func ObserveRequest(proxy string, status int, dur time.Duration) {
	requestsTotal.WithLabelValues(proxy, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(proxy).Observe(dur.Seconds())
}

func ActiveRequestsInc(proxy string) { activeRequests.WithLabelValues(proxy).Inc() }
func ActiveRequestsDec(proxy string) { activeRequests.WithLabelValues(proxy).Dec() }

func ObserveUpstreamFetch(proxy, outcome string, dur time.Duration) {
	upstreamFetchTotal.WithLabelValues(proxy, outcome).Inc()
	upstreamFetchDuration.WithLabelValues(proxy).Observe(dur.Seconds())
}

func SampleCacheHitInc(proxy string)  { sampleCacheHits.WithLabelValues(proxy).Inc() }
func SampleCacheMissInc(proxy string) { sampleCacheMisses.WithLabelValues(proxy).Inc() }

func FilteredSamplesAdd(proxy string, n int) {
	if n <= 0 {
		return
	}
	filteredSamplesTotal.WithLabelValues(proxy).Add(float64(n))
}
