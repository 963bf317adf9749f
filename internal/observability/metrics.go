package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution sources, used as the "source" label of ResolutionsTotal.
const (
	SourceCache  = "cache"
	SourceStore  = "store"
	SourceRemote = "remote"
)

var (
	registry *prometheus.Registry

	// HTTP request rate by route template. Watch for: sudden drops or 4xx spikes from bad pincodes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Watch for: p95 growth when caches go cold.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Remote API calls by endpoint (geocoding, current, historical) and status class.
	RemoteAPICallsTotal *prometheus.CounterVec

	// Remote API latency by endpoint. Watch for: p99 close to the configured API timeout.
	RemoteAPIDuration *prometheus.HistogramVec

	// Circuit breaker state per endpoint (0 closed, 1 half-open, 2 open).
	CircuitBreakerState *prometheus.GaugeVec

	// Cache hits and misses per key namespace (location, current-weather, old-weather).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Cache backend failures by operation. Failures degrade to misses, never to request errors.
	CacheErrorsTotal *prometheus.CounterVec

	// Cache operation latency by operation and result.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Store operations by operation and result.
	StoreOperationsTotal *prometheus.CounterVec

	// Resolutions by kind (location, current, historical) and the tier that served them.
	ResolutionsTotal *prometheus.CounterVec

	// Weather queries by route (live, historical).
	WeatherQueriesTotal *prometheus.CounterVec

	// Request failures by error category.
	RequestErrorsTotal *prometheus.CounterVec

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	RemoteAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remoteApiCallsTotal",
			Help: "Total number of geocoding and weather API calls",
		},
		[]string{"endpoint", "status"},
	)
	RemoteAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remoteApiDurationSeconds",
			Help:    "Geocoding and weather API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per remote endpoint: 0 closed, 1 half-open, 2 open",
		},
		[]string{"endpoint"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits by key namespace",
		},
		[]string{"namespace"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses by key namespace",
		},
		[]string{"namespace"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of cache backend errors by operation",
		},
		[]string{"operation"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .5},
		},
		[]string{"operation", "result"},
	)
	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeOperationsTotal",
			Help: "Total number of store operations by operation and result",
		},
		[]string{"operation", "result"},
	)
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolutionsTotal",
			Help: "Resolved locations and observations by kind and serving tier",
		},
		[]string{"kind", "source"},
	)
	WeatherQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherQueriesTotal",
			Help: "Total number of weather lookups by route",
		},
		[]string{"route"},
	)
	RequestErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requestErrorsTotal",
			Help: "Request failures by error category",
		},
		[]string{"category"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		RemoteAPICallsTotal, RemoteAPIDuration, CircuitBreakerState,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		StoreOperationsTotal, ResolutionsTotal,
		WeatherQueriesTotal, RequestErrorsTotal,
		RateLimitDeniedTotal,
	)
}

// RecordResolution counts one resolution of kind served from source.
func RecordResolution(kind, source string) {
	ResolutionsTotal.WithLabelValues(kind, source).Inc()
}

// RecordStoreOperation counts a store call; err decides the result label.
func RecordStoreOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	StoreOperationsTotal.WithLabelValues(operation, result).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
