package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal     metric.Int64Counter
	HTTPRequestDuration   metric.Float64Histogram
	ResolveRequestsTotal  metric.Int64Counter
	ResolveFallbacksTotal metric.Int64Counter
	SearchRequestsTotal   metric.Int64Counter
	SearchCacheHitsTotal  metric.Int64Counter
	SearchCacheMissTotal  metric.Int64Counter
	ProviderErrorsTotal   metric.Int64Counter
	SearchDuration        metric.Float64Histogram
	DBQueryErrorsTotal    metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once, using the
// globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("wanderer")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.ResolveRequestsTotal, err = meter.Int64Counter(
			"location_resolve_requests_total",
			metric.WithDescription("Total number of location resolution attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create location_resolve_requests_total: %v", err)
		}

		m.ResolveFallbacksTotal, err = meter.Int64Counter(
			"location_resolve_fallbacks_total",
			metric.WithDescription("Resolutions that fell past the device source"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create location_resolve_fallbacks_total: %v", err)
		}

		m.SearchRequestsTotal, err = meter.Int64Counter(
			"place_search_requests_total",
			metric.WithDescription("Total number of nearby place searches"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create place_search_requests_total: %v", err)
		}

		m.SearchCacheHitsTotal, err = meter.Int64Counter(
			"place_search_cache_hits_total",
			metric.WithDescription("Nearby searches answered from the quantized-key cache"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create place_search_cache_hits_total: %v", err)
		}

		m.SearchCacheMissTotal, err = meter.Int64Counter(
			"place_search_cache_misses_total",
			metric.WithDescription("Nearby searches that went to the network"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create place_search_cache_misses_total: %v", err)
		}

		m.ProviderErrorsTotal, err = meter.Int64Counter(
			"provider_errors_total",
			metric.WithDescription("Errors returned by external geo providers"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create provider_errors_total: %v", err)
		}

		m.SearchDuration, err = meter.Float64Histogram(
			"place_search_duration_seconds",
			metric.WithDescription("Duration of nearby place searches in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create place_search_duration_seconds: %v", err)
		}

		m.DBQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance, or nil when
// InitAppMetrics has not run. Callers treat a nil result as metrics disabled.
func Get() *AppMetrics {
	return appMetrics
}
