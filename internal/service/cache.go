package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/pincode-weather-service/internal/cache"
	"github.com/kjstillabower/pincode-weather-service/internal/models"
	"github.com/kjstillabower/pincode-weather-service/internal/observability"
)

// Cache namespaces, also used as metric labels.
const (
	NamespaceLocation       = "location"
	NamespaceCurrentWeather = "current-weather"
	NamespaceOldWeather     = "old-weather"
)

// LocationKey returns the cache key for a postal code.
func LocationKey(postalCode string) string {
	return NamespaceLocation + ":" + postalCode
}

// CurrentWeatherKey returns the cache key for today's live reading at a coordinate.
func CurrentWeatherKey(lat, lon float64, today time.Time) string {
	return NamespaceCurrentWeather + ":" + coord(lat) + ":" + coord(lon) + ":" + today.Format(models.DateLayout)
}

// HistoricalWeatherKey returns the cache key for a past date at a coordinate.
func HistoricalWeatherKey(lat, lon float64, date time.Time) string {
	return NamespaceOldWeather + ":" + coord(lat) + ":" + coord(lon) + ":" + date.Format(models.DateLayout)
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// readCache looks key up and decodes it. A failed read is logged and reported as a miss.
func readCache[V any](ctx context.Context, c cache.Cache, namespace, key string) (V, bool) {
	logger := observability.LoggerFrom(ctx)
	start := time.Now()
	v, ok, err := cache.GetValue[V](ctx, c, key)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(elapsed)
		observability.CacheMissesTotal.WithLabelValues(namespace).Inc()
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		var zero V
		return zero, false
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(elapsed)
	if !ok {
		observability.CacheMissesTotal.WithLabelValues(namespace).Inc()
		logger.Debug("cache miss", zap.String("key", key))
		return v, false
	}
	observability.CacheHitsTotal.WithLabelValues(namespace).Inc()
	logger.Debug("cache hit", zap.String("key", key))
	return v, true
}

// writeCache stores v under key. Failures are logged and counted, never returned.
func writeCache[V any](ctx context.Context, c cache.Cache, key string, v V, ttl time.Duration) {
	start := time.Now()
	err := cache.SetValue(ctx, c, key, v, ttl)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(elapsed)
		observability.LoggerFrom(ctx).Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(elapsed)
}
