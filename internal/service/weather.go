package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/pincode-weather-service/internal/cache"
	"github.com/kjstillabower/pincode-weather-service/internal/client"
	"github.com/kjstillabower/pincode-weather-service/internal/models"
	"github.com/kjstillabower/pincode-weather-service/internal/observability"
	"github.com/kjstillabower/pincode-weather-service/internal/openmeteo"
	"github.com/kjstillabower/pincode-weather-service/internal/store"
	"github.com/kjstillabower/pincode-weather-service/internal/validation"
)

// DefaultLiveTTL is how long a live reading stays cached.
const DefaultLiveTTL = 5 * time.Minute

// LocationSource resolves a postal code to a location.
type LocationSource interface {
	Resolve(ctx context.Context, postalCode string) (models.Location, error)
}

// WeatherResolver serves live readings (cache, then remote; never persisted) and historical
// readings (cache, then store, then remote archive; persisted on miss).
type WeatherResolver struct {
	locations LocationSource
	cache     cache.Cache
	store     store.WeatherStore
	api       client.WeatherAPI
	liveTTL   time.Duration
	now       func() time.Time
}

// NewWeatherResolver creates a WeatherResolver. liveTTL <= 0 uses DefaultLiveTTL.
func NewWeatherResolver(locations LocationSource, c cache.Cache, s store.WeatherStore, api client.WeatherAPI, liveTTL time.Duration) *WeatherResolver {
	if liveTTL <= 0 {
		liveTTL = DefaultLiveTTL
	}
	return &WeatherResolver{
		locations: locations,
		cache:     c,
		store:     s,
		api:       api,
		liveTTL:   liveTTL,
		now:       time.Now,
	}
}

// GetWeatherForDate classifies date against today (UTC) and routes to the live path for today
// and the historical path for earlier dates. Future and unparseable dates fail before any
// location or weather lookup.
func (r *WeatherResolver) GetWeatherForDate(ctx context.Context, postalCode, date string) (models.WeatherObservation, error) {
	day, class, err := validation.ClassifyDate(date, r.now())
	if err != nil {
		return models.WeatherObservation{}, err
	}
	if class == validation.DatePresent {
		return r.GetCurrentWeather(ctx, postalCode)
	}
	return r.GetHistoricalWeather(ctx, postalCode, day)
}

// GetCurrentWeather returns today's reading for postalCode.
func (r *WeatherResolver) GetCurrentWeather(ctx context.Context, postalCode string) (models.WeatherObservation, error) {
	observability.WeatherQueriesTotal.WithLabelValues("live").Inc()
	loc, err := r.locations.Resolve(ctx, postalCode)
	if err != nil {
		return models.WeatherObservation{}, err
	}

	now := r.now()
	key := CurrentWeatherKey(loc.Latitude, loc.Longitude, models.DateOf(now))
	if obs, ok := readCache[models.WeatherObservation](ctx, r.cache, NamespaceCurrentWeather, key); ok {
		observability.RecordResolution(NamespaceCurrentWeather, observability.SourceCache)
		return obs, nil
	}

	observability.LoggerFrom(ctx).Debug("fetching live weather",
		zap.Float64("lat", loc.Latitude), zap.Float64("lon", loc.Longitude))
	body, err := r.api.FetchCurrent(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return models.WeatherObservation{}, err
	}
	obs, err := openmeteo.Translate(body, now)
	if err != nil {
		return models.WeatherObservation{}, err
	}
	obs.Latitude, obs.Longitude = loc.Latitude, loc.Longitude

	writeCache(ctx, r.cache, key, obs, r.liveTTL)
	observability.RecordResolution(NamespaceCurrentWeather, observability.SourceRemote)
	return obs, nil
}

// GetHistoricalWeather returns the reading for postalCode on date. Today and later dates are
// rejected with validation.ErrFutureDateRejected before any lookup.
func (r *WeatherResolver) GetHistoricalWeather(ctx context.Context, postalCode string, date time.Time) (models.WeatherObservation, error) {
	if !models.DateOf(date).Before(models.DateOf(r.now())) {
		return models.WeatherObservation{}, fmt.Errorf("historical weather for %s: %w", models.DateOf(date).Format(models.DateLayout), validation.ErrFutureDateRejected)
	}
	observability.WeatherQueriesTotal.WithLabelValues("historical").Inc()
	loc, err := r.locations.Resolve(ctx, postalCode)
	if err != nil {
		return models.WeatherObservation{}, err
	}

	day := models.DateOf(date)
	key := HistoricalWeatherKey(loc.Latitude, loc.Longitude, day)
	if obs, ok := readCache[models.WeatherObservation](ctx, r.cache, NamespaceOldWeather, key); ok {
		observability.RecordResolution(NamespaceOldWeather, observability.SourceCache)
		return obs, nil
	}

	logger := observability.LoggerFrom(ctx)
	obs, found, err := r.store.FindWeather(ctx, loc.Latitude, loc.Longitude, day)
	if err != nil {
		return models.WeatherObservation{}, err
	}
	if found {
		logger.Debug("historical weather served from store", zap.String("key", key))
		writeCache(ctx, r.cache, key, obs, cache.NoExpiration)
		observability.RecordResolution(NamespaceOldWeather, observability.SourceStore)
		return obs, nil
	}

	logger.Debug("fetching historical weather", zap.String("key", key))
	body, err := r.api.FetchHistorical(ctx, loc.Latitude, loc.Longitude, day)
	if err != nil {
		return models.WeatherObservation{}, err
	}
	obs, err = openmeteo.Translate(body, r.now())
	if err != nil {
		return models.WeatherObservation{}, err
	}
	obs.Latitude, obs.Longitude = loc.Latitude, loc.Longitude

	saved, err := r.RecordHistoricalWeather(ctx, obs)
	if err != nil {
		return models.WeatherObservation{}, err
	}
	writeCache(ctx, r.cache, key, saved, cache.NoExpiration)
	observability.RecordResolution(NamespaceOldWeather, observability.SourceRemote)
	return saved, nil
}

// RecordHistoricalWeather persists obs. The store upserts on (latitude, longitude, date).
func (r *WeatherResolver) RecordHistoricalWeather(ctx context.Context, obs models.WeatherObservation) (models.WeatherObservation, error) {
	return r.store.SaveWeatherObservation(ctx, obs)
}
