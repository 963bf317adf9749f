package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/pincode-weather-service/internal/cache"
	"github.com/kjstillabower/pincode-weather-service/internal/client"
	"github.com/kjstillabower/pincode-weather-service/internal/models"
	"github.com/kjstillabower/pincode-weather-service/internal/observability"
	"github.com/kjstillabower/pincode-weather-service/internal/store"
)

// LocationResolver turns postal codes into coordinates via cache, then store, then the remote
// geocoder. Resolved locations are cached without expiry.
type LocationResolver struct {
	cache    cache.Cache
	store    store.LocationStore
	geocoder client.Geocoder
}

// NewLocationResolver creates a LocationResolver with the provided dependencies.
func NewLocationResolver(c cache.Cache, s store.LocationStore, g client.Geocoder) *LocationResolver {
	return &LocationResolver{cache: c, store: s, geocoder: g}
}

// Resolve returns the location for postalCode. On a store hit the cache is populated; on a
// store miss the geocoder is called once and its answer is persisted and cached.
func (r *LocationResolver) Resolve(ctx context.Context, postalCode string) (models.Location, error) {
	logger := observability.LoggerFrom(ctx)
	key := LocationKey(postalCode)

	if loc, ok := readCache[models.Location](ctx, r.cache, NamespaceLocation, key); ok {
		observability.RecordResolution(NamespaceLocation, observability.SourceCache)
		return loc, nil
	}

	loc, found, err := r.store.FindLocationByPostalCode(ctx, postalCode)
	if err != nil {
		return models.Location{}, err
	}
	if found {
		logger.Debug("location served from store", zap.String("postal_code", postalCode))
		writeCache(ctx, r.cache, key, loc, cache.NoExpiration)
		observability.RecordResolution(NamespaceLocation, observability.SourceStore)
		return loc, nil
	}

	logger.Debug("geocoding postal code", zap.String("postal_code", postalCode))
	loc, err = r.geocoder.LookupPostalCode(ctx, postalCode)
	if err != nil {
		return models.Location{}, err
	}
	saved, err := r.store.SaveLocation(ctx, loc)
	if err != nil {
		return models.Location{}, err
	}
	writeCache(ctx, r.cache, key, saved, cache.NoExpiration)
	observability.RecordResolution(NamespaceLocation, observability.SourceRemote)
	return saved, nil
}

// Create persists loc as given and refreshes its cache entry.
func (r *LocationResolver) Create(ctx context.Context, loc models.Location) (models.Location, error) {
	if loc.PostalCode == "" {
		return models.Location{}, fmt.Errorf("create location: postal code is required")
	}
	saved, err := r.store.SaveLocation(ctx, loc)
	if err != nil {
		return models.Location{}, err
	}
	writeCache(ctx, r.cache, LocationKey(saved.PostalCode), saved, cache.NoExpiration)
	return saved, nil
}

// Update merges the non-nil fields of patch onto the stored location, or creates one from
// patch when none exists.
func (r *LocationResolver) Update(ctx context.Context, patch models.LocationPatch) (models.Location, error) {
	existing, found, err := r.store.FindLocationByPostalCode(ctx, patch.PostalCode)
	if err != nil {
		return models.Location{}, err
	}
	if !found {
		existing = models.Location{PostalCode: patch.PostalCode}
	}
	return r.Create(ctx, merge(existing, patch))
}

func merge(loc models.Location, patch models.LocationPatch) models.Location {
	if patch.Latitude != nil {
		loc.Latitude = *patch.Latitude
	}
	if patch.Longitude != nil {
		loc.Longitude = *patch.Longitude
	}
	if patch.DisplayName != nil {
		loc.DisplayName = *patch.DisplayName
	}
	if patch.Country != nil {
		loc.Country = *patch.Country
	}
	return loc
}
