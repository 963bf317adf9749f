//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/pincode-weather-service/internal/cache"
	"github.com/kjstillabower/pincode-weather-service/internal/client"
	"github.com/kjstillabower/pincode-weather-service/internal/service"
	"github.com/kjstillabower/pincode-weather-service/internal/store"
)

// IntegrationTestConfig holds configuration for integration tests against the live providers.
type IntegrationTestConfig struct {
	GeocodingAPIKey      string
	GeocodingAPIURL      string
	Country              string
	CurrentWeatherURL    string
	HistoricalWeatherURL string
	CacheBackend         string // "in_memory", "memcached" or "redis"
	MemcachedAddr        string
	RedisAddr            string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if GEOCODING_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("GEOCODING_API_KEY")
	if apiKey == "" {
		t.Skip("GEOCODING_API_KEY not set, skipping integration test")
	}
	return IntegrationTestConfig{
		GeocodingAPIKey:      apiKey,
		GeocodingAPIURL:      envOr("GEOCODING_API_URL", "https://api.openweathermap.org/geo/1.0/zip"),
		Country:              envOr("GEOCODING_COUNTRY", "IN"),
		CurrentWeatherURL:    envOr("CURRENT_WEATHER_URL", "https://api.open-meteo.com/v1/forecast"),
		HistoricalWeatherURL: envOr("HISTORICAL_WEATHER_URL", "https://archive-api.open-meteo.com/v1/archive"),
		CacheBackend:         os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr:        envOr("MEMCACHED_ADDRS", "localhost:11211"),
		RedisAddr:            envOr("REDIS_ADDR", "localhost:6379"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Stack is a fully wired resolver chain backed by an in-memory sqlite store.
type Stack struct {
	Locations *service.LocationResolver
	Weather   *service.WeatherResolver
	Cache     cache.Cache
	Store     *store.Repo
}

// SetupIntegrationStack wires live clients, the configured cache backend and a fresh sqlite
// store. An unreachable memcached or redis falls back to the in-memory cache.
func SetupIntegrationStack(t *testing.T, cfg IntegrationTestConfig) *Stack {
	t.Helper()

	geocoder, err := client.NewGeocodingClient(cfg.GeocodingAPIKey, cfg.GeocodingAPIURL, cfg.Country, 5*time.Second, client.BreakerConfig{})
	if err != nil {
		t.Fatalf("NewGeocodingClient() error = %v", err)
	}
	weatherAPI, err := client.NewOpenMeteoClient(cfg.CurrentWeatherURL, cfg.HistoricalWeatherURL, 5*time.Second, client.BreakerConfig{})
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}

	db, err := store.Open(store.DriverSQLite, "file:it_"+strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	repo, err := store.New(db)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	cacheSvc := integrationCache(t, cfg)
	locations := service.NewLocationResolver(cacheSvc, repo, geocoder)
	return &Stack{
		Locations: locations,
		Weather:   service.NewWeatherResolver(locations, cacheSvc, repo, weatherAPI, service.DefaultLiveTTL),
		Cache:     cacheSvc,
		Store:     repo,
	}
}

func integrationCache(t *testing.T, cfg IntegrationTestConfig) cache.Cache {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping(ctx) == nil {
			t.Cleanup(func() { _ = mc.Close() })
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
			return mc
		}
		t.Logf("Memcached not available, using in-memory cache")
	case "redis":
		rc := cache.NewRedisCache(cache.RedisConfig{Addr: cfg.RedisAddr, DialTimeout: 500 * time.Millisecond})
		if err := rc.Ping(ctx); err == nil {
			t.Cleanup(func() { _ = rc.Close() })
			t.Logf("Using Redis cache at %s", cfg.RedisAddr)
			return rc
		}
		_ = rc.Close()
		t.Logf("Redis not available, using in-memory cache")
	}
	return cache.NewInMemoryCache(time.Minute)
}
