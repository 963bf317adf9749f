package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/pincode-weather-service/internal/cache"
	"github.com/kjstillabower/pincode-weather-service/internal/client"
	"github.com/kjstillabower/pincode-weather-service/internal/config"
	httphandler "github.com/kjstillabower/pincode-weather-service/internal/http"
	"github.com/kjstillabower/pincode-weather-service/internal/lifecycle"
	"github.com/kjstillabower/pincode-weather-service/internal/observability"
	"github.com/kjstillabower/pincode-weather-service/internal/service"
	"github.com/kjstillabower/pincode-weather-service/internal/store"
	"github.com/kjstillabower/pincode-weather-service/internal/traffic"
)

const inFlightCheckInterval = 50 * time.Millisecond

// cacheBackend is the cache surface main needs beyond lookups.
type cacheBackend interface {
	cache.Cache
	cache.Pinger
	Close() error
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, ".env: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	breaker := client.BreakerConfig{
		Enabled:          cfg.BreakerEnabled,
		FailureThreshold: cfg.BreakerFailureThreshold,
		HalfOpenRequests: cfg.BreakerHalfOpenRequests,
		Timeout:          cfg.BreakerTimeout,
	}
	geocoder, err := client.NewGeocodingClient(cfg.GeocodingAPIKey, cfg.GeocodingAPIURL, cfg.GeocodingCountry, cfg.APITimeout, breaker)
	if err != nil {
		logger.Fatal("geocoding client", zap.Error(err))
	}
	weatherAPI, err := client.NewOpenMeteoClient(cfg.CurrentWeatherURL, cfg.HistoricalWeatherURL, cfg.APITimeout, breaker)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if cfg.BreakerEnabled {
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.BreakerFailureThreshold),
			zap.Duration("timeout", cfg.BreakerTimeout))
	}

	cacheSvc, err := newCache(cfg)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend))

	db, err := store.Open(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		logger.Fatal("store open", zap.Error(err))
	}
	repo, err := store.New(db)
	if err != nil {
		logger.Fatal("store migrate", zap.Error(err))
	}
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	locations := service.NewLocationResolver(cacheSvc, repo, geocoder)
	weather := service.NewWeatherResolver(locations, cacheSvc, repo, weatherAPI, cfg.LiveWeatherTTL)

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		CachePing:        cacheSvc.Ping,
		StorePing:        repo.Ping,
	}
	tracker := traffic.New()
	handler := httphandler.NewHandler(weather, locations, healthConfig, tracker, logger, cfg.MaxPostalCodeLength)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := cacheSvc.Close(); err != nil {
		logger.Error("cache close", zap.Error(err))
	}
	if err := repo.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
}

// newCache builds the configured cache backend.
func newCache(cfg *config.Config) (cacheBackend, error) {
	switch cfg.CacheBackend {
	case "memcached":
		return cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
	case "redis":
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  cfg.RedisTimeout,
			ReadTimeout:  cfg.RedisTimeout,
			WriteTimeout: cfg.RedisTimeout,
		}), nil
	case "in_memory", "":
		return cache.NewInMemoryCache(cfg.InMemoryCleanupInterval), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}
