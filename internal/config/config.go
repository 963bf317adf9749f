package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	GeocodingAPIKey  string
	GeocodingAPIURL  string
	GeocodingCountry string

	CurrentWeatherURL    string
	HistoricalWeatherURL string

	APITimeout     time.Duration
	RequestTimeout time.Duration
	LiveWeatherTTL time.Duration

	MaxPostalCodeLength int

	CacheBackend string // "in_memory", "memcached" or "redis"

	InMemoryCleanupInterval time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration

	StoreDriver string // "sqlite" or "postgres"
	StoreDSN    string

	RateLimitRPS   int
	RateLimitBurst int

	BreakerEnabled          bool
	BreakerFailureThreshold int
	BreakerHalfOpenRequests int
	BreakerTimeout          time.Duration

	ShutdownTimeout time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Geocoding struct {
		URL     string `yaml:"url"`
		Country string `yaml:"country"`
	} `yaml:"geocoding"`

	Weather struct {
		CurrentURL    string `yaml:"current_url"`
		HistoricalURL string `yaml:"historical_url"`
		LiveTTL       string `yaml:"live_ttl"`
	} `yaml:"weather"`

	API struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`

	Request struct {
		Timeout             string `yaml:"timeout"`
		MaxPostalCodeLength int    `yaml:"max_pincode_length"`
	} `yaml:"request"`

	Cache struct {
		Backend  string `yaml:"backend"`
		InMemory struct {
			CleanupInterval string `yaml:"cleanup_interval"`
		} `yaml:"in_memory"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr    string `yaml:"addr"`
			DB      int    `yaml:"db"`
			Timeout string `yaml:"timeout"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Store struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			HalfOpenRequests int    `yaml:"half_open_requests"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

type secretsFile struct {
	GeocodingAPIKey string `yaml:"geocoding_api_key"`
	RedisPassword   string `yaml:"redis_password"`
	StoreDSN        string `yaml:"store_dsn"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// The geocoding key comes from GEOCODING_API_KEY env or the secrets file. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.ServerPort = orDefault(fc.Server.Port, "8080")

	cfg.GeocodingAPIKey = firstNonEmpty(os.Getenv("GEOCODING_API_KEY"), sec.GeocodingAPIKey)
	if cfg.GeocodingAPIKey == "" {
		return nil, fmt.Errorf("GEOCODING_API_KEY required (set env or config/secrets.yaml geocoding_api_key)")
	}
	cfg.GeocodingAPIURL = orDefault(fc.Geocoding.URL, "https://api.openweathermap.org/geo/1.0/zip")
	cfg.GeocodingCountry = strings.ToUpper(orDefault(fc.Geocoding.Country, "IN"))

	cfg.CurrentWeatherURL = orDefault(fc.Weather.CurrentURL, "https://api.open-meteo.com/v1/forecast")
	cfg.HistoricalWeatherURL = orDefault(fc.Weather.HistoricalURL, "https://archive-api.open-meteo.com/v1/archive")
	cfg.LiveWeatherTTL = parseDuration(fc.Weather.LiveTTL, 5*time.Minute)

	cfg.APITimeout = parseDurationOrZero(fc.API.Timeout, 2*time.Second)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.MaxPostalCodeLength = fc.Request.MaxPostalCodeLength
	if cfg.MaxPostalCodeLength <= 0 {
		cfg.MaxPostalCodeLength = 16
	}

	cfg.CacheBackend = strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, "in_memory"))
	cfg.InMemoryCleanupInterval = parseDuration(fc.Cache.InMemory.CleanupInterval, 10*time.Minute)
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.RedisAddr = firstNonEmpty(os.Getenv("REDIS_ADDR"), fc.Cache.Redis.Addr, "localhost:6379")
	cfg.RedisPassword = firstNonEmpty(os.Getenv("REDIS_PASSWORD"), sec.RedisPassword)
	cfg.RedisDB = fc.Cache.Redis.DB
	cfg.RedisTimeout = parseDuration(fc.Cache.Redis.Timeout, 500*time.Millisecond)

	cfg.StoreDriver = strings.ToLower(firstNonEmpty(os.Getenv("STORE_DRIVER"), fc.Store.Driver, "sqlite"))
	cfg.StoreDSN = firstNonEmpty(os.Getenv("STORE_DSN"), sec.StoreDSN, fc.Store.DSN)
	if cfg.StoreDSN == "" && cfg.StoreDriver == "sqlite" {
		cfg.StoreDSN = "file:pincode_weather.db?cache=shared"
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cb := fc.Reliability.CircuitBreaker
	cfg.BreakerEnabled = true
	if cb.Enabled != nil {
		cfg.BreakerEnabled = *cb.Enabled
	}
	cfg.BreakerFailureThreshold = cb.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerHalfOpenRequests = cb.HalfOpenRequests
	if cfg.BreakerHalfOpenRequests <= 0 {
		cfg.BreakerHalfOpenRequests = 1
	}
	cfg.BreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecrets reads the optional secrets file. A missing file yields empty secrets.
func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is so validate can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects a non-positive API timeout and unknown backends or drivers. RequestTimeout
// is raised above APITimeout when needed so a remote call can finish inside a request.
func validate(cfg *Config) error {
	if cfg.APITimeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.APITimeout {
		cfg.RequestTimeout = cfg.APITimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached", "redis":
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}
	switch cfg.StoreDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", cfg.StoreDriver)
	}
	if cfg.StoreDSN == "" {
		return fmt.Errorf("store.dsn required for driver %q (set STORE_DSN or config)", cfg.StoreDriver)
	}
	return nil
}
