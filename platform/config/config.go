// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RateLimitConfig provides settings for the per-IP rate limiter.
type RateLimitConfig interface {
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// RedisConfig provides settings for the lookup cache.
type RedisConfig interface {
	GetRedisURL() string
}

// GeocodingConfig provides settings for the Open-Meteo geocoding upstream.
type GeocodingConfig interface {
	GetGeocodingURL() string
	GetGeocodingCount() int
	GetGeocodingTimeout() time.Duration
	GetGeocodingCacheTTL() time.Duration
}

// WeatherConfig provides settings for the Open-Meteo forecast upstream.
type WeatherConfig interface {
	GetForecastURL() string
	GetForecastTimeout() time.Duration
}

// MetricsConfig provides settings for the Prometheus endpoint.
type MetricsConfig interface {
	GetMetricsEnabled() bool
}

// SuggestConfig provides settings for the city suggestion controller.
type SuggestConfig interface {
	GetSuggestEndpoint() string
	GetSuggestDelay() time.Duration
	GetSuggestMinChars() int
	GetSuggestMaxItems() int
	GetSuggestTimeout() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string
	HTTPAddr          string
	DatabaseURL       string
	JWTAccessSecret   string
	CORSAllowAll      bool
	CORSOrigins       []string
	CORSAllowCreds    bool
	RateLimitRPS      float64
	RateLimitBurst    int
	RedisURL          string
	GeocodingURL      string
	GeocodingCount    int
	GeocodingTimeout  time.Duration
	GeocodingCacheTTL time.Duration
	ForecastURL       string
	ForecastTimeout   time.Duration
	MetricsEnabled    bool
	SuggestEndpoint   string
	SuggestDelay      time.Duration
	SuggestMinChars   int
	SuggestMaxItems   int
	SuggestTimeout    time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RateLimitConfig implementation
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// RedisConfig implementation
func (c *Config) GetRedisURL() string { return c.RedisURL }

// GeocodingConfig implementation
func (c *Config) GetGeocodingURL() string             { return c.GeocodingURL }
func (c *Config) GetGeocodingCount() int              { return c.GeocodingCount }
func (c *Config) GetGeocodingTimeout() time.Duration  { return c.GeocodingTimeout }
func (c *Config) GetGeocodingCacheTTL() time.Duration { return c.GeocodingCacheTTL }

// WeatherConfig implementation
func (c *Config) GetForecastURL() string            { return c.ForecastURL }
func (c *Config) GetForecastTimeout() time.Duration { return c.ForecastTimeout }

// MetricsConfig implementation
func (c *Config) GetMetricsEnabled() bool { return c.MetricsEnabled }

// SuggestConfig implementation
func (c *Config) GetSuggestEndpoint() string       { return c.SuggestEndpoint }
func (c *Config) GetSuggestDelay() time.Duration   { return c.SuggestDelay }
func (c *Config) GetSuggestMinChars() int          { return c.SuggestMinChars }
func (c *Config) GetSuggestMaxItems() int          { return c.SuggestMaxItems }
func (c *Config) GetSuggestTimeout() time.Duration { return c.SuggestTimeout }

// IsAuthEnabled reports whether bearer tokens can be verified.
func (c *Config) IsAuthEnabled() bool { return c.JWTAccessSecret != "" }

// IsCacheEnabled reports whether a Redis cache is configured.
func (c *Config) IsCacheEnabled() bool { return c.RedisURL != "" }

// Load reads the API server configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.GeocodingCount < 1 || cfg.GeocodingCount > 100 {
		return nil, fmt.Errorf("GEOCODING_COUNT must be between 1 and 100, got %d", cfg.GeocodingCount)
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return cfg, nil
}

// LoadSuggest reads the configuration used by the terminal suggestion client.
// Only the SUGGEST_* settings are validated.
func LoadSuggest() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}

	if cfg.SuggestEndpoint == "" {
		return nil, fmt.Errorf("SUGGEST_ENDPOINT is required")
	}
	if cfg.SuggestMinChars < 1 {
		return nil, fmt.Errorf("SUGGEST_MIN_CHARS must be at least 1")
	}
	if cfg.SuggestDelay < 0 {
		return nil, fmt.Errorf("SUGGEST_DELAY must not be negative")
	}

	return cfg, nil
}

func read() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:8080"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTAccessSecret:   getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		CORSAllowCreds:    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RateLimitRPS:      mustFloat(getEnv("RATE_LIMIT_RPS", "10")),
		RateLimitBurst:    mustInt(getEnv("RATE_LIMIT_BURST", "20")),
		RedisURL:          getEnv("REDIS_URL", ""),
		GeocodingURL:      getEnv("GEOCODING_URL", "https://geocoding-api.open-meteo.com/v1/search"),
		GeocodingCount:    mustInt(getEnv("GEOCODING_COUNT", "5")),
		GeocodingTimeout:  mustDuration(getEnv("GEOCODING_TIMEOUT", "5s")),
		GeocodingCacheTTL: mustDuration(getEnv("GEOCODING_CACHE_TTL", "1h")),
		ForecastURL:       getEnv("FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
		ForecastTimeout:   mustDuration(getEnv("FORECAST_TIMEOUT", "10s")),
		MetricsEnabled:    strings.EqualFold(getEnv("METRICS_ENABLED", "true"), "true"),
		SuggestEndpoint:   getEnv("SUGGEST_ENDPOINT", "http://localhost:8080/search-field/"),
		SuggestDelay:      mustDuration(getEnv("SUGGEST_DELAY", "2s")),
		SuggestMinChars:   mustInt(getEnv("SUGGEST_MIN_CHARS", "2")),
		SuggestMaxItems:   mustInt(getEnv("SUGGEST_MAX_ITEMS", "7")),
		SuggestTimeout:    mustDuration(getEnv("SUGGEST_TIMEOUT", "5s")),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
