package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// WeightsConfig carries the default recommendation weights.
type WeightsConfig struct {
	Category      float64
	Accessibility float64
	Distance      float64
	Rating        float64
}

// OverpassConfig describes how the external map-data endpoint is reached.
type OverpassConfig struct {
	URL        string
	Timeout    time.Duration
	UseIDToken bool
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	Port            string
	Overpass        OverpassConfig
	DefaultRadius   float64
	PhoneRegion     string
	RateLimitNearby RateLimitConfig
	Weights         WeightsConfig
	LogLevel        string
	LogFormat       string
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
		Port:        getEnv("PORT", "8080"),
		Overpass: OverpassConfig{
			URL: strings.TrimRight(getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"), "/"),
		},
		PhoneRegion: strings.ToUpper(getEnv("PHONE_REGION", "DE")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}

	timeout, err := parseDuration(getEnv("OVERPASS_TIMEOUT", "25s"))
	if err != nil {
		return nil, fmt.Errorf("invalid OVERPASS_TIMEOUT value: %w", err)
	}
	cfg.Overpass.Timeout = timeout

	useIDToken, err := strconv.ParseBool(getEnv("OVERPASS_ID_TOKEN", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid OVERPASS_ID_TOKEN value: %w", err)
	}
	cfg.Overpass.UseIDToken = useIDToken

	radius, err := strconv.ParseFloat(getEnv("DEFAULT_RADIUS", "1000"), 64)
	if err != nil || !finite(radius) || radius <= 0 {
		return nil, fmt.Errorf("invalid DEFAULT_RADIUS value: %q", os.Getenv("DEFAULT_RADIUS"))
	}
	cfg.DefaultRadius = radius

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_NEARBY", "30/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_NEARBY value: %w", err)
	}
	cfg.RateLimitNearby = rl

	weights, err := parseWeights(getEnv("RECOMMEND_WEIGHTS", "8,2,1,3"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECOMMEND_WEIGHTS value: %w", err)
	}
	cfg.Weights = weights

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

// parseWeights reads "category,accessibility,distance,rating".
func parseWeights(value string) (WeightsConfig, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return WeightsConfig{}, fmt.Errorf("expected 4 comma separated weights, got %q", value)
	}

	values := make([]float64, len(parts))
	for i, part := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || !finite(w) || w < 0 {
			return WeightsConfig{}, fmt.Errorf("invalid weight %q", part)
		}
		values[i] = w
	}

	return WeightsConfig{
		Category:      values[0],
		Accessibility: values[1],
		Distance:      values[2],
		Rating:        values[3],
	}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseDuration(input string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(input))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
