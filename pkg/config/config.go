package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	CORSAllowedOrigins []string

	// RedisURL enables the shared geocoder cache; empty keeps it in process
	RedisURL string

	GeocoderBaseURL   string
	GeocoderUserAgent string
	GeocoderLanguage  string
	GeocoderTimeout   time.Duration
	GeocodeCacheTTL   time.Duration
	GeocodeRateLimit  int
	GeocodeRateWindow time.Duration

	QueryCacheTTL time.Duration

	EnrichInterval  time.Duration
	EnrichBatchSize int

	AuthRequired bool
	JWTSecret    string
	JWTIssuer    string

	AuditDBPath string

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string

	SeedFile string

	OTLPEndpoint string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	geocoderTimeout, err := parseSeconds("GEOCODER_TIMEOUT_SECONDS", "5")
	if err != nil {
		return nil, err
	}
	geocodeCacheTTL, err := parseSeconds("GEOCODE_CACHE_TTL_SECONDS", "86400")
	if err != nil {
		return nil, err
	}
	geocodeRateWindow, err := parseSeconds("GEOCODE_RATE_WINDOW_SECONDS", "60")
	if err != nil {
		return nil, err
	}
	queryCacheTTL, err := parseSeconds("QUERY_CACHE_TTL_SECONDS", "30")
	if err != nil {
		return nil, err
	}
	enrichInterval, err := parseSeconds("ENRICH_INTERVAL_SECONDS", "60")
	if err != nil {
		return nil, err
	}

	geocodeRateLimit, err := strconv.Atoi(getEnv("GEOCODE_RATE_LIMIT", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid GEOCODE_RATE_LIMIT: %w", err)
	}
	enrichBatch, err := strconv.Atoi(getEnv("ENRICH_BATCH_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid ENRICH_BATCH_SIZE: %w", err)
	}
	authRequired, err := strconv.ParseBool(getEnv("AUTH_REQUIRED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_REQUIRED: %w", err)
	}

	cfg := &Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		ServerPort:         port,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		RedisURL: os.Getenv("REDIS_URL"),

		GeocoderBaseURL:   getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent: getEnv("GEOCODER_USER_AGENT", "babui-property-service/1.0"),
		GeocoderLanguage:  getEnv("GEOCODER_LANGUAGE", "en,bn"),
		GeocoderTimeout:   geocoderTimeout,
		GeocodeCacheTTL:   geocodeCacheTTL,
		GeocodeRateLimit:  geocodeRateLimit,
		GeocodeRateWindow: geocodeRateWindow,

		QueryCacheTTL: queryCacheTTL,

		EnrichInterval:  enrichInterval,
		EnrichBatchSize: enrichBatch,

		AuthRequired: authRequired,
		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTIssuer:    getEnv("JWT_ISSUER", "babui"),

		AuditDBPath: os.Getenv("AUDIT_DB_PATH"),

		MQTTBrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "babui-server"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "babui"),

		SeedFile: os.Getenv("SEED_FILE"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.AuthRequired && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when AUTH_REQUIRED=true")
	}
	return cfg, nil
}

func parseSeconds(key, defaultValue string) (time.Duration, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return time.Duration(n) * time.Second, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
