package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds process configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Cache     CacheConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig

	AdminTokens   []AdminToken
	ClientAPIKeys []string
}

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
	CacheBackendNone   = "none"
)

type CacheConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// TelemetryConfig drives logging verbosity and OTLP export.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OTLPEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

type RateLimitConfig struct {
	Enabled     bool
	ClientRate  float64
	ClientBurst int
}

// AdminToken maps a bearer token to the editor it authenticates.
type AdminToken struct {
	EditorID string
	Role     string
	Token    string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "paramstore"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OTLPEnabled:   getenvBool("OTEL_ENABLED", true),
			OTLPEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OTLPProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "paramstore"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Cache: CacheConfig{
			Backend:       normalizeCacheBackend(getenv("CACHE_BACKEND", CacheBackendRedis)),
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: parseList(getenv("KAFKA_BROKERS", "")),
			Topic:   getenv("KAFKA_PARAMETER_TOPIC", "paramstore.parameter.changed"),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getenvBool("RATE_LIMIT_ENABLED", false),
			ClientRate:  getenvFloat("RATE_LIMIT_CLIENT_RATE", 20),
			ClientBurst: getenvInt("RATE_LIMIT_CLIENT_BURST", 40),
		},

		AdminTokens:   parseAdminTokens(getenv("ADMIN_TOKENS", "")),
		ClientAPIKeys: parseList(getenv("CLIENT_API_KEYS", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func normalizeCacheBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CacheBackendMemory:
		return CacheBackendMemory
	case CacheBackendNone, "off", "disabled":
		return CacheBackendNone
	default:
		return CacheBackendRedis
	}
}

// parseAdminTokens reads "editorId:role:token" triples separated by commas.
func parseAdminTokens(raw string) []AdminToken {
	out := make([]AdminToken, 0)
	for _, entry := range parseList(raw) {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			log.Printf("[config] ignoring malformed admin token entry")
			continue
		}
		token := AdminToken{
			EditorID: strings.TrimSpace(parts[0]),
			Role:     strings.ToLower(strings.TrimSpace(parts[1])),
			Token:    strings.TrimSpace(parts[2]),
		}
		if token.EditorID == "" || token.Role == "" || token.Token == "" {
			log.Printf("[config] ignoring incomplete admin token entry")
			continue
		}
		out = append(out, token)
	}
	return out
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
