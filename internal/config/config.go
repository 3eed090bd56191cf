package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Lock      LockConfig
	Kafka     KafkaConfig
	Hub       HubConfig
	Auth      AuthConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Viewer    ViewerConfig
}

// ServerConfig has no write timeout; the stream routes keep responses open
// and set per-frame deadlines themselves.
type ServerConfig struct {
	Port        string
	ReadTimeout time.Duration
	IdleTimeout time.Duration
	CORSOrigins []string
}

type DatabaseConfig struct {
	Driver        string // postgres or sqlite
	PostgresDSN   string
	SQLitePath    string
	AutoMigrate   bool
	MigrationsDir string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LockConfig selects how check-ins on the same table are serialized.
type LockConfig struct {
	Backend       string // memory or redis
	TTL           time.Duration
	RetryInterval time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type HubConfig struct {
	SessionBuffer int
	PingInterval  time.Duration
	WriteTimeout  time.Duration
}

// AuthConfig selects the token verifier. OIDCIssuer wins over JWTSecret;
// with neither set the realtime routes are open.
type AuthConfig struct {
	OIDCIssuer string
	JWTSecret  string
}

type LogConfig struct {
	Level string
	Dir   string
}

type TelemetryConfig struct {
	Endpoint string
	Insecure bool
}

type ViewerConfig struct {
	BaseURL      string
	PollInterval time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", ":8001"),
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
			CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			Driver:        strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			PostgresDSN:   getEnv("POSTGRES_DSN", ""),
			SQLitePath:    getEnv("SQLITE_PATH", "file:checkin.db?cache=shared"),
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", true),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Lock: LockConfig{
			Backend:       strings.ToLower(getEnv("LOCK_BACKEND", "memory")),
			TTL:           getEnvDuration("LOCK_TTL_SECONDS", 10, time.Second),
			RetryInterval: getEnvDuration("LOCK_RETRY_MS", 25, time.Millisecond),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_TOPIC", "checkin.events"),
		},
		Hub: HubConfig{
			SessionBuffer: getEnvInt("HUB_SESSION_BUFFER", 32),
			PingInterval:  getEnvDuration("WS_PING_SECONDS", 30, time.Second),
			WriteTimeout:  10 * time.Second,
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
			JWTSecret:  getEnv("AUTH_JWT_SECRET", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Dir:   getEnv("LOG_DIR", "logs"),
		},
		Telemetry: TelemetryConfig{
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
		Viewer: ViewerConfig{
			BaseURL:      getEnv("VIEWER_BASE_URL", "http://localhost:8001"),
			PollInterval: getEnvDuration("VIEWER_POLL_SECONDS", 5, time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration reads an integer count of unit; non-positive values fall back to the default.
func getEnvDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	n := getEnvInt(key, defaultValue)
	if n <= 0 {
		n = defaultValue
	}
	return time.Duration(n) * unit
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
