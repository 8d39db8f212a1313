package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Auth     AuthConfig
	Dispatch DispatchConfig
	Realtime RealtimeConfig
	Kafka    KafkaConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns   int
	MaxIdleConns   int
	Migrate        bool // apply migrations on startup
	MigrationsPath string
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the postgres:// form used by golang-migrate.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Fanout   bool // deliver broadcasts across replicas via pub/sub
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// AuthConfig holds credential verification settings.
type AuthConfig struct {
	JWTSecret        string
	Issuer           string
	HandshakeTimeout time.Duration
}

// DispatchConfig holds ride dispatch policy.
type DispatchConfig struct {
	MaxRadiusKm    float64
	MinutesPerKm   float64
	LockTTL        time.Duration
	NearbyRadiusKm float64
}

// RealtimeConfig holds websocket session tuning.
type RealtimeConfig struct {
	SendBuffer   int
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
	MaxMessage   int64
}

// KafkaConfig holds the audit and location stream configuration.
// An empty broker list disables Kafka and audit records are only logged.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	LocationTopic string
}

// Enabled reports whether any broker is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string
	ServiceName string
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
			AllowedOrigins:  splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ryde"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 25),
			Migrate:        getBoolEnv("DB_MIGRATE", false),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Fanout:   getBoolEnv("REDIS_FANOUT", false),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ryde-dispatch"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", ""),
			Issuer:           getEnv("JWT_ISSUER", "ryde"),
			HandshakeTimeout: getDurationEnv("WS_HANDSHAKE_TIMEOUT", 5*time.Second),
		},
		Dispatch: DispatchConfig{
			MaxRadiusKm:    getFloatEnv("DISPATCH_MAX_RADIUS_KM", 50),
			MinutesPerKm:   getFloatEnv("DISPATCH_MINUTES_PER_KM", 2),
			LockTTL:        getDurationEnv("DISPATCH_LOCK_TTL", 5*time.Minute),
			NearbyRadiusKm: getFloatEnv("NEARBY_DEFAULT_RADIUS_KM", 5),
		},
		Realtime: RealtimeConfig{
			SendBuffer:   getIntEnv("WS_SEND_BUFFER", 64),
			WriteWait:    getDurationEnv("WS_WRITE_WAIT", 10*time.Second),
			PongWait:     getDurationEnv("WS_PONG_WAIT", 60*time.Second),
			PingInterval: getDurationEnv("WS_PING_INTERVAL", 50*time.Second),
			MaxMessage:   int64(getIntEnv("WS_MAX_MESSAGE_BYTES", 64*1024)),
		},
		Kafka: KafkaConfig{
			Brokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			AuditTopic:    getEnv("KAFKA_AUDIT_TOPIC", "ride-audit"),
			LocationTopic: getEnv("KAFKA_LOCATION_TOPIC", "driver-locations"),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			ServiceName: getEnv("SERVICE_NAME", "ryde-dispatch"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks the values the dispatch core cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.Dispatch.MaxRadiusKm <= 0 {
		errs = append(errs, errors.New("DISPATCH_MAX_RADIUS_KM must be > 0"))
	}
	if c.Dispatch.MinutesPerKm < 0 {
		errs = append(errs, errors.New("DISPATCH_MINUTES_PER_KM must be >= 0"))
	}
	if c.Auth.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("WS_HANDSHAKE_TIMEOUT must be > 0"))
	}
	if c.Realtime.SendBuffer <= 0 {
		errs = append(errs, errors.New("WS_SEND_BUFFER must be > 0"))
	}
	if c.Realtime.PingInterval >= c.Realtime.PongWait {
		errs = append(errs, errors.New("WS_PING_INTERVAL must be shorter than WS_PONG_WAIT"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := cast.ToIntE(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := cast.ToFloat64E(value); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := cast.ToBoolE(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := cast.ToDurationE(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitAndTrim(v string) []string {
	if v == "" {
		return nil
	}
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
