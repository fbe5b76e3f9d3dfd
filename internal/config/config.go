package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Push      PushConfig
	Realtime  RealtimeConfig
	Delivery  DeliveryConfig
	Messaging MessagingConfig
	Blob      BlobConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Environment    string // "development", "production", "test"
	LogLevel       string
	MetricsEnabled bool
	AllowedOrigins []string // websocket origins; empty allows any
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type PushConfig struct {
	Provider     string // "redis", "email", "console"
	QueueKey     string
	ResendAPIKey string
	FromAddress  string
	RatePerSec   float64
	Burst        int
}

type RealtimeConfig struct {
	Provider string // "redis", "local"
}

type DeliveryConfig struct {
	SweepInterval time.Duration
	BatchSize     int
}

type MessagingConfig struct {
	SeparatorGap time.Duration
}

type BlobConfig struct {
	Dir     string
	BaseURL string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			Environment:    getEnv("APP_ENV", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "penpals"),
			Password: getEnv("DB_PASSWORD", "penpals"),
			DBName:   getEnv("DB_NAME", "penpals"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		Push: PushConfig{
			Provider:     getEnv("PUSH_PROVIDER", "console"),
			QueueKey:     getEnv("PUSH_QUEUE_KEY", "push:alerts"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("PUSH_FROM_ADDRESS", "Penpals <noreply@penpals.app>"),
			RatePerSec:   getEnvFloat("PUSH_RATE_PER_SEC", 50),
			Burst:        getEnvInt("PUSH_BURST", 100),
		},
		Realtime: RealtimeConfig{
			Provider: getEnv("REALTIME_PROVIDER", "redis"),
		},
		Delivery: DeliveryConfig{
			SweepInterval: getEnvDuration("DELIVERY_SWEEP_INTERVAL", time.Minute),
			BatchSize:     getEnvInt("DELIVERY_BATCH_SIZE", 100),
		},
		Messaging: MessagingConfig{
			SeparatorGap: getEnvDuration("MESSAGE_SEPARATOR_GAP", 15*time.Minute),
		},
		Blob: BlobConfig{
			Dir:     getEnv("BLOB_DIR", "data/blobs"),
			BaseURL: getEnv("BLOB_BASE_URL", "http://localhost:8080/blobs"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Environment() == "production" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required in production")
	}
	if c.Delivery.SweepInterval <= 0 {
		return fmt.Errorf("DELIVERY_SWEEP_INTERVAL must be positive")
	}
	if c.Delivery.BatchSize <= 0 {
		return fmt.Errorf("DELIVERY_BATCH_SIZE must be positive")
	}
	switch c.Push.Provider {
	case "redis", "email", "console":
	default:
		return fmt.Errorf("unsupported PUSH_PROVIDER %q", c.Push.Provider)
	}
	switch c.Realtime.Provider {
	case "redis", "local":
	default:
		return fmt.Errorf("unsupported REALTIME_PROVIDER %q", c.Realtime.Provider)
	}
	return nil
}

func (c *Config) Environment() string {
	return c.Server.Environment
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
