// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Notification transports.
const (
	TransportRedis = "redis"
	TransportKafka = "kafka"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Timezone for dates sent without an offset and for day filters.
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache and queue (Redis)
	RedisURL          string `env:"REDIS_URL,required"`
	RedisPoolSize     int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	RedisMinIdleConns int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`

	// Public prefix for uploaded file paths (e.g., https://cdn.example.com/files)
	FilesBaseURL string `env:"FILES_BASE_URL" envDefault:"http://localhost:8080/files"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (per user)
	RateLimitAPIEnabled bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIRPM     int  `env:"RATE_LIMIT_API_RPM" envDefault:"120"`
	RateLimitAPIBurst   int  `env:"RATE_LIMIT_API_BURST" envDefault:"20"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Notifications
	NotifyTransport      string        `env:"NOTIFY_TRANSPORT" envDefault:"redis"`
	NotifyBufferSize     int           `env:"NOTIFY_BUFFER_SIZE" envDefault:"256"`
	NotifyHandoffTimeout time.Duration `env:"NOTIFY_HANDOFF_TIMEOUT" envDefault:"50ms"`
	NotifyPublishTimeout time.Duration `env:"NOTIFY_PUBLISH_TIMEOUT" envDefault:"2s"`
	NotifyMaxAttempts    int           `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"5"`
	NotifyWorkerEnabled  bool          `env:"NOTIFY_WORKER_ENABLED" envDefault:"true"`

	// Kafka, used when NOTIFY_TRANSPORT=kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"meetapp.notifications"`

	// Mail. An empty SMTP_HOST logs mail instead of sending it.
	SMTPHost     string `env:"SMTP_HOST" envDefault:""`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME" envDefault:""`
	SMTPPassword string `env:"SMTP_PASSWORD" envDefault:""`
	MailFrom     string `env:"MAIL_FROM" envDefault:"Meetapp <noreply@meetapp.local>"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SMTPEnabled reports whether outgoing mail goes through SMTP.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	switch c.NotifyTransport {
	case TransportRedis:
	case TransportKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when NOTIFY_TRANSPORT=kafka"))
		}
		if c.KafkaTopic == "" {
			errs = append(errs, errors.New("KAFKA_TOPIC is required when NOTIFY_TRANSPORT=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("NOTIFY_TRANSPORT must be %q or %q, got %q", TransportRedis, TransportKafka, c.NotifyTransport))
	}

	if c.NotifyMaxAttempts < 1 {
		errs = append(errs, errors.New("NOTIFY_MAX_ATTEMPTS must be at least 1"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a Config.
// Variables from a .env file (or ENV_FILE) fill in anything not already set.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read env file: %w", err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
