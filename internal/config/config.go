package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Stream   StreamConfig
	Archive  ArchiveConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	AccessSecret      string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// StreamConfig holds event-stream tuning
type StreamConfig struct {
	// GracePeriod is how long a user may be without stream sessions before
	// the stopped signal fires.
	GracePeriod time.Duration
	// NotifierBufferSize is how many events the notifier keeps for
	// catch-up reads.
	NotifierBufferSize int
	// DefaultLimit caps events per chunk when the client does not ask.
	DefaultLimit int
	// MaxTimeout bounds client-requested long-poll timeouts.
	MaxTimeout time.Duration
}

// ArchiveConfig holds event retention and S3 offload configuration
type ArchiveConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Retention       time.Duration
	Interval        time.Duration
	BatchSize       int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "notifyhub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			AccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
			AccessTokenExpiry: getDurationEnv("JWT_ACCESS_EXPIRY", 15*time.Minute),
			Issuer:            getEnv("JWT_ISSUER", "notifyhub"),
		},
		Stream: StreamConfig{
			GracePeriod:        getDurationEnv("STREAM_GRACE_PERIOD", 30*time.Second),
			NotifierBufferSize: getIntEnv("STREAM_NOTIFIER_BUFFER", 1000),
			DefaultLimit:       getIntEnv("STREAM_DEFAULT_LIMIT", 100),
			MaxTimeout:         getDurationEnv("STREAM_MAX_TIMEOUT", 90*time.Second),
		},
		Archive: ArchiveConfig{
			Enabled:         getBoolEnv("ARCHIVE_ENABLED", false),
			Endpoint:        getEnv("ARCHIVE_S3_ENDPOINT", ""),
			Region:          getEnv("ARCHIVE_S3_REGION", "us-east-1"),
			Bucket:          getEnv("ARCHIVE_S3_BUCKET", "notifyhub-archive"),
			AccessKeyID:     getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
			SecretAccessKey: getEnv("ARCHIVE_S3_SECRET_KEY", ""),
			UseSSL:          getBoolEnv("ARCHIVE_S3_USE_SSL", true),
			Retention:       getDurationEnv("ARCHIVE_RETENTION", 30*24*time.Hour),
			Interval:        getDurationEnv("ARCHIVE_INTERVAL", time.Hour),
			BatchSize:       getIntEnv("ARCHIVE_BATCH_SIZE", 500),
		},
	}
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv returns a duration from an environment variable or default
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getIntEnv returns an integer from an environment variable or default
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getBoolEnv returns a boolean from an environment variable or default
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
