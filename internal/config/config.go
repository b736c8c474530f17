package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Redis notification channel
	Redis RedisConfig

	// Uploaded document storage
	Storage StorageConfig

	// Booking engine limits
	Booking BookingConfig

	// Background jobs
	Jobs JobsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// RedisConfig configures the notification publisher. An empty URL logs
// notifications instead of publishing them.
type RedisConfig struct {
	URL                 string
	NotificationChannel string
}

// StorageConfig holds document upload configuration
type StorageConfig struct {
	DocumentDir    string
	MaxUploadBytes int64
}

// BookingConfig holds booking engine limits
type BookingConfig struct {
	GlobalFeaturedCap   int
	CategoryFeaturedCap int
	Currency            string
	NotifyTimeout       time.Duration

	// Guest booking requests per client IP; zero disables the limit
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// JobsConfig holds cron specs for background jobs
type JobsConfig struct {
	RefundReconcileSpec string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Issuer:            getEnv("JWT_ISSUER", "propertyhub"),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Redis: RedisConfig{
			URL:                 getEnv("REDIS_URL", ""),
			NotificationChannel: getEnv("REDIS_NOTIFICATION_CHANNEL", "booking-notifications"),
		},
		Storage: StorageConfig{
			DocumentDir:    getEnv("DOCUMENT_DIR", "./uploads"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10<<20)),
		},
		Booking: BookingConfig{
			GlobalFeaturedCap:   getEnvAsInt("FEATURED_GLOBAL_CAP", 9),
			CategoryFeaturedCap: getEnvAsInt("FEATURED_CATEGORY_CAP", 3),
			Currency:            getEnv("BOOKING_CURRENCY", "USD"),
			NotifyTimeout:       time.Duration(getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 5)) * time.Second,
			RateLimitRequests:   getEnvAsInt("BOOKING_RATE_LIMIT", 20),
			RateLimitWindow:     time.Duration(getEnvAsInt("BOOKING_RATE_WINDOW_SECONDS", 60)) * time.Second,
		},
		Jobs: JobsConfig{
			RefundReconcileSpec: getEnv("REFUND_RECONCILE_SPEC", "0 * * * *"),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Booking.GlobalFeaturedCap < 1 || c.Booking.CategoryFeaturedCap < 1 {
		return fmt.Errorf("featured caps must be positive")
	}

	if c.Booking.CategoryFeaturedCap > c.Booking.GlobalFeaturedCap {
		return fmt.Errorf("FEATURED_CATEGORY_CAP (%d) cannot exceed FEATURED_GLOBAL_CAP (%d)",
			c.Booking.CategoryFeaturedCap, c.Booking.GlobalFeaturedCap)
	}

	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid integer value, using default: %d", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
