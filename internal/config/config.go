// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissing is returned when a required setting is absent
var ErrMissing = errors.New("missing required configuration")

// Config holds all application configuration
type Config struct {
	Environment   string
	Server        ServerConfig
	Database      DatabaseConfig
	NATS          NATSConfig
	Stream        StreamConfig
	Filter        FilterConfig
	Twitter       TwitterConfig
	TextAnalytics TextAnalyticsConfig
	Worker        WorkerConfig
}

// ServerConfig holds dashboard server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
	RecentLimit     int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// NATSConfig holds NATS configuration. An empty URL disables the event bus.
type NATSConfig struct {
	URL            string
	Subject        string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// StreamConfig holds the filtered stream subscription
type StreamConfig struct {
	Keywords     []string
	Users        []string
	Language     string
	FilterLevel  string
	RestartDelay time.Duration
}

// FilterConfig holds the eligibility thresholds
type FilterConfig struct {
	MinFollowers       int
	MinAccountAgeMonth int
}

// TwitterConfig holds platform credentials
type TwitterConfig struct {
	APIKey          string
	APISecret       string
	AccessToken     string
	AccessSecret    string
	BearerToken     string
	Host            string
	AccountID       string
	ReactionTimeout time.Duration

	// ReactionInterval spaces likes and retweets of the acting account; zero disables it
	ReactionInterval time.Duration
}

// TextAnalyticsConfig holds the text analysis service settings
type TextAnalyticsConfig struct {
	Endpoint   string
	Key        string
	Language   string
	Timeout    time.Duration
	MaxRetries int
}

// WorkerConfig holds worker process settings
type WorkerConfig struct {
	MetricsAddr     string
	ShutdownTimeout time.Duration
}

// LoadEnvFiles loads .env and .env.dev into the process environment when present
// and returns the files that were read.
func LoadEnvFiles() ([]string, error) {
	var loaded []string
	for _, file := range []string{".env", ".env.dev"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			return loaded, fmt.Errorf("error loading %s: %w", file, err)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
			RecentLimit:     getEnvAsInt("DASHBOARD_RECENT_LIMIT", 5),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", ""),
			Subject:        getEnv("NATS_SUBJECT", "sentiment"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Stream: StreamConfig{
			Keywords:     getEnvAsSlice("HASHTAGS", nil),
			Users:        getEnvAsSlice("USERS", nil),
			Language:     getEnv("STREAM_LANGUAGE", "en"),
			FilterLevel:  getEnv("STREAM_FILTER_LEVEL", "none"),
			RestartDelay: getEnvAsDuration("STREAM_RESTART_DELAY", 1*time.Second),
		},
		Filter: FilterConfig{
			MinFollowers:       getEnvAsInt("FILTER_MIN_FOLLOWERS", 100),
			MinAccountAgeMonth: getEnvAsInt("FILTER_MIN_ACCOUNT_AGE_MONTHS", 1),
		},
		Twitter: TwitterConfig{
			APIKey:           getEnv("TWITTER_API_KEY", ""),
			APISecret:        getEnv("TWITTER_API_SECRET", ""),
			AccessToken:      getEnv("TWITTER_ACCESS_TOKEN", ""),
			AccessSecret:     getEnv("TWITTER_ACCESS_SECRET", ""),
			BearerToken:      getEnv("TWITTER_BEARER_TOKEN", ""),
			Host:             getEnv("TWITTER_API_HOST", "https://api.twitter.com"),
			AccountID:        getEnv("TWITTER_ACCOUNT_ID", ""),
			ReactionTimeout:  getEnvAsDuration("REACTION_TIMEOUT", 15*time.Second),
			ReactionInterval: getEnvAsDuration("REACTION_INTERVAL", 0),
		},
		TextAnalytics: TextAnalyticsConfig{
			Endpoint:   getEnv("TEXT_ANALYTICS_URI", ""),
			Key:        getEnv("TEXT_ANALYTICS_KEY", ""),
			Language:   getEnv("TEXT_ANALYTICS_LANGUAGE", "en"),
			Timeout:    getEnvAsDuration("TEXT_ANALYTICS_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvAsInt("TEXT_ANALYTICS_MAX_RETRIES", 2),
		},
		Worker: WorkerConfig{
			MetricsAddr:     getEnv("WORKER_METRICS_ADDR", ""),
			ShutdownTimeout: getEnvAsDuration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
	}

	return config, validate(config)
}

// validate checks values that are invalid for every command
func validate(config Config) error {
	if config.Server.RecentLimit <= 0 {
		return fmt.Errorf("DASHBOARD_RECENT_LIMIT must be positive, got %d", config.Server.RecentLimit)
	}
	if config.Filter.MinFollowers < 0 {
		return fmt.Errorf("FILTER_MIN_FOLLOWERS must not be negative, got %d", config.Filter.MinFollowers)
	}
	if config.Filter.MinAccountAgeMonth < 0 {
		return fmt.Errorf("FILTER_MIN_ACCOUNT_AGE_MONTHS must not be negative, got %d", config.Filter.MinAccountAgeMonth)
	}
	return nil
}

// ValidateWorker checks every setting the stream worker needs
func (c Config) ValidateWorker() error {
	return requireAll(map[string]string{
		"DATABASE_URL":          c.Database.URL,
		"TWITTER_API_KEY":       c.Twitter.APIKey,
		"TWITTER_API_SECRET":    c.Twitter.APISecret,
		"TWITTER_ACCESS_TOKEN":  c.Twitter.AccessToken,
		"TWITTER_ACCESS_SECRET": c.Twitter.AccessSecret,
		"TWITTER_BEARER_TOKEN":  c.Twitter.BearerToken,
		"TEXT_ANALYTICS_URI":    c.TextAnalytics.Endpoint,
		"TEXT_ANALYTICS_KEY":    c.TextAnalytics.Key,
		"HASHTAGS":              strings.Join(c.Stream.Keywords, ","),
	})
}

// ValidateDashboard checks every setting the dashboard needs
func (c Config) ValidateDashboard() error {
	return requireAll(map[string]string{
		"DATABASE_URL": c.Database.URL,
	})
}

func requireAll(values map[string]string) error {
	var missing []string
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated value, trimming blanks and dropping empty items
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
