package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Comment widget configuration
	Widget WidgetConfig

	// Live subscription listener configuration
	Realtime RealtimeConfig

	// Third-party discussion widget configuration
	Giscus GiscusConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MigrationsPath  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// WidgetConfig holds comment list and composer settings
type WidgetConfig struct {
	PlaceholderAuthor string
	TimeFormat        string
	Timezone          string
	MaxBodyRunes      int
	SnapshotLimit     int
	SessionCookieName string
	SessionTTL        time.Duration
	SubmitTimeout     time.Duration
	LoadOnClick       bool
}

// RealtimeConfig holds pq.Listener reconnect settings
type RealtimeConfig struct {
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
}

// GiscusConfig holds the embedded discussion widget attributes.
// Mapping is always "pathname".
type GiscusConfig struct {
	Repo             string
	RepoID           string
	Category         string
	CategoryID       string
	Theme            string
	Lang             string
	ReactionsEnabled bool
	EmitMetadata     bool
	InputPosition    string
	Loading          string
}

// Enabled reports whether enough is configured to render the widget
func (g GiscusConfig) Enabled() bool {
	return g.Repo != "" && g.RepoID != ""
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 0), // SSE streams stay open
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "blog_comments"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Widget: WidgetConfig{
			PlaceholderAuthor: getEnv("COMMENT_PLACEHOLDER_AUTHOR", "Anonymous"),
			TimeFormat:        getEnv("COMMENT_TIME_FORMAT", "2006-01-02 15:04:05"),
			Timezone:          getEnv("COMMENT_TIMEZONE", "Local"),
			MaxBodyRunes:      getIntEnv("COMMENT_MAX_BODY_RUNES", 2000),
			SnapshotLimit:     getIntEnv("COMMENT_SNAPSHOT_LIMIT", 500),
			SessionCookieName: getEnv("SESSION_COOKIE_NAME", "comment_session"),
			SessionTTL:        getDurationEnv("SESSION_TTL", 30*24*time.Hour),
			SubmitTimeout:     getDurationEnv("COMMENT_SUBMIT_TIMEOUT", 10*time.Second),
			LoadOnClick:       getBoolEnv("COMMENT_LOAD_ON_CLICK", false),
		},
		Realtime: RealtimeConfig{
			MinReconnectInterval: getDurationEnv("LISTENER_MIN_RECONNECT", 10*time.Second),
			MaxReconnectInterval: getDurationEnv("LISTENER_MAX_RECONNECT", time.Minute),
			PingInterval:         getDurationEnv("LISTENER_PING_INTERVAL", 90*time.Second),
		},
		Giscus: GiscusConfig{
			Repo:             getEnv("GISCUS_REPO", os.Getenv("NEXT_PUBLIC_GISCUS_REPO")),
			RepoID:           getEnv("GISCUS_REPOSITORY_ID", os.Getenv("NEXT_PUBLIC_GISCUS_REPOSITORY_ID")),
			Category:         getEnv("GISCUS_CATEGORY", os.Getenv("NEXT_PUBLIC_GISCUS_CATEGORY")),
			CategoryID:       getEnv("GISCUS_CATEGORY_ID", os.Getenv("NEXT_PUBLIC_GISCUS_CATEGORY_ID")),
			Theme:            getEnv("GISCUS_THEME", "preferred_color_scheme"),
			Lang:             getEnv("GISCUS_LANG", "en"),
			ReactionsEnabled: getBoolEnv("GISCUS_REACTIONS_ENABLED", true),
			EmitMetadata:     getBoolEnv("GISCUS_EMIT_METADATA", false),
			InputPosition:    getEnv("GISCUS_INPUT_POSITION", "top"),
			Loading:          getEnv("GISCUS_LOADING", "lazy"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Widget.MaxBodyRunes <= 0 {
		return fmt.Errorf("COMMENT_MAX_BODY_RUNES must be positive")
	}
	if c.Widget.SnapshotLimit <= 0 {
		return fmt.Errorf("COMMENT_SNAPSHOT_LIMIT must be positive")
	}
	if c.Widget.SessionCookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME is required")
	}
	if _, err := c.Widget.Location(); err != nil {
		return fmt.Errorf("COMMENT_TIMEZONE is invalid: %w", err)
	}
	if c.Realtime.MinReconnectInterval > c.Realtime.MaxReconnectInterval {
		return fmt.Errorf("LISTENER_MIN_RECONNECT must not exceed LISTENER_MAX_RECONNECT")
	}
	return nil
}

// Location resolves the configured display timezone
func (w WidgetConfig) Location() (*time.Location, error) {
	if w.Timezone == "" || w.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(w.Timezone)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
