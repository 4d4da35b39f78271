package config

import (
	"os"
	"strconv"

	"contract-lens/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort        string
	MaxFileSize       int64
	LogLevel          string
	DatabasePath      string
	MaxRecentAnalyses int
	RenderTimeoutSec  int
	APIKey            string
	SupabaseURL       string
	SupabaseKey       string
	GCPProjectID      string
	GCPLocation       string
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:        getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		MaxFileSize:       getEnvInt64OrDefault("MAX_FILE_SIZE", 10*1024*1024), // 10MB default
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		DatabasePath:      getEnvOrDefault("DATABASE_PATH", "./contract-lens.db"),
		MaxRecentAnalyses: getEnvIntOrDefault("MAX_RECENT_ANALYSES", 20),
		RenderTimeoutSec:  getEnvIntOrDefault("RENDER_TIMEOUT_SEC", 90),
		APIKey:            getEnvOrDefault("API_KEY", ""),
		SupabaseURL:       getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:       getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		GCPProjectID:      getEnvOrDefault("GCP_PROJECT_ID", ""),
		GCPLocation:       getEnvOrDefault("GCP_LOCATION", "us-central1"),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetMaxFileSize returns the maximum allowed upload size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetDatabasePath returns the local sqlite database path
func (c *AppConfig) GetDatabasePath() string {
	return c.DatabasePath
}

// GetMaxRecentAnalyses returns the cap on the recent-analyses list
func (c *AppConfig) GetMaxRecentAnalyses() int {
	return c.MaxRecentAnalyses
}

// GetRenderTimeoutSec returns the per-page render timeout in seconds
func (c *AppConfig) GetRenderTimeoutSec() int {
	return c.RenderTimeoutSec
}

// GetAPIKey returns the API key required by the middleware (empty disables auth)
func (c *AppConfig) GetAPIKey() string {
	return c.APIKey
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetGCPProjectID returns the Google Cloud project used for Vertex AI
func (c *AppConfig) GetGCPProjectID() string {
	return c.GCPProjectID
}

// GetGCPLocation returns the Vertex AI location
func (c *AppConfig) GetGCPLocation() string {
	return c.GCPLocation
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
