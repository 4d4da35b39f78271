package config

import "testing"

func TestConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "SERVER_PORT", "MAX_FILE_SIZE", "LOG_LEVEL", "DATABASE_PATH",
		"MAX_RECENT_ANALYSES", "RENDER_TIMEOUT_SEC", "API_KEY", "GCP_LOCATION",
	} {
		t.Setenv(key, "")
	}

	cfg := NewConfig()

	if cfg.GetServerPort() != "8080" {
		t.Errorf("default port = %s, want 8080", cfg.GetServerPort())
	}
	if cfg.GetMaxFileSize() != 10*1024*1024 {
		t.Errorf("default max file size = %d, want 10MB", cfg.GetMaxFileSize())
	}
	if cfg.GetLogLevel() != "info" {
		t.Errorf("default log level = %s, want info", cfg.GetLogLevel())
	}
	if cfg.GetDatabasePath() != "./contract-lens.db" {
		t.Errorf("default database path = %s", cfg.GetDatabasePath())
	}
	if cfg.GetMaxRecentAnalyses() != 20 {
		t.Errorf("default max recent = %d, want 20", cfg.GetMaxRecentAnalyses())
	}
	if cfg.GetRenderTimeoutSec() != 90 {
		t.Errorf("default render timeout = %d, want 90", cfg.GetRenderTimeoutSec())
	}
	if cfg.GetAPIKey() != "" {
		t.Errorf("default API key should be empty, got %q", cfg.GetAPIKey())
	}
	if cfg.GetGCPLocation() != "us-central1" {
		t.Errorf("default GCP location = %s", cfg.GetGCPLocation())
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_FILE_SIZE", "5242880")
	t.Setenv("RENDER_TIMEOUT_SEC", "30")
	t.Setenv("MAX_RECENT_ANALYSES", "5")
	t.Setenv("API_KEY", "secret")

	cfg := NewConfig()

	if cfg.GetServerPort() != "9090" {
		t.Errorf("port = %s, want 9090", cfg.GetServerPort())
	}
	if cfg.GetMaxFileSize() != 5242880 {
		t.Errorf("max file size = %d, want 5242880", cfg.GetMaxFileSize())
	}
	if cfg.GetRenderTimeoutSec() != 30 {
		t.Errorf("render timeout = %d, want 30", cfg.GetRenderTimeoutSec())
	}
	if cfg.GetMaxRecentAnalyses() != 5 {
		t.Errorf("max recent = %d, want 5", cfg.GetMaxRecentAnalyses())
	}
	if cfg.GetAPIKey() != "secret" {
		t.Errorf("api key = %q, want secret", cfg.GetAPIKey())
	}
}

func TestPortPrefersPlatformVariable(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("SERVER_PORT", "8888")

	cfg := NewConfig()
	if cfg.GetServerPort() != "7777" {
		t.Errorf("port = %s, want PORT to win over SERVER_PORT", cfg.GetServerPort())
	}
}

func TestInvalidNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE", "a lot")
	t.Setenv("RENDER_TIMEOUT_SEC", "soon")

	cfg := NewConfig()
	if cfg.GetMaxFileSize() != 10*1024*1024 {
		t.Errorf("max file size = %d, want default", cfg.GetMaxFileSize())
	}
	if cfg.GetRenderTimeoutSec() != 90 {
		t.Errorf("render timeout = %d, want default", cfg.GetRenderTimeoutSec())
	}
}
