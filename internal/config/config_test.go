package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var keys = []string{
	"MEALSYNC_BACKEND_URL", "MEALSYNC_ADDR", "DB_PATH", "JWT_SECRET",
	"TOKEN_TTL", "SEARCH_DEBOUNCE", "LOG_LEVEL",
	"MEALSYNC_EMAIL", "MEALSYNC_PASSWORD", "MEALSYNC_TOKEN",
}

// clearEnv unsets every key for the duration of the test. The t.Setenv
// cleanup also reverts what godotenv sets.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BackendURL != "http://localhost:8080" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.DBPath != "./data/mealsync.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.JWTSecret != DevJWTSecret {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.SearchDebounce != 400*time.Millisecond {
		t.Errorf("SearchDebounce = %v", cfg.SearchDebounce)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.Email != "" || cfg.Password != "" || cfg.Token != "" {
		t.Errorf("credentials should default to empty, got %q %q %q", cfg.Email, cfg.Password, cfg.Token)
	}
}

func TestEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEALSYNC_ADDR", ":9090")

	path := filepath.Join(t.TempDir(), "test.env")
	content := "MEALSYNC_BACKEND_URL=http://backend:8080\nMEALSYNC_ADDR=:7070\nSEARCH_DEBOUNCE=250ms\nLOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BackendURL != "http://backend:8080" {
		t.Errorf("BackendURL = %q, want value from file", cfg.BackendURL)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, environment must win over the file", cfg.Addr)
	}
	if cfg.SearchDebounce != 250*time.Millisecond {
		t.Errorf("SearchDebounce = %v", cfg.SearchDebounce)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestInvalidDuration(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TOKEN_TTL", "forever"},
		{"TOKEN_TTL", "-1h"},
		{"SEARCH_DEBOUNCE", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
