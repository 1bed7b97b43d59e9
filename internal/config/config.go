// Package config loads mealsync settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/mealsync/pkg/logging"
)

// DevJWTSecret is used when JWT_SECRET is unset. Never use it outside
// development.
const DevJWTSecret = "mealsync-dev-secret"

type Config struct {
	// Client
	BackendURL     string
	SearchDebounce time.Duration
	Email          string
	Password       string
	Token          string

	// Dev backend
	Addr      string
	DBPath    string
	JWTSecret string
	TokenTTL  time.Duration

	LogLevel slog.Level
}

// Load reads the configuration. Variables already set in the environment
// win over the given .env files; missing files are skipped. With no files,
// ./.env is tried.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		BackendURL: getEnv("MEALSYNC_BACKEND_URL", "http://localhost:8080"),
		Email:      os.Getenv("MEALSYNC_EMAIL"),
		Password:   os.Getenv("MEALSYNC_PASSWORD"),
		Token:      os.Getenv("MEALSYNC_TOKEN"),
		Addr:       getEnv("MEALSYNC_ADDR", ":8080"),
		DBPath:     getEnv("DB_PATH", "./data/mealsync.db"),
		JWTSecret:  getEnv("JWT_SECRET", DevJWTSecret),
		LogLevel:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SearchDebounce, err = getDuration("SEARCH_DEBOUNCE", 400*time.Millisecond); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
