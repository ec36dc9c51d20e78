// Package config reads process configuration from the environment, after
// loading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendRedis     = "redis"
)

// Config holds all runtime settings.
type Config struct {
	Port        string
	LogLevel    string
	CORSOrigins []string

	// Storage
	StorageBackend        string
	ProfilesKey           string
	ProfilesMigrateLegacy bool
	FirebaseProjectID     string
	GoogleCredentials     string
	RedisURL              string

	// Email deliverability
	EmailAPIKey       string
	EmailAPIBaseURL   string
	EmailCheckTimeout time.Duration
	EmailCheckRetries int
	EmailCheckBreaker bool

	// User directory
	DirectoryBaseURL string
	DirectoryAPIKey  string

	// Forms
	FormIdleTimeout  time.Duration
	SubmittedDisplay time.Duration
}

// Load reads .env (if present) and the environment. Variables already set in
// the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		CORSOrigins:           getEnvList("CORS_ALLOWED_ORIGINS"),
		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
		ProfilesKey:           getEnv("PROFILES_KEY", "profiles"),
		ProfilesMigrateLegacy: getEnvBool("PROFILES_MIGRATE_LEGACY", false),
		FirebaseProjectID:     getEnv("FIREBASE_PROJECT_ID", ""),
		GoogleCredentials:     getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		EmailAPIKey:           getEnv("EMAIL_API_KEY", ""),
		EmailAPIBaseURL:       getEnv("EMAIL_API_BASE_URL", "https://api.zerobounce.net"),
		EmailCheckTimeout:     getEnvDuration("EMAIL_CHECK_TIMEOUT", 0),
		EmailCheckRetries:     getEnvInt("EMAIL_CHECK_RETRIES", 1),
		EmailCheckBreaker:     getEnvBool("EMAIL_CHECK_BREAKER", true),
		DirectoryBaseURL:      getEnv("DIRECTORY_BASE_URL", "https://reqres.in"),
		DirectoryAPIKey:       getEnv("DIRECTORY_API_KEY", "reqres-free-v1"),
		FormIdleTimeout:       getEnvDuration("FORM_IDLE_TIMEOUT", 30*time.Minute),
		SubmittedDisplay:      getEnvDuration("SUBMITTED_DISPLAY", 1500*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case BackendMemory, BackendRedis:
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if c.ProfilesKey == "" {
		errs = append(errs, errors.New("PROFILES_KEY must not be empty"))
	}
	if c.EmailCheckRetries < 1 {
		errs = append(errs, errors.New("EMAIL_CHECK_RETRIES must be at least 1"))
	}
	if c.FormIdleTimeout <= 0 {
		errs = append(errs, errors.New("FORM_IDLE_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for part := range strings.SplitSeq(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
