// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Tracing
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing

	// Engine settings
	SelectorSeed int64 // seed for the IP/device/geo selector; 0 = non-deterministic
	PhasePauseMS int   // pacing delay between attack scenario phases

	// Default control thresholds (overridable per control at runtime)
	DailyTransferLimit string // dollars, e.g. "100000"
	LockoutMaxAttempts int
	LockoutMinutes     int
	RateLimitPerMinute int

	// Step-up confirmation code accepted by ConfirmStepUp.
	// A fixed test value: this engine never sends real OTPs.
	StepUpCode string
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultPhasePauseMS    = 400
	DefaultDailyLimit      = "100000"
	DefaultLockoutAttempts = 5
	DefaultLockoutMinutes  = 15
	DefaultRatePerMinute   = 5
	DefaultStepUpCode      = "000000"
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SelectorSeed:       getEnvInt64("SELECTOR_SEED", 0),
		PhasePauseMS:       int(getEnvInt64("PHASE_PAUSE_MS", DefaultPhasePauseMS)),
		DailyTransferLimit: getEnv("DAILY_TRANSFER_LIMIT", DefaultDailyLimit),
		LockoutMaxAttempts: int(getEnvInt64("LOCKOUT_MAX_ATTEMPTS", DefaultLockoutAttempts)),
		LockoutMinutes:     int(getEnvInt64("LOCKOUT_MINUTES", DefaultLockoutMinutes)),
		RateLimitPerMinute: int(getEnvInt64("RATE_LIMIT_PER_MINUTE", DefaultRatePerMinute)),
		StepUpCode:         getEnv("STEP_UP_CODE", DefaultStepUpCode),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.LockoutMaxAttempts <= 0 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be positive")
	}
	if c.LockoutMinutes <= 0 {
		return fmt.Errorf("LOCKOUT_MINUTES must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.PhasePauseMS < 0 {
		return fmt.Errorf("PHASE_PAUSE_MS must not be negative")
	}
	if len(c.StepUpCode) != 6 {
		return fmt.Errorf("STEP_UP_CODE must be 6 characters")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
