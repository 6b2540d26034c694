package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the supervisor.
type Config struct {
	// RunOnSave reruns the script automatically when its file changes.
	// When false a change only produces a file-change-ignored event.
	RunOnSave bool

	// AutoOutput enables the source rewriting pass that forwards bare
	// expression results to the output sink.
	AutoOutput bool

	// InstallTracer instruments the script with a per-statement
	// interruption checkpoint. Without it the script must call
	// __checkpoint__() itself to stay interruptible.
	InstallTracer bool

	// PauseInterval is how often a paused worker polls for resume.
	PauseInterval time.Duration `validate:"gt=0"`
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		RunOnSave:     envBool("RERUN_ON_SAVE", true),
		AutoOutput:    envBool("RERUN_AUTO_OUTPUT", false),
		InstallTracer: envBool("RERUN_INSTALL_TRACER", true),
		PauseInterval: envDuration("RERUN_PAUSE_INTERVAL", 100*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Invalid boolean for %s: %q, using default %v", key, raw, fallback)
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Invalid duration for %s: %q, using default %v", key, raw, fallback)
		return fallback
	}
	return v
}
