package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           int
	LogLevel       string
	LogPretty      bool
	LogFile        string // TUI mode only logs when set; the terminal belongs to the UI
	DefaultShots   int
	MaxShots       int
	MaxQubits      int
	CircuitTTL     time.Duration // How long an uploaded circuit stays addressable
	RequestTimeout time.Duration
	SimWorkers     int // Parallel trajectory batches
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnvAsInt("QTB_PORT", 8080),
		LogLevel:       getEnv("QTB_LOG_LEVEL", "info"),
		LogPretty:      getEnvAsBool("QTB_LOG_PRETTY", true),
		LogFile:        getEnv("QTB_LOG_FILE", ""),
		DefaultShots:   getEnvAsInt("QTB_DEFAULT_SHOTS", 1024),
		MaxShots:       getEnvAsInt("QTB_MAX_SHOTS", 100000),
		MaxQubits:      getEnvAsInt("QTB_MAX_QUBITS", 12),
		CircuitTTL:     getEnvAsDuration("QTB_CIRCUIT_TTL", 30*time.Minute),
		RequestTimeout: getEnvAsDuration("QTB_REQUEST_TIMEOUT", 30*time.Second),
		SimWorkers:     getEnvAsInt("QTB_SIM_WORKERS", runtime.GOMAXPROCS(0)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configured limits are usable
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("QTB_PORT %d out of range", c.Port)
	case c.DefaultShots <= 0:
		return fmt.Errorf("QTB_DEFAULT_SHOTS must be positive, got %d", c.DefaultShots)
	case c.MaxShots < c.DefaultShots:
		return fmt.Errorf("QTB_MAX_SHOTS (%d) is below QTB_DEFAULT_SHOTS (%d)", c.MaxShots, c.DefaultShots)
	case c.MaxQubits <= 0 || c.MaxQubits > 24:
		return fmt.Errorf("QTB_MAX_QUBITS must be in [1, 24], got %d", c.MaxQubits)
	case c.CircuitTTL <= 0:
		return fmt.Errorf("QTB_CIRCUIT_TTL must be positive")
	case c.RequestTimeout <= 0:
		return fmt.Errorf("QTB_REQUEST_TIMEOUT must be positive")
	case c.SimWorkers <= 0:
		return fmt.Errorf("QTB_SIM_WORKERS must be positive, got %d", c.SimWorkers)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
