package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Addr         string
	DBPath       string
	MockMode     bool
	Debug        bool
	ScanInterval time.Duration
	PollInterval time.Duration
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	// Defaults and Environment Variables
	cfg.Addr = getEnv("CENTERVILLE_ADDR", ":8000")
	cfg.DBPath = getEnv("CENTERVILLE_DB", getDefaultDBPath())
	cfg.MockMode = getEnvBool("CENTERVILLE_MOCK", false)

	// Command Line Flags (Override Env)
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.BoolVar(&cfg.MockMode, "mock", cfg.MockMode, "Run with the simulated sensor transport")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")
	flag.DurationVar(&cfg.ScanInterval, "scan-interval", 10*time.Second, "Short-range discovery scan interval")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", 10*time.Second, "Long-range poll cycle interval")

	flag.Parse()

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultDBPath returns the default database path in user's home directory.
// Creates the directory if it doesn't exist.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "centerville.db"
	}

	dir := filepath.Join(home, ".centerville")

	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .centerville directory, using current dir: %v", err)
		return "centerville.db"
	}

	return filepath.Join(dir, "centerville.db")
}
