package config

import (
	"errors"
	"os"
	"time"
)

// ServerConfig configures the attendance REST backend.
type ServerConfig struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
}

// ClientConfig configures the scanning client and its sync engine.
type ClientConfig struct {
	APIBaseURL      string
	DBPath          string
	SyncInterval    time.Duration
	MaxRetries      int
	RequestTimeout  time.Duration
	LocationTimeout time.Duration
	ProbeInterval   time.Duration
}

func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

func LoadClientConfig() (*ClientConfig, error) {
	syncInterval, err := getDuration("SYNC_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, errors.New("invalid SYNC_INTERVAL format")
	}
	probeInterval, err := getDuration("PROBE_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, errors.New("invalid PROBE_INTERVAL format")
	}

	cfg := &ClientConfig{
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:8080/api"),
		DBPath:          getEnv("ATTENDANCE_DB", defaultDBPath()),
		SyncInterval:    syncInterval,
		MaxRetries:      3,
		RequestTimeout:  10 * time.Second,
		LocationTimeout: 5 * time.Second,
		ProbeInterval:   probeInterval,
	}

	return cfg, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "attendance.db"
	}
	return home + "/.attendsync/attendance.db"
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(value)
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
