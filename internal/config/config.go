package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	Timeout    time.Duration
	UserAgents []string
	CacheSize  int
}

type UploaderConfig struct {
	Timeout        time.Duration
	ExternalImages bool
}

type CredentialsConfig struct {
	Path string
}

type RedisConfig struct {
	// Addr selects the history backend: empty means in-memory only.
	Addr     string
	Password string
	DB       int
}

type LoggingConfig struct {
	Level string
}

type Config struct {
	Server      ServerConfig
	Scraper     ScraperConfig
	Uploader    UploaderConfig
	Credentials CredentialsConfig
	Redis       RedisConfig
	Logging     LoggingConfig
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnvOrDefault("SERVER_HOST", "127.0.0.1"),
			Port:            getIntOrDefault("SERVER_PORT", 8787),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			Timeout:    getDurationOrDefault("SCRAPER_TIMEOUT", 30*time.Second),
			UserAgents: getStringSliceOrDefault("SCRAPER_USER_AGENTS", nil),
			CacheSize:  getIntOrDefault("SCRAPER_CACHE_SIZE", 64),
		},
		Uploader: UploaderConfig{
			Timeout:        getDurationOrDefault("UPLOADER_TIMEOUT", 60*time.Second),
			ExternalImages: getBoolOrDefault("UPLOADER_EXTERNAL_IMAGES", false),
		},
		Credentials: CredentialsConfig{
			Path: getEnvOrDefault("CREDENTIALS_PATH", defaultCredentialsPath()),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
	}
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "credentials.json"
	}
	return filepath.Join(dir, "taosync", "credentials.json")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
