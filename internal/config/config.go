package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Broadcast BroadcastConfig
	Jobs      JobsConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type BroadcastConfig struct {
	// ReferenceDomain prefixes every CAP reference this system issues.
	ReferenceDomain string
	// Sender is the CAP sender identity transmitted with every event.
	Sender string
	// Providers is the full set of configured cell-broadcast providers.
	Providers   []string
	FeedChannel string
}

type JobsConfig struct {
	SweepSpec     string
	ScanSpec      string
	PurgeSpec     string
	RetentionDays int
}

// LoadConfig loads configuration from environment variables.
// A .env file is honoured when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "broadcasts"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Broadcast: BroadcastConfig{
			ReferenceDomain: getEnv("BROADCAST_REFERENCE_DOMAIN", "broadcasts.example.gov"),
			Sender:          getEnv("BROADCAST_SENDER", "broadcasts@example.gov"),
			Providers:       getEnvAsSlice("BROADCAST_PROVIDERS", []string{"ee", "vodafone", "three", "o2"}),
			FeedChannel:     getEnv("BROADCAST_FEED_CHANNEL", "broadcast.finished"),
		},
		Jobs: JobsConfig{
			SweepSpec:     getEnv("JOB_SWEEP_SPEC", "@every 1m"),
			ScanSpec:      getEnv("JOB_SCAN_SPEC", "@every 1m"),
			PurgeSpec:     getEnv("JOB_PURGE_SPEC", "@daily"),
			RetentionDays: getEnvAsInt("RETENTION_DAYS", 90),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsSlice(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	parts := strings.Split(strValue, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
