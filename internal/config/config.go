package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	ImportDir string
	OutputDir string

	OrderTypesPath  string
	ImportBatchSize int

	WatchIntervalSec int
	WatchMaxFiles    int
	WatchAutoResync  bool

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "orderdesk.db")),
		ImportDir: getEnv("IMPORT_DIR", filepath.Join(cwd, "data", "import")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		OrderTypesPath:  getEnv("ORDER_TYPES_PATH", ""),
		ImportBatchSize: getEnvInt("IMPORT_BATCH_SIZE", 500),

		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 30),
		WatchMaxFiles:    getEnvInt("WATCH_MAX_FILES", 20),
		WatchAutoResync:  getEnvBool("WATCH_AUTO_RESYNC", true),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
