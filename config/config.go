// Package config reads the server configuration from the environment.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	MinAutosaveDebounce = 450 * time.Millisecond
	MaxAutosaveDebounce = 1000 * time.Millisecond
)

type Config struct {
	DevMode  bool
	HostPort string

	DynamoDBEndpoint string
	DynamoDBTable    string
	RedisEndpoint    string
	SQSEndpoint      string
	SQSPublishQueue  string
	AssetStoreURL    string

	JWTSecret     []byte
	AllowedOrigin string

	AutosaveDebounce time.Duration
	DraftTickMs      int
	ZoomMin          float64
	ZoomMax          float64
	Grid             bool

	MaxImageBytes int64
	MaxPDFBytes   int64
	MaxPDFPages   int
	PdftoppmPath  string
}

// Load reads the environment. Only malformed values are errors; missing
// values fall back to defaults.
func Load() (*Config, error) {
	secret, err := base64.StdEncoding.DecodeString(os.Getenv("JWT_SECRET"))
	if err != nil {
		return nil, fmt.Errorf("decode base64 JWT_SECRET: %w", err)
	}

	cfg := &Config{
		DevMode:  getEnvBool("DEV_MODE", false),
		HostPort: getEnv("HOST_PORT", "8080"),

		DynamoDBEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),
		DynamoDBTable:    getEnv("DYNAMODB_TABLE", "Whiteboard"),
		RedisEndpoint:    os.Getenv("REDIS_ENDPOINT"),
		SQSEndpoint:      os.Getenv("SQS_ENDPOINT"),
		SQSPublishQueue:  getEnv("SQS_PUBLISH_QUEUE", "PublishBoardQueue"),
		AssetStoreURL:    os.Getenv("ASSET_STORE_URL"),

		JWTSecret:     secret,
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),

		AutosaveDebounce: ClampDebounce(getEnvDuration("AUTOSAVE_DEBOUNCE", 600*time.Millisecond)),
		DraftTickMs:      getEnvInt("DRAFT_TICK_MS", 250),
		ZoomMin:          getEnvFloat("ZOOM_MIN", 0.2),
		ZoomMax:          getEnvFloat("ZOOM_MAX", 4),
		Grid:             getEnvBool("GRID", true),

		MaxImageBytes: int64(getEnvInt("MAX_IMAGE_BYTES", 10<<20)),
		MaxPDFBytes:   int64(getEnvInt("MAX_PDF_BYTES", 25<<20)),
		MaxPDFPages:   getEnvInt("MAX_PDF_PAGES", 20),
		PdftoppmPath:  getEnv("PDFTOPPM_PATH", "pdftoppm"),
	}

	if cfg.ZoomMin <= 0 || cfg.ZoomMax < cfg.ZoomMin {
		return nil, fmt.Errorf("invalid zoom range [%v, %v]", cfg.ZoomMin, cfg.ZoomMax)
	}
	return cfg, nil
}

// ClampDebounce keeps the autosave window within 450–1000 ms.
func ClampDebounce(d time.Duration) time.Duration {
	return min(max(d, MinAutosaveDebounce), MaxAutosaveDebounce)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
