package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-tables/internal/common"
	"github.com/i474232898/weather-tables/internal/weather"
	"github.com/i474232898/weather-tables/internal/weather/providers"
)

// ErrConfiguration is returned when a required setting is missing or invalid.
// It is the same sentinel the weather clients report.
var ErrConfiguration = weather.ErrConfiguration

// Blob backends.
const (
	BackendMemory   = "memory"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

type AppConfig struct {
	Port        string
	LogLevel    slog.Level
	HTTPTimeout time.Duration

	// Station API.
	StationURL     string
	StationAPIKey  string
	BreakerEnabled bool

	// Blob store.
	BlobBackend  string
	BlobBucket   string
	BlobPrefix   string
	AWSAccessKey string
	AWSSecretKey string
	AWSRegion    string
	S3Endpoint   string
	DatabaseURL  string

	// MemoryMaxObjects bounds the memory backend; <= 0 keeps everything.
	MemoryMaxObjects int

	// Periodic checkpoint job. A zero interval disables it.
	CheckpointInterval     time.Duration
	CheckpointStations     []string
	CheckpointVariables    []string
	CheckpointFrequency    string
	CheckpointLookbackDays int
}

// Load reads configuration from environment (optionally .env) with
// sensible defaults.
func Load() (*AppConfig, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := &AppConfig{
		Port:             getenvDefault("PORT", "8080"),
		StationURL:       getenvDefault("CEHUB_STATION_URL", providers.DefaultStationURL),
		StationAPIKey:    os.Getenv("CEHUB_API_KEY_WS"),
		BlobBackend:      strings.ToLower(getenvDefault("BLOB_BACKEND", BackendS3)),
		BlobBucket:       os.Getenv("BLOB_BUCKET"),
		BlobPrefix:       getenvDefault("BLOB_PREFIX", "checkpoints"),
		AWSAccessKey:     os.Getenv("AWS_ACCESS_KEY"),
		AWSSecretKey:     os.Getenv("AWS_SECRET_KEY"),
		AWSRegion:        getenvDefault("AWS_REGION", "eu-central-1"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MemoryMaxObjects: getenvInt("MEMORY_MAX_OBJECTS", 0),

		CheckpointStations:     common.SplitList(os.Getenv("CHECKPOINT_STATIONS")),
		CheckpointVariables:    common.SplitList(os.Getenv("CHECKPOINT_VARIABLES")),
		CheckpointFrequency:    getenvDefault("CHECKPOINT_FREQUENCY", "daily"),
		CheckpointLookbackDays: getenvInt("CHECKPOINT_LOOKBACK_DAYS", 7),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("%w: invalid LOG_LEVEL: %v", ErrConfiguration, err)
	}

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid HTTP_TIMEOUT: %v", ErrConfiguration, err)
	}
	cfg.HTTPTimeout = timeout

	cfg.BreakerEnabled, err = strconv.ParseBool(getenvDefault("BREAKER_ENABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid BREAKER_ENABLED: %v", ErrConfiguration, err)
	}

	if cfg.StationAPIKey == "" {
		return nil, fmt.Errorf("%w: CEHUB_API_KEY_WS is required", ErrConfiguration)
	}

	if err := cfg.validateBlobBackend(); err != nil {
		return nil, err
	}

	if v := os.Getenv("CHECKPOINT_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil || interval <= 0 {
			return nil, fmt.Errorf("%w: invalid CHECKPOINT_INTERVAL: %s", ErrConfiguration, v)
		}
		cfg.CheckpointInterval = interval
		if len(cfg.CheckpointStations) == 0 || len(cfg.CheckpointVariables) == 0 {
			return nil, fmt.Errorf("%w: CHECKPOINT_STATIONS and CHECKPOINT_VARIABLES are required when CHECKPOINT_INTERVAL is set", ErrConfiguration)
		}
		if cfg.CheckpointLookbackDays <= 0 {
			return nil, fmt.Errorf("%w: CHECKPOINT_LOOKBACK_DAYS must be positive", ErrConfiguration)
		}
	}

	return cfg, nil
}

func (c *AppConfig) validateBlobBackend() error {
	switch c.BlobBackend {
	case BackendMemory:
		return nil
	case BackendS3:
		if c.BlobBucket == "" {
			return fmt.Errorf("%w: BLOB_BUCKET is required for the s3 backend", ErrConfiguration)
		}
		if c.AWSAccessKey == "" || c.AWSSecretKey == "" {
			return fmt.Errorf("%w: AWS_ACCESS_KEY and AWS_SECRET_KEY are required for the s3 backend", ErrConfiguration)
		}
		return nil
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres backend", ErrConfiguration)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown BLOB_BACKEND %q", ErrConfiguration, c.BlobBackend)
	}
}

// CheckpointEnabled reports whether the periodic checkpoint job should run.
func (c *AppConfig) CheckpointEnabled() bool {
	return c.CheckpointInterval > 0
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
