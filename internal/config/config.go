package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the JobFleet server.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Compute     ComputeConfig
	ObjectStore ObjectStoreConfig
	Batch       BatchConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// ComputeConfig points at the managed batch-compute service. Token and
// TokenFile are mutually exclusive; TokenFile enables scheduled refresh.
type ComputeConfig struct {
	BaseURL            string
	Token              string
	TokenFile          string
	TokenRefreshPeriod time.Duration
	JobQueue           string
	JobDefinition      string
	RequestTimeout     time.Duration
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	KeyPrefix string
	UseSSL    bool
}

type BatchConfig struct {
	SubmitConcurrency  int
	StatusChunkTimeout time.Duration
	RecordCacheTTL     time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("JOBFLEET_PORT", 8080),
			Env:             envString("JOBFLEET_ENV", "development"),
			RateLimitPerMin: envInt("JOBFLEET_RATE_LIMIT_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Compute: ComputeConfig{
			BaseURL:            os.Getenv("COMPUTE_BASE_URL"),
			Token:              os.Getenv("COMPUTE_API_TOKEN"),
			TokenFile:          os.Getenv("COMPUTE_API_TOKEN_FILE"),
			TokenRefreshPeriod: envDuration("COMPUTE_TOKEN_REFRESH_PERIOD", 15*time.Minute),
			JobQueue:           envString("COMPUTE_JOB_QUEUE", "transform-job-queue"),
			JobDefinition:      envString("COMPUTE_JOB_DEFINITION", "transform-job"),
			RequestTimeout:     envDurationSecs("COMPUTE_REQUEST_TIMEOUT_SECS", 15*time.Second),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:  os.Getenv("OBJECT_STORE_ENDPOINT"),
			AccessKey: os.Getenv("OBJECT_STORE_ACCESS_KEY"),
			SecretKey: os.Getenv("OBJECT_STORE_SECRET_KEY"),
			Bucket:    envString("OBJECT_STORE_BUCKET", "jobfleet-batches"),
			KeyPrefix: envString("OBJECT_STORE_KEY_PREFIX", "batches/"),
			UseSSL:    envBool("OBJECT_STORE_USE_SSL", false),
		},
		Batch: BatchConfig{
			SubmitConcurrency:  envInt("BATCH_SUBMIT_CONCURRENCY", 10),
			StatusChunkTimeout: envDurationSecs("BATCH_STATUS_CHUNK_TIMEOUT_SECS", 5*time.Second),
			RecordCacheTTL:     envDuration("BATCH_RECORD_CACHE_TTL", 15*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Compute.BaseURL == "" {
		return fmt.Errorf("COMPUTE_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Compute.BaseURL, "http://") && !strings.HasPrefix(c.Compute.BaseURL, "https://") {
		return fmt.Errorf("COMPUTE_BASE_URL must start with http:// or https://, got %q", c.Compute.BaseURL)
	}
	if c.Compute.Token != "" && c.Compute.TokenFile != "" {
		return fmt.Errorf("COMPUTE_API_TOKEN and COMPUTE_API_TOKEN_FILE are mutually exclusive")
	}

	if c.ObjectStore.Endpoint == "" {
		return fmt.Errorf("OBJECT_STORE_ENDPOINT is required")
	}
	if c.ObjectStore.AccessKey == "" {
		return fmt.Errorf("OBJECT_STORE_ACCESS_KEY is required")
	}
	if c.ObjectStore.SecretKey == "" {
		return fmt.Errorf("OBJECT_STORE_SECRET_KEY is required")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
