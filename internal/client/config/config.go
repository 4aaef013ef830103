package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the sync engine host.
type Config struct {
	APIBaseURL     string
	SessionToken   string
	OwnerID        string
	DatabasePath   string
	RequestTimeout time.Duration

	SyncInterval      time.Duration
	MinSyncGap        time.Duration
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	UploadConcurrency int

	OnlineCheckInterval time.Duration
	OnlineThreshold     int
	// HealthProbe is "http" or "grpc".
	HealthProbe    string
	GRPCHealthAddr string

	// UploadBackend is "http" or "s3".
	UploadBackend string
	S3            S3Config

	LogBackend  string
	LogLevel    string
	LogFile     string
	MetricsAddr string

	// Mode is "run", "once" or "status".
	Mode string
}

// S3Config configures the S3 asset backend.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080"
	c.DatabasePath = "fieldsync.db"
	c.RequestTimeout = 15 * time.Second

	c.SyncInterval = 30 * time.Second
	c.MinSyncGap = 5 * time.Second
	c.BackoffBase = 5 * time.Second
	c.BackoffCap = 10 * time.Minute
	c.UploadConcurrency = 4

	c.OnlineCheckInterval = 3 * time.Second
	c.OnlineThreshold = 2
	c.HealthProbe = "http"

	c.UploadBackend = "http"
	c.S3.Region = "us-east-1"

	c.LogBackend = "slog"
	c.LogLevel = "info"

	c.Mode = "run"
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Mode {
	case "run", "once", "status":
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	switch c.UploadBackend {
	case "http":
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 upload backend requires a bucket")
		}
	default:
		return fmt.Errorf("unknown upload backend %q", c.UploadBackend)
	}
	switch c.HealthProbe {
	case "http":
	case "grpc":
		if c.GRPCHealthAddr == "" {
			return fmt.Errorf("grpc health probe requires an address")
		}
	default:
		return fmt.Errorf("unknown health probe %q", c.HealthProbe)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.UploadConcurrency < 1 {
		return fmt.Errorf("upload concurrency must be positive, got %d", c.UploadConcurrency)
	}
	if c.OnlineThreshold < 1 {
		return fmt.Errorf("online threshold must be positive, got %d", c.OnlineThreshold)
	}
	if c.BackoffCap < c.BackoffBase {
		return fmt.Errorf("backoff cap %s is below base %s", c.BackoffCap, c.BackoffBase)
	}
	return nil
}

// LoadConfig builds a Config from the process environment and arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:], ".env")
}

// Load constructs a Config, applies defaults, then overlays values from the
// environment (seeded from envFile when it exists), JSON (if -c is given) and
// command-line flags. Later sources take precedence over earlier ones.
func Load(args []string, envFile string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg, envFile); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
