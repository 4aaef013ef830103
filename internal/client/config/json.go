package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// Intervals use timex.Duration so JSON can specify them either as strings
// like "3s" or as integer nanoseconds. Zero values leave the current
// setting untouched.
type JsonConfig struct {
	APIBaseURL          string         `json:"api_base_url"`
	SessionToken        string         `json:"session_token"`
	OwnerID             string         `json:"owner_id"`
	DatabasePath        string         `json:"database_path"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	MinSyncGap          timex.Duration `json:"min_sync_gap"`
	BackoffBase         timex.Duration `json:"backoff_base"`
	BackoffCap          timex.Duration `json:"backoff_cap"`
	UploadConcurrency   int            `json:"upload_concurrency"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	OnlineThreshold     int            `json:"online_threshold"`
	HealthProbe         string         `json:"health_probe"`
	GRPCHealthAddr      string         `json:"grpc_health_addr"`
	UploadBackend       string         `json:"upload_backend"`
	S3                  struct {
		Bucket    string `json:"bucket"`
		Region    string `json:"region"`
		Endpoint  string `json:"endpoint"`
		AccessKey string `json:"access_key"`
		SecretKey string `json:"secret_key"`
	} `json:"s3"`
	LogBackend  string `json:"log_backend"`
	LogLevel    string `json:"log_level"`
	LogFile     string `json:"log_file"`
	MetricsAddr string `json:"metrics_addr"`
	Mode        string `json:"mode"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without either flag it does nothing.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setStr(&cfg.APIBaseURL, jc.APIBaseURL)
	setStr(&cfg.SessionToken, jc.SessionToken)
	setStr(&cfg.OwnerID, jc.OwnerID)
	setStr(&cfg.DatabasePath, jc.DatabasePath)
	setStr(&cfg.HealthProbe, jc.HealthProbe)
	setStr(&cfg.GRPCHealthAddr, jc.GRPCHealthAddr)
	setStr(&cfg.UploadBackend, jc.UploadBackend)
	setStr(&cfg.S3.Bucket, jc.S3.Bucket)
	setStr(&cfg.S3.Region, jc.S3.Region)
	setStr(&cfg.S3.Endpoint, jc.S3.Endpoint)
	setStr(&cfg.S3.AccessKey, jc.S3.AccessKey)
	setStr(&cfg.S3.SecretKey, jc.S3.SecretKey)
	setStr(&cfg.LogBackend, jc.LogBackend)
	setStr(&cfg.LogLevel, jc.LogLevel)
	setStr(&cfg.LogFile, jc.LogFile)
	setStr(&cfg.MetricsAddr, jc.MetricsAddr)
	setStr(&cfg.Mode, jc.Mode)

	setDur(&cfg.RequestTimeout, jc.RequestTimeout)
	setDur(&cfg.SyncInterval, jc.SyncInterval)
	setDur(&cfg.MinSyncGap, jc.MinSyncGap)
	setDur(&cfg.BackoffBase, jc.BackoffBase)
	setDur(&cfg.BackoffCap, jc.BackoffCap)
	setDur(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)

	if jc.UploadConcurrency != 0 {
		cfg.UploadConcurrency = jc.UploadConcurrency
	}
	if jc.OnlineThreshold != 0 {
		cfg.OnlineThreshold = jc.OnlineThreshold
	}
	return nil
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDur(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
