package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with FIELDSYNC_* environment variables. When
// envFile exists it is loaded first; variables already set in the process
// environment win over the file.
func parseEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	str("FIELDSYNC_API_URL", &cfg.APIBaseURL)
	str("FIELDSYNC_SESSION", &cfg.SessionToken)
	str("FIELDSYNC_OWNER_ID", &cfg.OwnerID)
	str("FIELDSYNC_DB_PATH", &cfg.DatabasePath)
	str("FIELDSYNC_HEALTH_PROBE", &cfg.HealthProbe)
	str("FIELDSYNC_GRPC_HEALTH_ADDR", &cfg.GRPCHealthAddr)
	str("FIELDSYNC_UPLOAD_BACKEND", &cfg.UploadBackend)
	str("FIELDSYNC_S3_BUCKET", &cfg.S3.Bucket)
	str("FIELDSYNC_S3_REGION", &cfg.S3.Region)
	str("FIELDSYNC_S3_ENDPOINT", &cfg.S3.Endpoint)
	str("FIELDSYNC_S3_ACCESS_KEY", &cfg.S3.AccessKey)
	str("FIELDSYNC_S3_SECRET_KEY", &cfg.S3.SecretKey)
	str("FIELDSYNC_LOG_BACKEND", &cfg.LogBackend)
	str("FIELDSYNC_LOG_LEVEL", &cfg.LogLevel)
	str("FIELDSYNC_LOG_FILE", &cfg.LogFile)
	str("FIELDSYNC_METRICS_ADDR", &cfg.MetricsAddr)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FIELDSYNC_SYNC_INTERVAL", &cfg.SyncInterval},
		{"FIELDSYNC_MIN_SYNC_GAP", &cfg.MinSyncGap},
		{"FIELDSYNC_BACKOFF_BASE", &cfg.BackoffBase},
		{"FIELDSYNC_BACKOFF_CAP", &cfg.BackoffCap},
		{"FIELDSYNC_ONLINE_CHECK_INTERVAL", &cfg.OnlineCheckInterval},
		{"FIELDSYNC_REQUEST_TIMEOUT", &cfg.RequestTimeout},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"FIELDSYNC_UPLOAD_CONCURRENCY", &cfg.UploadConcurrency},
		{"FIELDSYNC_ONLINE_THRESHOLD", &cfg.OnlineThreshold},
	}
	for _, i := range ints {
		v, ok := os.LookupEnv(i.key)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", i.key, err)
		}
		*i.dst = parsed
	}

	return nil
}
