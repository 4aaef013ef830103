package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "flag.json", map[string]any{
		"api_base_url":          "https://www.example",
		"online_check_interval": "10s",
		"upload_backend":        "s3",
		"s3":                    map[string]any{"bucket": "assets", "endpoint": "http://minio:9000"},
		"upload_concurrency":    2,
	})

	t.Run("loads from -config", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "https://www.example", cfg.APIBaseURL)
		assert.Equal(t, 10*time.Second, cfg.OnlineCheckInterval)
		assert.Equal(t, "s3", cfg.UploadBackend)
		assert.Equal(t, "assets", cfg.S3.Bucket)
		assert.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
		assert.Equal(t, 2, cfg.UploadConcurrency)
	})

	t.Run("absent keys keep current values", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-c", path}))

		assert.Equal(t, 30*time.Second, cfg.SyncInterval)
		assert.Equal(t, "fieldsync.db", cfg.DatabasePath)
	})

	t.Run("no flag, no changes", func(t *testing.T) {
		cfg := &Config{APIBaseURL: "defaults:1234", OnlineCheckInterval: 42 * time.Second}
		require.NoError(t, parseJson(cfg, nil))

		assert.Equal(t, "defaults:1234", cfg.APIBaseURL)
		assert.Equal(t, 42*time.Second, cfg.OnlineCheckInterval)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		require.Error(t, parseJson(&Config{}, []string{"-config", bad}))
	})

	t.Run("missing file", func(t *testing.T) {
		require.Error(t, parseJson(&Config{}, []string{"-c", filepath.Join(dir, "nope.json")}))
	})
}
