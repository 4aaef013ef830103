package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	var c config.Config
	c.LoadDefaults()
	c.APIBaseURL = apiURL
	c.DatabasePath = filepath.Join(t.TempDir(), "local.db")
	c.SessionToken = "opaque-session"
	c.OwnerID = "u1"
	c.RequestTimeout = 2 * time.Second
	require.NoError(t, c.Validate())
	return &c
}

func fakeAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var lists atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /inspections/mine", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "opaque-session" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		lists.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"I1","ownerId":"u1","type":"routine","status":"scheduled","notes":"","version":1,
			"property":{"name":"12 Elm St"}}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lists
}

func TestApp_Once(t *testing.T) {
	srv, lists := fakeAPI(t)
	c := testConfig(t, srv.URL)
	c.Mode = "once"

	var out bytes.Buffer
	app, err := NewApp(context.Background(), c, WithOutput(&out), WithLogger(logging.Nop()))
	require.NoError(t, err)
	require.NoError(t, app.Run(context.Background()))

	assert.EqualValues(t, 1, lists.Load())
	assert.Contains(t, out.String(), "pushed 0, failed 0, conflicts 0, uploaded 0, pulled 1")
	assert.Contains(t, out.String(), "status: synced")
	assert.Contains(t, out.String(), "I1\troutine\tsynced")
	assert.NotContains(t, out.String(), "last pull: never")
}

func TestApp_OnceOffline(t *testing.T) {
	srv, lists := fakeAPI(t)
	c := testConfig(t, srv.URL)
	c.Mode = "once"
	srv.Close()

	var out bytes.Buffer
	app, err := NewApp(context.Background(), c, WithOutput(&out), WithLogger(logging.Nop()))
	require.NoError(t, err)
	require.NoError(t, app.Run(context.Background()))

	assert.Zero(t, lists.Load())
	assert.Contains(t, out.String(), "offline: nothing was synced")
	assert.Contains(t, out.String(), "last pull: never")
}

func TestApp_Status(t *testing.T) {
	c := testConfig(t, "http://127.0.0.1:1")
	c.Mode = "status"

	var out bytes.Buffer
	app, err := NewApp(context.Background(), c, WithOutput(&out), WithLogger(logging.Nop()))
	require.NoError(t, err)
	require.NoError(t, app.Run(context.Background()))

	assert.Equal(t, "status: synced (pending 0, conflicts 0)\nlast pull: never\n", out.String())
}

func TestApp_DaemonStopsOnCancel(t *testing.T) {
	srv, lists := fakeAPI(t)
	c := testConfig(t, srv.URL)
	c.OnlineCheckInterval = 10 * time.Millisecond
	c.OnlineThreshold = 1
	c.MinSyncGap = 0

	app, err := NewApp(context.Background(), c, WithLogger(logging.Nop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	// the startup run may happen before the first probe; regaining
	// connectivity triggers another run
	require.Eventually(t, func() bool { return lists.Load() > 0 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestNewApp_Backends(t *testing.T) {
	t.Run("s3 uploader and grpc probe", func(t *testing.T) {
		c := testConfig(t, "http://127.0.0.1:1")
		c.UploadBackend = "s3"
		c.S3 = config.S3Config{Bucket: "assets", Region: "eu-west-1", Endpoint: "http://127.0.0.1:9000", AccessKey: "k", SecretKey: "s"}
		c.HealthProbe = "grpc"
		c.GRPCHealthAddr = "127.0.0.1:1"

		app, err := NewApp(context.Background(), c, WithLogger(logging.Nop()))
		require.NoError(t, err)
		require.NoError(t, app.Close())
	})

	t.Run("unwritable database path", func(t *testing.T) {
		c := testConfig(t, "http://127.0.0.1:1")
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
		c.DatabasePath = filepath.Join(blocker, "sub", "local.db")

		_, err := NewApp(context.Background(), c, WithLogger(logging.Nop()))
		require.ErrorIs(t, err, common.ErrStorageUnavailable)
	})

	t.Run("bad log backend", func(t *testing.T) {
		c := testConfig(t, "http://127.0.0.1:1")
		c.LogBackend = "syslog"

		_, err := NewApp(context.Background(), c)
		require.Error(t, err)
	})
}
