package metadata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestSetAndGet_Upsert(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyLastOwnerId, []byte("old")))
	require.NoError(t, r.Set(ctx, KeyLastOwnerId, []byte("new")))

	v, err := r.Get(ctx, KeyLastOwnerId)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)
}

func TestGet_Absent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestDelete_IsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "x", []byte{0x01}))
	require.NoError(t, r.Delete(ctx, "x"))

	v, err := r.Get(ctx, "x")
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, r.Delete(ctx, "x"))
}

func TestTimeHelpers(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	_, ok, err := r.GetTime(ctx, KeyLastPullAt)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 10, 17, 8, 30, 0, 123, time.FixedZone("X", 3600))
	require.NoError(t, r.SetTime(ctx, KeyLastPullAt, at))

	got, ok, err := r.GetTime(ctx, KeyLastPullAt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, at.Equal(got))

	require.NoError(t, r.Set(ctx, KeyLastSyncAt, []byte("yesterday")))
	_, _, err = r.GetTime(ctx, KeyLastSyncAt)
	require.Error(t, err)
}

func TestDBErrorsWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get metadata[k]")

	err = r.Set(ctx, "k", []byte("v"))
	require.ErrorContains(t, err, "failed to set metadata[k]")

	err = r.Delete(ctx, "k")
	require.ErrorContains(t, err, "failed to delete metadata[k]")
}
