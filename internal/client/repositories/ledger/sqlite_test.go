package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fieldsync/internal/client/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

func TestAppendListAndClearUpTo(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.Append(ctx, models.KindEntry, "e1", OpCreate, 1, now))
	require.NoError(t, r.Append(ctx, models.KindEntry, "e1", OpAttach, 2, now))
	require.NoError(t, r.Append(ctx, models.KindEntry, "e1", OpUpdate, 3, now))
	require.NoError(t, r.Append(ctx, models.KindInspection, "e1", OpCreate, 1, now))

	rows, err := r.List(ctx, models.KindEntry, "e1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, OpCreate, rows[0].Op)
	assert.Less(t, rows[0].Seq, rows[1].Seq)

	require.NoError(t, r.ClearUpTo(ctx, models.KindEntry, "e1", 2))

	rows, err = r.List(ctx, models.KindEntry, "e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 3, rows[0].Revision)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "other kinds are untouched")
}

func TestPushState_Lifecycle(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	next := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	ps, err := r.GetPushState(ctx, models.KindEntry, "e1")
	require.NoError(t, err)
	assert.Nil(t, ps)

	require.NoError(t, r.RecordFailure(ctx, models.KindEntry, "e1", 1, next, "unavailable"))
	require.NoError(t, r.RecordFailure(ctx, models.KindEntry, "e1", 2, next.Add(time.Minute), "timeout"))

	ps, err = r.GetPushState(ctx, models.KindEntry, "e1")
	require.NoError(t, err)
	require.NotNil(t, ps)
	assert.Equal(t, 2, ps.Attempts)
	assert.Equal(t, "timeout", ps.LastError)
	assert.True(t, ps.NextAt.Equal(next.Add(time.Minute)))

	require.NoError(t, r.ClearPushState(ctx, models.KindEntry, "e1"))
	ps, err = r.GetPushState(ctx, models.KindEntry, "e1")
	require.NoError(t, err)
	assert.Nil(t, ps)
}

func TestRekeyAndResetAll(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.Append(ctx, models.KindEntry, "old", OpCreate, 1, now))
	require.NoError(t, r.RecordFailure(ctx, models.KindEntry, "old", 1, now, "x"))
	require.NoError(t, r.Rekey(ctx, models.KindEntry, "old", "new"))

	rows, err := r.List(ctx, models.KindEntry, "new")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	ps, err := r.GetPushState(ctx, models.KindEntry, "new")
	require.NoError(t, err)
	assert.NotNil(t, ps)

	require.NoError(t, r.ResetAll(ctx))
	ps, err = r.GetPushState(ctx, models.KindEntry, "new")
	require.NoError(t, err)
	assert.Nil(t, ps)
}

func TestAppend_DBError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO sync_ledger`).
		WithArgs(models.KindEntry, "e1", OpUpdate, int64(4), sqlmock.AnyArg()).
		WillReturnError(errors.New("readonly database"))

	err = NewSQLiteRepository(db).Append(context.Background(), models.KindEntry, "e1", OpUpdate, 4, time.Now())
	require.ErrorContains(t, err, "failed to append ledger row")
	require.NoError(t, mock.ExpectationsWereMet())
}
