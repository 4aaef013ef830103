package entries

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fieldsync/internal/client/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
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

	now := time.Now().UnixNano()
	_, err = db.Exec(`INSERT INTO inspections (id, owner_id, type, status, sync_status, created_at, updated_at)
		VALUES ('i1', 'u1', 'routine', 'scheduled', 'synced', ?, ?),
		       ('i2', 'u1', 'routine', 'scheduled', 'pending', ?, ?)`, now, now, now, now)
	require.NoError(t, err)
	return db
}

func sample(id, inspection, section, field string) *models.Entry {
	now := time.Now()
	return &models.Entry{
		Id:           id,
		InspectionId: inspection,
		SectionRef:   section,
		FieldKey:     field,
		Value:        models.Rated{Value: "tap", Condition: models.ConditionPoor},
		Note:         "leak under sink",
		Attachments: []models.Attachment{
			{Id: "a1", Kind: models.AttachmentPhoto, LocalPath: "/photos/1.jpg"},
		},
		SyncStatus: models.StatusPending,
		Revision:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestInsertGetAndGetByKey(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	e := sample("e1", "i1", "Kitchen", "sink")
	e.MarkedForReview = true
	require.NoError(t, r.Insert(ctx, e))

	got, err := r.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, e.Value, got.Value)
	assert.Equal(t, e.Note, got.Note)
	assert.Equal(t, e.Attachments, got.Attachments)
	assert.True(t, got.MarkedForReview)
	assert.Equal(t, models.StatusPending, got.SyncStatus)

	byKey, err := r.GetByKey(ctx, "i1", models.EntryKey{SectionRef: "Kitchen", FieldKey: "sink"})
	require.NoError(t, err)
	assert.Equal(t, "e1", byKey.Id)

	_, err = r.GetByKey(ctx, "i1", models.EntryKey{SectionRef: "Kitchen", FieldKey: "oven"})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestInsert_DuplicateKey(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, sample("e1", "i1", "Bedrooms/Bedroom 2", "window")))
	err := r.Insert(ctx, sample("e2", "i1", "Bedrooms/Bedroom 2", "window"))
	require.ErrorIs(t, err, common.ErrDuplicateKey)

	require.NoError(t, r.Insert(ctx, sample("e3", "i1", "Bedrooms/Bedroom 3", "window")))
}

func TestUpdateAndSetAttachments(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	e := sample("e1", "i1", "Kitchen", "sink")
	require.NoError(t, r.Insert(ctx, e))

	e.Value = models.Text("replaced")
	e.Revision = 2
	require.NoError(t, r.Update(ctx, e))

	require.NoError(t, r.SetAttachments(ctx, "e1", []models.Attachment{
		{Id: "a1", Kind: models.AttachmentPhoto, RemoteRef: "s3://b/assets/x.jpg", Digest: "x"},
	}))

	got, err := r.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.Text("replaced"), got.Value)
	assert.EqualValues(t, 2, got.Revision)
	require.Len(t, got.Attachments, 1)
	assert.True(t, got.Attachments[0].IsRemote())

	require.ErrorIs(t, r.SetAttachments(ctx, "nope", nil), common.ErrNotFound)
}

func TestRekey(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, sample("local", "i1", "Kitchen", "sink")))
	require.NoError(t, r.Rekey(ctx, "local", "server"))

	_, err := r.Get(ctx, "local")
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = r.Get(ctx, "server")
	require.NoError(t, err)
}

func TestCountPendingForInspection(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	synced := sample("e1", "i1", "Kitchen", "sink")
	synced.SyncStatus = models.StatusSynced
	require.NoError(t, r.Insert(ctx, synced))
	require.NoError(t, r.Insert(ctx, sample("e2", "i1", "Kitchen", "oven")))

	parentPending := sample("e3", "i2", "Hall", "door")
	parentPending.SyncStatus = models.StatusSynced
	require.NoError(t, r.Insert(ctx, parentPending))

	n, err := r.CountPendingForInspection(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.CountPendingForInspection(ctx, "i2")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "entries of a pending inspection count as pending")

	n, err = r.CountByStatus(ctx, "u1", models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListPending_RespectsBackoff(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.Insert(ctx, sample("e1", "i1", "Kitchen", "sink")))
	require.NoError(t, r.Insert(ctx, sample("e2", "i1", "Kitchen", "oven")))
	_, err := db.Exec(`INSERT INTO push_state (record_kind, record_id, attempts, next_at) VALUES ('entry', 'e2', 1, ?)`,
		now.Add(time.Hour).UnixNano())
	require.NoError(t, err)

	pending, err := r.ListPending(ctx, now)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e1", pending[0].Id)
}

func TestListPending_FlagsEntriesOfUnacknowledgedInspections(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, sample("e1", "i1", "Kitchen", "sink")))
	require.NoError(t, r.Insert(ctx, sample("e2", "i2", "Kitchen", "sink")))

	pending, err := r.ListPending(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	byId := map[string]Pending{}
	for _, p := range pending {
		byId[p.Id] = p
	}
	assert.False(t, byId["e1"].ParentUnacknowledged, "synced inspection")
	assert.True(t, byId["e2"].ParentUnacknowledged, "pending inspection at version 0")

	_, err = db.Exec(`UPDATE inspections SET version = 3 WHERE id = 'i2'`)
	require.NoError(t, err)

	pending, err = r.ListPending(ctx, time.Now())
	require.NoError(t, err)
	for _, p := range pending {
		assert.False(t, p.ParentUnacknowledged, p.Id)
	}
}

func TestListByInspection_EmptyIsNotNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	list, err := r.ListByInspection(context.Background(), "i1")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestGet_CorruptValue(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "inspection_id", "section_ref", "field_key", "value_json", "note",
		"attachments_json", "marked_for_review", "sync_status", "version", "revision", "created_at", "updated_at"}).
		AddRow("e1", "i1", "Kitchen", "sink", `[1]`, "", "[]", false, "synced", 0, 0, 0, 0)
	mock.ExpectQuery(`SELECT .* FROM entries e WHERE e.id = \?`).WithArgs("e1").WillReturnRows(rows)

	_, err = NewSQLiteRepository(db).Get(context.Background(), "e1")
	require.ErrorIs(t, err, common.ErrInvalidValue)
}

func TestInsert_DBError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO entries`).WillReturnError(errors.New("disk full"))

	err = NewSQLiteRepository(db).Insert(context.Background(), sample("e1", "i1", "Kitchen", "sink"))
	require.ErrorContains(t, err, "failed to insert entry")
	require.NoError(t, mock.ExpectationsWereMet())
}
