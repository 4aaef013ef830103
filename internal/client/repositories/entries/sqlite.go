package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

const columns = `e.id, e.inspection_id, e.section_ref, e.field_key, e.value_json, e.note,
	e.attachments_json, e.marked_for_review, e.sync_status, e.version, e.revision,
	e.created_at, e.updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner, extra ...any) (*models.Entry, error) {
	var (
		e           models.Entry
		value       string
		attachments string
		createdAt   int64
		updatedAt   int64
	)

	dest := []any{
		&e.Id, &e.InspectionId, &e.SectionRef, &e.FieldKey, &value, &e.Note,
		&attachments, &e.MarkedForReview, &e.SyncStatus, &e.Version, &e.Revision,
		&createdAt, &updatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	v, err := models.DecodeValue([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.Id, err)
	}
	e.Value = v
	if err := json.Unmarshal([]byte(attachments), &e.Attachments); err != nil {
		return nil, fmt.Errorf("failed to decode attachments of entry %s: %w", e.Id, err)
	}
	e.CreatedAt = dbx.FromUnixNano(createdAt)
	e.UpdatedAt = dbx.FromUnixNano(updatedAt)
	return &e, nil
}

func encode(e *models.Entry) (value, attachments string, err error) {
	v, err := models.EncodeValue(e.Value)
	if err != nil {
		return "", "", err
	}
	a, err := encodeAttachments(e.Attachments)
	if err != nil {
		return "", "", err
	}
	return string(v), a, nil
}

func encodeAttachments(list []models.Attachment) (string, error) {
	if list == nil {
		list = []models.Attachment{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode attachments: %w", err)
	}
	return string(b), nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, where string, args ...any) (*models.Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM entries e WHERE `+where, args...)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Entry, error) {
	return r.getOne(ctx, `e.id = ?`, id)
}

func (r *SQLiteRepository) GetByKey(ctx context.Context, inspectionId string, key models.EntryKey) (*models.Entry, error) {
	return r.getOne(ctx, `e.inspection_id = ? AND e.section_ref = ? AND e.field_key = ?`,
		inspectionId, key.SectionRef, key.FieldKey)
}

func (r *SQLiteRepository) ListByInspection(ctx context.Context, inspectionId string) ([]models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM entries e
		WHERE e.inspection_id = ?
		ORDER BY e.created_at, e.rowid`, inspectionId)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	result := []models.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, e *models.Entry) error {
	value, attachments, err := encode(e)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO entries (id, inspection_id, section_ref, field_key,
		value_json, note, attachments_json, marked_for_review, sync_status, version, revision,
		created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Id, e.InspectionId, e.SectionRef, e.FieldKey, value, e.Note, attachments,
		e.MarkedForReview, e.SyncStatus, e.Version, e.Revision,
		dbx.UnixNano(e.CreatedAt), dbx.UnixNano(e.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("entry %s/%s: %w", e.SectionRef, e.FieldKey, common.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, e *models.Entry) error {
	value, attachments, err := encode(e)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `UPDATE entries SET
		value_json = ?, note = ?, attachments_json = ?, marked_for_review = ?,
		sync_status = ?, version = ?, revision = ?, updated_at = ?
		WHERE id = ?`,
		value, e.Note, attachments, e.MarkedForReview,
		e.SyncStatus, e.Version, e.Revision, dbx.UnixNano(e.UpdatedAt),
		e.Id,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return expectOne(res, e.Id)
}

func (r *SQLiteRepository) Rekey(ctx context.Context, oldId, newId string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE entries SET id = ? WHERE id = ?`, newId, oldId)
	if err != nil {
		return fmt.Errorf("failed to rekey entry: %w", err)
	}
	return expectOne(res, oldId)
}

func (r *SQLiteRepository) SetAttachments(ctx context.Context, id string, attachments []models.Attachment) error {
	a, err := encodeAttachments(attachments)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE entries SET attachments_json = ? WHERE id = ?`, a, id)
	if err != nil {
		return fmt.Errorf("failed to update attachments: %w", err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) SetSyncState(ctx context.Context, id string, status models.SyncStatus, version, serverVersion int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE entries
		SET sync_status = ?, version = ?, server_version = ?
		WHERE id = ?`, status, version, serverVersion, id)
	if err != nil {
		return fmt.Errorf("failed to update entry sync state: %w", err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) ServerVersion(ctx context.Context, id string) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `SELECT server_version FROM entries WHERE id = ?`, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("entry %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get server version: %w", err)
	}
	return v, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context, now time.Time) ([]Pending, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+`, COALESCE(p.attempts, 0),
			COALESCE(i.sync_status = ? AND i.version = 0, 0)
		FROM entries e
		LEFT JOIN push_state p ON p.record_kind = ? AND p.record_id = e.id
		LEFT JOIN inspections i ON i.id = e.inspection_id
		WHERE e.sync_status = ? AND (p.next_at IS NULL OR p.next_at <= ?)
		ORDER BY e.updated_at, e.id`,
		models.StatusPending, models.KindEntry, models.StatusPending, dbx.UnixNano(now))
	if err != nil {
		return nil, fmt.Errorf("failed to select pending entries: %w", err)
	}
	defer rows.Close()

	var result []Pending
	for rows.Next() {
		var (
			attempts int
			orphan   bool
		)
		e, err := scanEntry(rows, &attempts, &orphan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending entry: %w", err)
		}
		result = append(result, Pending{Entry: *e, Attempts: attempts, ParentUnacknowledged: orphan})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending entries: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) CountPendingForInspection(ctx context.Context, inspectionId string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries e
		JOIN inspections i ON i.id = e.inspection_id
		WHERE e.inspection_id = ? AND (e.sync_status = ? OR i.sync_status = ?)`,
		inspectionId, models.StatusPending, models.StatusPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending entries: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context, ownerId string, status models.SyncStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries e
		JOIN inspections i ON i.id = e.inspection_id
		WHERE e.sync_status = ? AND (? = '' OR i.owner_id = ?)`, status, ownerId, ownerId).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func expectOne(res sql.Result, id string) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("entry %s: %w", id, common.ErrNotFound)
	}
	return nil
}
