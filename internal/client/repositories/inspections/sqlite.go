package inspections

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

const columns = `id, owner_id, type, status, scheduled_at, completed_at, template_snapshot,
	notes, display_json, sync_status, version, revision, created_at, updated_at`

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

func scanInspection(s scanner, extra ...any) (*models.Inspection, error) {
	var (
		in          models.Inspection
		scheduledAt sql.NullInt64
		completedAt sql.NullInt64
		template    string
		display     string
		createdAt   int64
		updatedAt   int64
	)

	dest := []any{
		&in.Id, &in.OwnerId, &in.Type, &in.Status, &scheduledAt, &completedAt, &template,
		&in.Notes, &display, &in.SyncStatus, &in.Version, &in.Revision, &createdAt, &updatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	in.ScheduledAt = dbx.FromNullUnixNano(scheduledAt)
	in.CompletedAt = dbx.FromNullUnixNano(completedAt)
	in.CreatedAt = dbx.FromUnixNano(createdAt)
	in.UpdatedAt = dbx.FromUnixNano(updatedAt)
	if template != "null" {
		in.Template = models.TemplateSnapshot(template)
	}
	if err := json.Unmarshal([]byte(display), &in.Display); err != nil {
		return nil, fmt.Errorf("failed to decode display of inspection %s: %w", in.Id, err)
	}
	return &in, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Inspection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM inspections WHERE id = ?`, id)
	in, err := scanInspection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inspection %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inspection: %w", err)
	}
	return in, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerId string) ([]models.Inspection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM inspections
		WHERE owner_id = ?
		ORDER BY scheduled_at IS NULL, scheduled_at, created_at, id`, ownerId)
	if err != nil {
		return nil, fmt.Errorf("failed to select inspections: %w", err)
	}
	defer rows.Close()

	result := []models.Inspection{}
	for rows.Next() {
		in, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inspection: %w", err)
		}
		result = append(result, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inspections: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, in *models.Inspection) error {
	display, err := json.Marshal(in.Display)
	if err != nil {
		return fmt.Errorf("failed to encode display: %w", err)
	}
	template, err := in.Template.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO inspections (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Id, in.OwnerId, in.Type, in.Status,
		dbx.NullUnixNano(in.ScheduledAt), dbx.NullUnixNano(in.CompletedAt), string(template),
		in.Notes, string(display), in.SyncStatus, in.Version, in.Revision,
		dbx.UnixNano(in.CreatedAt), dbx.UnixNano(in.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert inspection: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, in *models.Inspection) error {
	display, err := json.Marshal(in.Display)
	if err != nil {
		return fmt.Errorf("failed to encode display: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `UPDATE inspections SET
		owner_id = ?, type = ?, status = ?, scheduled_at = ?, completed_at = ?, notes = ?,
		display_json = ?, sync_status = ?, version = ?, revision = ?, updated_at = ?
		WHERE id = ?`,
		in.OwnerId, in.Type, in.Status,
		dbx.NullUnixNano(in.ScheduledAt), dbx.NullUnixNano(in.CompletedAt), in.Notes,
		string(display), in.SyncStatus, in.Version, in.Revision, dbx.UnixNano(in.UpdatedAt),
		in.Id,
	)
	if err != nil {
		return fmt.Errorf("failed to update inspection: %w", err)
	}
	return expectOne(res, in.Id)
}

func (r *SQLiteRepository) SetSyncState(ctx context.Context, id string, status models.SyncStatus, version, serverVersion int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE inspections
		SET sync_status = ?, version = ?, server_version = ?
		WHERE id = ?`, status, version, serverVersion, id)
	if err != nil {
		return fmt.Errorf("failed to update inspection sync state: %w", err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) ServerVersion(ctx context.Context, id string) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `SELECT server_version FROM inspections WHERE id = ?`, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("inspection %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get server version: %w", err)
	}
	return v, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context, now time.Time) ([]Pending, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+prefixed+`, COALESCE(p.attempts, 0)
		FROM inspections i
		LEFT JOIN push_state p ON p.record_kind = ? AND p.record_id = i.id
		WHERE i.sync_status = ? AND (p.next_at IS NULL OR p.next_at <= ?)
		ORDER BY i.updated_at, i.id`,
		models.KindInspection, models.StatusPending, dbx.UnixNano(now))
	if err != nil {
		return nil, fmt.Errorf("failed to select pending inspections: %w", err)
	}
	defer rows.Close()

	var result []Pending
	for rows.Next() {
		var attempts int
		in, err := scanInspection(rows, &attempts)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending inspection: %w", err)
		}
		result = append(result, Pending{Inspection: *in, Attempts: attempts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending inspections: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context, ownerId string, status models.SyncStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inspections
		WHERE sync_status = ? AND (? = '' OR owner_id = ?)`, status, ownerId, ownerId).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count inspections: %w", err)
	}
	return n, nil
}

const prefixed = `i.id, i.owner_id, i.type, i.status, i.scheduled_at, i.completed_at, i.template_snapshot,
	i.notes, i.display_json, i.sync_status, i.version, i.revision, i.created_at, i.updated_at`

func expectOne(res sql.Result, id string) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("inspection %s: %w", id, common.ErrNotFound)
	}
	return nil
}
