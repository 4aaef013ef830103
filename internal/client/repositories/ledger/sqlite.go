package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, kind models.RecordKind, id string, op Op, revision int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sync_ledger (record_kind, record_id, op, revision, at)
		VALUES (?, ?, ?, ?, ?)`, kind, id, op, revision, dbx.UnixNano(at))
	if err != nil {
		return fmt.Errorf("failed to append ledger row: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ClearUpTo(ctx context.Context, kind models.RecordKind, id string, revision int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_ledger
		WHERE record_kind = ? AND record_id = ? AND revision <= ?`, kind, id, revision)
	if err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Rekey(ctx context.Context, kind models.RecordKind, oldId, newId string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE sync_ledger SET record_id = ?
		WHERE record_kind = ? AND record_id = ?`, newId, kind, oldId); err != nil {
		return fmt.Errorf("failed to rekey ledger: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE push_state SET record_id = ?
		WHERE record_kind = ? AND record_id = ?`, newId, kind, oldId); err != nil {
		return fmt.Errorf("failed to rekey push state: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, kind models.RecordKind, id string) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT seq, record_kind, record_id, op, revision, at
		FROM sync_ledger WHERE record_kind = ? AND record_id = ? ORDER BY seq`, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var (
			row Row
			at  int64
		)
		if err := rows.Scan(&row.Seq, &row.Kind, &row.RecordId, &row.Op, &row.Revision, &at); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		row.At = dbx.FromUnixNano(at)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_ledger`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, kind models.RecordKind, id string, attempts int, nextAt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO push_state (record_kind, record_id, attempts, next_at, last_error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(record_kind, record_id) DO UPDATE SET
			attempts = excluded.attempts, next_at = excluded.next_at, last_error = excluded.last_error`,
		kind, id, attempts, dbx.UnixNano(nextAt), lastError)
	if err != nil {
		return fmt.Errorf("failed to record push failure: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetPushState(ctx context.Context, kind models.RecordKind, id string) (*PushState, error) {
	var (
		ps     PushState
		nextAt int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT attempts, next_at, last_error FROM push_state
		WHERE record_kind = ? AND record_id = ?`, kind, id).Scan(&ps.Attempts, &nextAt, &ps.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get push state: %w", err)
	}
	ps.NextAt = dbx.FromUnixNano(nextAt)
	return &ps, nil
}

func (r *SQLiteRepository) ClearPushState(ctx context.Context, kind models.RecordKind, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM push_state WHERE record_kind = ? AND record_id = ?`, kind, id)
	if err != nil {
		return fmt.Errorf("failed to clear push state: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ResetAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM push_state`); err != nil {
		return fmt.Errorf("failed to reset push state: %w", err)
	}
	return nil
}
