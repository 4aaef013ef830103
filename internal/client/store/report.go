package store

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/jmoiron/sqlx"
)

// Tally counts records per sync status.
type Tally struct {
	Synced   int
	Pending  int
	Conflict int
}

// Counts splits tallies by record kind.
type Counts struct {
	Inspections Tally
	Entries     Tally
}

// Pending returns pending inspections plus pending entries.
func (c Counts) Pending() int { return c.Inspections.Pending + c.Entries.Pending }

// Conflicts returns conflicting inspections plus conflicting entries.
func (c Counts) Conflicts() int { return c.Inspections.Conflict + c.Entries.Conflict }

type statusRow struct {
	Kind   string `db:"kind"`
	Status string `db:"sync_status"`
	N      int    `db:"n"`
}

// StatusCounts tallies sync statuses for one owner, or for everyone when
// ownerId is empty.
func (s *Store) StatusCounts(ctx context.Context, ownerId string) (Counts, error) {
	db, err := s.handle()
	if err != nil {
		return Counts{}, err
	}

	var rows []statusRow
	err = sqlx.SelectContext(ctx, db, &rows, `
		SELECT 'inspection' AS kind, sync_status, COUNT(*) AS n
		FROM inspections
		WHERE (? = '' OR owner_id = ?)
		GROUP BY sync_status
		UNION ALL
		SELECT 'entry' AS kind, e.sync_status, COUNT(*) AS n
		FROM entries e JOIN inspections i ON i.id = e.inspection_id
		WHERE (? = '' OR i.owner_id = ?)
		GROUP BY e.sync_status`,
		ownerId, ownerId, ownerId, ownerId)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count statuses: %w", err)
	}

	var c Counts
	for _, row := range rows {
		t := &c.Inspections
		if row.Kind == string(models.KindEntry) {
			t = &c.Entries
		}
		switch models.SyncStatus(row.Status) {
		case models.StatusSynced:
			t.Synced += row.N
		case models.StatusPending:
			t.Pending += row.N
		case models.StatusConflict:
			t.Conflict += row.N
		}
	}
	return c, nil
}

// Badge is the per-inspection status summary shown next to an inspection.
type Badge struct {
	InspectionId    string            `db:"id"`
	Status          models.SyncStatus `db:"sync_status"`
	PendingEntries  int               `db:"pending_entries"`
	ConflictEntries int               `db:"conflict_entries"`
}

const badgeQuery = `
	SELECT i.id, i.sync_status,
		COALESCE(SUM(CASE WHEN e.sync_status = 'pending' THEN 1 ELSE 0 END), 0) AS pending_entries,
		COALESCE(SUM(CASE WHEN e.sync_status = 'conflict' THEN 1 ELSE 0 END), 0) AS conflict_entries
	FROM inspections i
	LEFT JOIN entries e ON e.inspection_id = i.id`

// InspectionBadges returns badges for every inspection of the owner, keyed
// by inspection id.
func (s *Store) InspectionBadges(ctx context.Context, ownerId string) (map[string]Badge, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var rows []Badge
	err = sqlx.SelectContext(ctx, db, &rows, badgeQuery+`
		WHERE (? = '' OR i.owner_id = ?)
		GROUP BY i.id, i.sync_status`, ownerId, ownerId)
	if err != nil {
		return nil, fmt.Errorf("failed to compute badges: %w", err)
	}

	out := make(map[string]Badge, len(rows))
	for _, b := range rows {
		out[b.InspectionId] = b
	}
	return out, nil
}

// InspectionBadge returns the badge of one inspection.
func (s *Store) InspectionBadge(ctx context.Context, inspectionId string) (Badge, error) {
	db, err := s.handle()
	if err != nil {
		return Badge{}, err
	}

	var rows []Badge
	err = sqlx.SelectContext(ctx, db, &rows, badgeQuery+`
		WHERE i.id = ?
		GROUP BY i.id, i.sync_status`, inspectionId)
	if err != nil {
		return Badge{}, fmt.Errorf("failed to compute badge: %w", err)
	}
	if len(rows) == 0 {
		_, err := s.GetInspection(ctx, inspectionId)
		return Badge{}, err
	}
	return rows[0], nil
}
