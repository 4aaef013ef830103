package inspections

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// Pending is an inspection awaiting push together with its retry count.
type Pending struct {
	models.Inspection
	Attempts int
}

// Repository describes persistence operations for inspections.
type Repository interface {
	// Get returns the inspection without entries, or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Inspection, error)

	// ListByOwner returns the owner's inspections ordered by scheduled date
	// (unscheduled last), then creation time, then id.
	ListByOwner(ctx context.Context, ownerId string) ([]models.Inspection, error)

	// Insert stores a new row.
	Insert(ctx context.Context, in *models.Inspection) error

	// Update rewrites every mutable column of an existing row. The template
	// snapshot and creation time are never touched.
	Update(ctx context.Context, in *models.Inspection) error

	// SetSyncState updates status and version bookkeeping only.
	SetSyncState(ctx context.Context, id string, status models.SyncStatus, version, serverVersion int64) error

	// ServerVersion returns the server version remembered by a conflict.
	ServerVersion(ctx context.Context, id string) (int64, error)

	// ListPending returns pending inspections whose retry time has passed.
	ListPending(ctx context.Context, now time.Time) ([]Pending, error)

	// CountByStatus counts rows with the given status, optionally limited to
	// one owner (empty ownerId means all).
	CountByStatus(ctx context.Context, ownerId string, status models.SyncStatus) (int, error)
}
