package entries

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// Pending is an entry awaiting push together with its retry count.
type Pending struct {
	models.Entry
	Attempts int
	// ParentUnacknowledged is set while the entry's inspection is pending
	// and has never been accepted by the server.
	ParentUnacknowledged bool
}

// Repository describes persistence operations for entries.
type Repository interface {
	// Get returns the entry by id, or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Entry, error)

	// GetByKey returns the entry addressed by composite key, or common.ErrNotFound.
	GetByKey(ctx context.Context, inspectionId string, key models.EntryKey) (*models.Entry, error)

	// ListByInspection returns the entries of one inspection in creation order.
	ListByInspection(ctx context.Context, inspectionId string) ([]models.Entry, error)

	// Insert stores a new row. A duplicate composite key fails with
	// common.ErrDuplicateKey.
	Insert(ctx context.Context, e *models.Entry) error

	// Update rewrites every mutable column of an existing row.
	Update(ctx context.Context, e *models.Entry) error

	// Rekey replaces the id of an entry, used when the server knows a
	// locally created entry under a different id.
	Rekey(ctx context.Context, oldId, newId string) error

	// SetAttachments replaces the attachment list without touching revision
	// or status.
	SetAttachments(ctx context.Context, id string, attachments []models.Attachment) error

	// SetSyncState updates status and version bookkeeping only.
	SetSyncState(ctx context.Context, id string, status models.SyncStatus, version, serverVersion int64) error

	// ServerVersion returns the server version remembered by a conflict.
	ServerVersion(ctx context.Context, id string) (int64, error)

	// ListPending returns pending entries whose retry time has passed.
	ListPending(ctx context.Context, now time.Time) ([]Pending, error)

	// CountPendingForInspection counts entries of an inspection that are
	// pending themselves or whose inspection is pending.
	CountPendingForInspection(ctx context.Context, inspectionId string) (int, error)

	// CountByStatus counts rows with the given status, optionally limited to
	// inspections of one owner (empty ownerId means all).
	CountByStatus(ctx context.Context, ownerId string, status models.SyncStatus) (int, error)
}
