// Package ledger records local mutations awaiting acknowledgement and the
// per-record retry state of failed pushes.
package ledger

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// Op names the kind of local mutation recorded in the ledger.
type Op string

const (
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpAttach  Op = "attach"
	OpResolve Op = "resolve"
)

// Row is one ledger entry.
type Row struct {
	Seq      int64
	Kind     models.RecordKind
	RecordId string
	Op       Op
	Revision int64
	At       time.Time
}

// PushState is the retry bookkeeping of one record.
type PushState struct {
	Attempts  int
	NextAt    time.Time
	LastError string
}

// Repository describes ledger and retry-state persistence.
type Repository interface {
	// Append records a local mutation at the given record revision.
	Append(ctx context.Context, kind models.RecordKind, id string, op Op, revision int64, at time.Time) error

	// ClearUpTo removes rows of a record with revision <= revision.
	ClearUpTo(ctx context.Context, kind models.RecordKind, id string, revision int64) error

	// Rekey moves rows and retry state of a record to a new id.
	Rekey(ctx context.Context, kind models.RecordKind, oldId, newId string) error

	// List returns the rows of a record in sequence order.
	List(ctx context.Context, kind models.RecordKind, id string) ([]Row, error)

	// Count returns the total number of ledger rows.
	Count(ctx context.Context) (int, error)

	// RecordFailure stores the outcome of a failed push.
	RecordFailure(ctx context.Context, kind models.RecordKind, id string, attempts int, nextAt time.Time, lastError string) error

	// GetPushState returns retry state, or nil when the record has none.
	GetPushState(ctx context.Context, kind models.RecordKind, id string) (*PushState, error)

	// ClearPushState forgets retry state of one record.
	ClearPushState(ctx context.Context, kind models.RecordKind, id string) error

	// ResetAll makes every record eligible for an immediate push.
	ResetAll(ctx context.Context) error
}
