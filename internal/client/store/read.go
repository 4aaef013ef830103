package store

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/entries"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/inspections"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/ledger"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
)

// GetAllInspections returns the owner's inspections ordered by scheduled
// date, then creation time, then id. Entries are not hydrated. An unknown
// owner yields an empty slice.
func (s *Store) GetAllInspections(ctx context.Context, ownerId string) ([]models.Inspection, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.inspections.ListByOwner(ctx, ownerId)
}

// GetInspection returns the inspection with all of its entries, or an error
// matching common.ErrNotFound.
func (s *Store) GetInspection(ctx context.Context, id string) (*models.Inspection, error) {
	var in *models.Inspection
	err := s.snapshot(ctx, func(ctx context.Context, r *repos) error {
		var err error
		if in, err = r.inspections.Get(ctx, id); err != nil {
			return err
		}
		in.Entries, err = r.entries.ListByInspection(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

// GetEntry returns one entry by id.
func (s *Store) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.entries.Get(ctx, id)
}

// GetPendingEntriesCount counts entries of the inspection that are pending
// themselves or whose inspection is pending.
func (s *Store) GetPendingEntriesCount(ctx context.Context, inspectionId string) (int, error) {
	r, err := s.reader()
	if err != nil {
		return 0, err
	}
	return r.entries.CountPendingForInspection(ctx, inspectionId)
}

// PendingCount returns pending inspections plus pending entries. Conflicts
// are not counted.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var total int
	err := s.snapshot(ctx, func(ctx context.Context, r *repos) error {
		ni, err := r.inspections.CountByStatus(ctx, "", models.StatusPending)
		if err != nil {
			return err
		}
		ne, err := r.entries.CountByStatus(ctx, "", models.StatusPending)
		if err != nil {
			return err
		}
		total = ni + ne
		return nil
	})
	return total, err
}

type (
	PendingInspection = inspections.Pending
	PendingEntry      = entries.Pending
)

// PendingSet is the work eligible for a push at a point in time.
type PendingSet struct {
	Inspections []PendingInspection
	Entries     []PendingEntry
}

// Empty reports whether there is nothing to push.
func (p PendingSet) Empty() bool {
	return len(p.Inspections) == 0 && len(p.Entries) == 0
}

// ListPending returns pending records whose retry time is not after now.
func (s *Store) ListPending(ctx context.Context, now time.Time) (PendingSet, error) {
	var set PendingSet
	err := s.snapshot(ctx, func(ctx context.Context, r *repos) error {
		var err error
		if set.Inspections, err = r.inspections.ListPending(ctx, now); err != nil {
			return err
		}
		set.Entries, err = r.entries.ListPending(ctx, now)
		return err
	})
	return set, err
}

// LedgerRows returns the unacknowledged mutations of one record.
func (s *Store) LedgerRows(ctx context.Context, kind models.RecordKind, id string) ([]ledger.Row, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.ledger.List(ctx, kind, id)
}

// LedgerSize returns the number of unacknowledged mutations.
func (s *Store) LedgerSize(ctx context.Context) (int, error) {
	r, err := s.reader()
	if err != nil {
		return 0, err
	}
	return r.ledger.Count(ctx)
}

// PushState returns the retry bookkeeping of one record, or nil.
func (s *Store) PushState(ctx context.Context, kind models.RecordKind, id string) (*ledger.PushState, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.ledger.GetPushState(ctx, kind, id)
}

// GetMeta returns a metadata value, or nil when absent.
func (s *Store) GetMeta(ctx context.Context, key string) ([]byte, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.metadata.Get(ctx, key)
}

// SetMeta stores a metadata value.
func (s *Store) SetMeta(ctx context.Context, key string, value []byte) error {
	return s.write(ctx, func(ctx context.Context, r *repos) error {
		return r.metadata.Set(ctx, key, value)
	})
}

// LastPullAt returns when the last successful pull finished.
func (s *Store) LastPullAt(ctx context.Context) (time.Time, bool, error) {
	r, err := s.reader()
	if err != nil {
		return time.Time{}, false, err
	}
	return r.metadata.GetTime(ctx, metadata.KeyLastPullAt)
}

// SetLastPullAt records a successful pull.
func (s *Store) SetLastPullAt(ctx context.Context, at time.Time) error {
	return s.write(ctx, func(ctx context.Context, r *repos) error {
		return r.metadata.SetTime(ctx, metadata.KeyLastPullAt, at)
	})
}
