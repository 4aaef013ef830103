package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/ledger"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// Resolution is the human decision that takes a record out of conflict.
type Resolution int

const (
	// KeepLocal rebases the local edit on the server version and queues it
	// for another push.
	KeepLocal Resolution = iota + 1
	// DiscardLocal marks the record synced so the next pull replaces it.
	DiscardLocal
)

func (r Resolution) String() string {
	switch r {
	case KeepLocal:
		return "keep_local"
	case DiscardLocal:
		return "discard_local"
	}
	return fmt.Sprintf("Resolution(%d)", int(r))
}

// syncRecord is the bookkeeping view shared by inspections and entries.
type syncRecord struct {
	inspectionId string
	status       models.SyncStatus
	version      int64
	revision     int64
}

func (r *repos) syncRecord(ctx context.Context, kind models.RecordKind, id string) (*syncRecord, error) {
	switch kind {
	case models.KindInspection:
		in, err := r.inspections.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &syncRecord{inspectionId: in.Id, status: in.SyncStatus, version: in.Version, revision: in.Revision}, nil
	case models.KindEntry:
		e, err := r.entries.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &syncRecord{inspectionId: e.InspectionId, status: e.SyncStatus, version: e.Version, revision: e.Revision}, nil
	}
	return nil, fmt.Errorf("%w: record kind %q", common.ErrInvalidValue, kind)
}

func (r *repos) setSyncState(ctx context.Context, kind models.RecordKind, id string, status models.SyncStatus, version, serverVersion int64) error {
	if kind == models.KindInspection {
		return r.inspections.SetSyncState(ctx, id, status, version, serverVersion)
	}
	return r.entries.SetSyncState(ctx, id, status, version, serverVersion)
}

func (r *repos) serverVersion(ctx context.Context, kind models.RecordKind, id string) (int64, error) {
	if kind == models.KindInspection {
		return r.inspections.ServerVersion(ctx, id)
	}
	return r.entries.ServerVersion(ctx, id)
}

// MarkInspectionSynced acknowledges a push of the inspection at revision.
// See markSynced.
func (s *Store) MarkInspectionSynced(ctx context.Context, id string, revision, version int64) (bool, error) {
	return s.markSynced(ctx, models.KindInspection, id, revision, version)
}

// MarkEntrySynced acknowledges a push of the entry at revision.
func (s *Store) MarkEntrySynced(ctx context.Context, id string, revision, version int64) (bool, error) {
	return s.markSynced(ctx, models.KindEntry, id, revision, version)
}

// markSynced records the server version and clears ledger rows up to the
// pushed revision. The record becomes synced only if nothing was written
// locally since the push started; otherwise it stays pending and the
// returned bool is false.
func (s *Store) markSynced(ctx context.Context, kind models.RecordKind, id string, revision, version int64) (synced bool, err error) {
	err = s.write(ctx, func(ctx context.Context, r *repos) error {
		rec, err := r.syncRecord(ctx, kind, id)
		if err != nil {
			return err
		}

		status := rec.status
		if rec.status == models.StatusPending && rec.revision == revision {
			status = models.StatusSynced
			synced = true
		}
		if err := r.setSyncState(ctx, kind, id, status, version, 0); err != nil {
			return err
		}
		if err := r.ledger.ClearUpTo(ctx, kind, id, revision); err != nil {
			return err
		}
		if err := r.ledger.ClearPushState(ctx, kind, id); err != nil {
			return err
		}
		if synced {
			r.changed(kind, id, rec.inspectionId, ChangeSynced)
		}
		return nil
	})
	return synced, err
}

// MarkInspectionConflict moves the inspection to conflict, remembering the
// server's version. Local fields are left untouched.
func (s *Store) MarkInspectionConflict(ctx context.Context, id string, serverVersion int64) error {
	return s.markConflict(ctx, models.KindInspection, id, serverVersion)
}

// MarkEntryConflict moves the entry to conflict.
func (s *Store) MarkEntryConflict(ctx context.Context, id string, serverVersion int64) error {
	return s.markConflict(ctx, models.KindEntry, id, serverVersion)
}

func (s *Store) markConflict(ctx context.Context, kind models.RecordKind, id string, serverVersion int64) error {
	return s.write(ctx, func(ctx context.Context, r *repos) error {
		rec, err := r.syncRecord(ctx, kind, id)
		if err != nil {
			return err
		}
		if err := r.setSyncState(ctx, kind, id, models.StatusConflict, rec.version, serverVersion); err != nil {
			return err
		}
		if err := r.ledger.ClearPushState(ctx, kind, id); err != nil {
			return err
		}
		r.changed(kind, id, rec.inspectionId, ChangeConflict)
		return nil
	})
}

// RecordPushFailure stores retry state after a failed push: the number of
// attempts so far and the earliest time of the next one.
func (s *Store) RecordPushFailure(ctx context.Context, kind models.RecordKind, id string, attempts int, nextAt time.Time, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.write(ctx, func(ctx context.Context, r *repos) error {
		return r.ledger.RecordFailure(ctx, kind, id, attempts, nextAt, msg)
	})
}

// ResetBackoff makes every pending record eligible for an immediate push.
func (s *Store) ResetBackoff(ctx context.Context) error {
	return s.write(ctx, func(ctx context.Context, r *repos) error {
		return r.ledger.ResetAll(ctx)
	})
}

// ReplaceAttachment turns a local attachment reference into a remote one.
// It does not bump the entry revision: the reference swap is sync
// bookkeeping, not a user edit. Replacing with the same reference again is a
// no-op.
func (s *Store) ReplaceAttachment(ctx context.Context, entryId, attachmentId, remoteRef, digest string) error {
	if remoteRef == "" {
		return fmt.Errorf("%w: empty remote reference", common.ErrInvalidAttachment)
	}

	return s.write(ctx, func(ctx context.Context, r *repos) error {
		e, err := r.entries.Get(ctx, entryId)
		if err != nil {
			return err
		}

		idx := -1
		for i := range e.Attachments {
			if e.Attachments[i].Id == attachmentId {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: attachment %s not on entry %s", common.ErrInvalidAttachment, attachmentId, entryId)
		}
		if e.Attachments[idx].RemoteRef == remoteRef {
			return nil
		}

		e.Attachments[idx].LocalPath = ""
		e.Attachments[idx].RemoteRef = remoteRef
		if digest != "" {
			e.Attachments[idx].Digest = digest
		}

		if err := r.entries.SetAttachments(ctx, entryId, models.DedupeAttachments(e.Attachments)); err != nil {
			return err
		}
		r.changed(models.KindEntry, entryId, e.InspectionId, ChangeUploaded)
		return nil
	})
}

// ResolveConflict applies a human decision to a record in conflict. The
// engine never calls it on its own.
func (s *Store) ResolveConflict(ctx context.Context, kind models.RecordKind, id string, res Resolution) error {
	return s.write(ctx, func(ctx context.Context, r *repos) error {
		rec, err := r.syncRecord(ctx, kind, id)
		if err != nil {
			return err
		}
		if rec.status != models.StatusConflict {
			return fmt.Errorf("%s %s: %w", kind, id, common.ErrNoConflict)
		}
		sv, err := r.serverVersion(ctx, kind, id)
		if err != nil {
			return err
		}

		now := s.now()
		switch res {
		case KeepLocal:
			revision := rec.revision + 1
			if err := s.rebase(ctx, r, kind, id, sv, revision, now); err != nil {
				return err
			}
			if err := r.ledger.Append(ctx, kind, id, ledger.OpResolve, revision, now); err != nil {
				return err
			}
		case DiscardLocal:
			if err := r.setSyncState(ctx, kind, id, models.StatusSynced, rec.version, 0); err != nil {
				return err
			}
			if err := r.ledger.ClearUpTo(ctx, kind, id, rec.revision); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: resolution %s", common.ErrInvalidValue, res)
		}

		r.changed(kind, id, rec.inspectionId, ChangeResolved)
		s.log.Info(ctx, "conflict resolved", "kind", kind, "id", id, "resolution", res.String())
		return nil
	})
}

// rebase marks the record pending on top of the server version with a new
// revision.
func (s *Store) rebase(ctx context.Context, r *repos, kind models.RecordKind, id string, serverVersion, revision int64, now time.Time) error {
	if kind == models.KindInspection {
		in, err := r.inspections.Get(ctx, id)
		if err != nil {
			return err
		}
		in.SyncStatus = models.StatusPending
		in.Version = serverVersion
		in.Revision = revision
		in.UpdatedAt = now
		return r.inspections.Update(ctx, in)
	}

	e, err := r.entries.Get(ctx, id)
	if err != nil {
		return err
	}
	e.SyncStatus = models.StatusPending
	e.Version = serverVersion
	e.Revision = revision
	e.UpdatedAt = now
	return r.entries.Update(ctx, e)
}
