package store

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// SaveInspection ingests an authoritative server copy of an inspection and
// any entries it carries.
//
// An absent inspection is inserted as synced. A synced one is overwritten,
// except for its template snapshot. A pending or conflicting one is left
// exactly as it is, and applied is false. Carried entries are ingested one
// by one under the same rule, independently of the inspection's outcome.
func (s *Store) SaveInspection(ctx context.Context, in models.Inspection) (applied bool, err error) {
	err = s.write(ctx, func(ctx context.Context, r *repos) error {
		now := s.now()

		applied, err = s.ingestInspection(ctx, r, &in, now)
		if err != nil {
			return err
		}
		for i := range in.Entries {
			e := in.Entries[i]
			e.InspectionId = in.Id
			if _, err := s.ingestEntry(ctx, r, &e, now); err != nil {
				return err
			}
		}
		return nil
	})
	return applied, err
}

// SaveEntry ingests an authoritative server copy of one entry. The local
// match is found by id, falling back to the composite key. Precedence is the
// same as for SaveInspection.
func (s *Store) SaveEntry(ctx context.Context, e models.Entry) (applied bool, err error) {
	err = s.write(ctx, func(ctx context.Context, r *repos) error {
		applied, err = s.ingestEntry(ctx, r, &e, s.now())
		return err
	})
	return applied, err
}

func (s *Store) ingestInspection(ctx context.Context, r *repos, in *models.Inspection, now time.Time) (bool, error) {
	existing, err := r.inspections.Get(ctx, in.Id)
	if errors.Is(err, common.ErrNotFound) {
		row := *in
		row.Entries = nil
		row.SyncStatus = models.StatusSynced
		row.Revision = 0
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
		if err := r.inspections.Insert(ctx, &row); err != nil {
			return false, err
		}
		r.changed(models.KindInspection, row.Id, row.Id, ChangeIngest)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if existing.SyncStatus.Unsynced() {
		s.log.Debug(ctx, "kept local inspection over server copy",
			"id", in.Id, "status", existing.SyncStatus)
		return false, nil
	}
	if in.Version != 0 && in.Version < existing.Version {
		s.log.Debug(ctx, "ignored stale server copy", "id", in.Id,
			"incoming", in.Version, "local", existing.Version)
		return false, nil
	}
	if len(in.Template) > 0 && len(existing.Template) > 0 && !bytes.Equal(in.Template, existing.Template) {
		s.log.Warn(ctx, "server sent a different template snapshot, keeping the local one",
			"id", in.Id, "err", common.ErrImmutableTemplate)
	}

	row := *existing
	if in.OwnerId != "" {
		row.OwnerId = in.OwnerId
	}
	row.Type = in.Type
	row.Status = in.Status
	row.ScheduledAt = in.ScheduledAt
	row.CompletedAt = in.CompletedAt
	row.Notes = in.Notes
	row.Display = in.Display
	row.Version = in.Version
	row.UpdatedAt = now

	if err := r.inspections.Update(ctx, &row); err != nil {
		return false, err
	}
	r.changed(models.KindInspection, row.Id, row.Id, ChangeIngest)
	return true, nil
}

func (s *Store) ingestEntry(ctx context.Context, r *repos, e *models.Entry, now time.Time) (bool, error) {
	existing, err := r.entries.Get(ctx, e.Id)
	if errors.Is(err, common.ErrNotFound) {
		existing, err = r.entries.GetByKey(ctx, e.InspectionId, e.Key())
	}

	attachments := s.validAttachments(ctx, e)

	if errors.Is(err, common.ErrNotFound) {
		if _, err := r.inspections.Get(ctx, e.InspectionId); err != nil {
			return false, err
		}
		row := *e
		if row.Id == "" {
			row.Id = s.newId()
		}
		row.Attachments = attachments
		row.SyncStatus = models.StatusSynced
		row.Revision = 0
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
		if err := r.entries.Insert(ctx, &row); err != nil {
			return false, err
		}
		r.changed(models.KindEntry, row.Id, row.InspectionId, ChangeIngest)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if existing.SyncStatus.Unsynced() {
		s.log.Debug(ctx, "kept local entry over server copy",
			"id", existing.Id, "status", existing.SyncStatus)
		return false, nil
	}
	if e.Version != 0 && e.Version < existing.Version {
		return false, nil
	}

	if e.Id != "" && existing.Id != e.Id {
		if err := r.entries.Rekey(ctx, existing.Id, e.Id); err != nil {
			return false, err
		}
		if err := r.ledger.Rekey(ctx, models.KindEntry, existing.Id, e.Id); err != nil {
			return false, err
		}
		existing.Id = e.Id
	}

	row := *existing
	row.Value = e.Value
	row.Note = e.Note
	row.Attachments = attachments
	row.MarkedForReview = e.MarkedForReview
	row.Version = e.Version
	row.UpdatedAt = now

	if err := r.entries.Update(ctx, &row); err != nil {
		return false, err
	}
	r.changed(models.KindEntry, row.Id, row.InspectionId, ChangeIngest)
	return true, nil
}

// validAttachments drops references that break the local XOR remote rule
// and collapses duplicates.
func (s *Store) validAttachments(ctx context.Context, e *models.Entry) []models.Attachment {
	out := make([]models.Attachment, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		if a.Id == "" {
			a.Id = s.newId()
		}
		if err := a.Validate(); err != nil {
			s.log.Warn(ctx, "dropped invalid attachment from server copy", "entry", e.Id, "err", err)
			continue
		}
		out = append(out, a)
	}
	return models.DedupeAttachments(out)
}
