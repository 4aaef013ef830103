package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/ledger"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// NewInspection describes an inspection started on this device.
type NewInspection struct {
	// Id is optional; a UUID is generated when empty.
	Id          string
	OwnerId     string
	Type        models.InspectionType
	Status      models.Lifecycle
	ScheduledAt *time.Time
	Template    models.TemplateSnapshot
	Notes       string
}

// CreateInspection stores a locally originated inspection as pending.
func (s *Store) CreateInspection(ctx context.Context, n NewInspection) (*models.Inspection, error) {
	if n.OwnerId == "" {
		return nil, fmt.Errorf("%w: owner is required", common.ErrInvalidValue)
	}
	if !n.Type.Valid() {
		return nil, fmt.Errorf("%w: inspection type %q", common.ErrInvalidValue, n.Type)
	}
	if n.Status == "" {
		n.Status = models.LifecycleDraft
	}
	if !n.Status.Valid() {
		return nil, fmt.Errorf("%w: lifecycle status %q", common.ErrInvalidValue, n.Status)
	}

	var out *models.Inspection
	err := s.write(ctx, func(ctx context.Context, r *repos) error {
		now := s.now()
		in := &models.Inspection{
			Id:          n.Id,
			OwnerId:     n.OwnerId,
			Type:        n.Type,
			Status:      n.Status,
			ScheduledAt: n.ScheduledAt,
			Template:    n.Template,
			Notes:       n.Notes,
			SyncStatus:  models.StatusPending,
			Revision:    1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if in.Id == "" {
			in.Id = s.newId()
		}
		if err := r.inspections.Insert(ctx, in); err != nil {
			return err
		}
		if err := r.ledger.Append(ctx, models.KindInspection, in.Id, ledger.OpCreate, in.Revision, now); err != nil {
			return err
		}
		r.changed(models.KindInspection, in.Id, in.Id, ChangeLocalWrite)
		out = in
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateInspection applies a local edit to notes, lifecycle status or dates.
func (s *Store) UpdateInspection(ctx context.Context, id string, p models.InspectionPatch) (*models.Inspection, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, fmt.Errorf("%w: lifecycle status %q", common.ErrInvalidValue, *p.Status)
	}
	if p.Empty() {
		return s.GetInspection(ctx, id)
	}

	var out *models.Inspection
	err := s.write(ctx, func(ctx context.Context, r *repos) error {
		in, err := r.inspections.Get(ctx, id)
		if err != nil {
			return err
		}

		if p.Notes != nil {
			in.Notes = *p.Notes
		}
		if p.Status != nil {
			in.Status = *p.Status
		}
		if p.ScheduledAt != nil {
			in.ScheduledAt = p.ScheduledAt
		}
		if p.CompletedAt != nil {
			in.CompletedAt = p.CompletedAt
		}

		now := s.now()
		in.SyncStatus = localStatus(in.SyncStatus)
		in.Revision++
		in.UpdatedAt = now

		if err := r.inspections.Update(ctx, in); err != nil {
			return err
		}
		if err := r.ledger.Append(ctx, models.KindInspection, id, ledger.OpUpdate, in.Revision, now); err != nil {
			return err
		}
		r.changed(models.KindInspection, id, id, ChangeLocalWrite)
		out = in
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteEntry records a local answer, creating the entry addressed by
// (SectionRef, FieldKey) when it does not exist yet.
func (s *Store) WriteEntry(ctx context.Context, w models.EntryWrite) (*models.Entry, error) {
	if w.SectionRef == "" || w.FieldKey == "" {
		return nil, fmt.Errorf("%w: section and field are required", common.ErrInvalidValue)
	}
	if w.SetValue {
		if _, err := models.EncodeValue(w.Value); err != nil {
			return nil, err
		}
		if r, ok := w.Value.(models.Rated); ok && (!r.Condition.Valid() || !r.Cleanliness.Valid()) {
			return nil, fmt.Errorf("%w: rated value %+v", common.ErrInvalidValue, r)
		}
	}

	var out *models.Entry
	err := s.write(ctx, func(ctx context.Context, r *repos) error {
		if _, err := r.inspections.Get(ctx, w.InspectionId); err != nil {
			return err
		}

		now := s.now()
		key := models.EntryKey{SectionRef: w.SectionRef, FieldKey: w.FieldKey}

		e, err := r.entries.GetByKey(ctx, w.InspectionId, key)
		op := ledger.OpUpdate
		switch {
		case errors.Is(err, common.ErrNotFound):
			op = ledger.OpCreate
			e = &models.Entry{
				Id:           s.newId(),
				InspectionId: w.InspectionId,
				SectionRef:   w.SectionRef,
				FieldKey:     w.FieldKey,
				SyncStatus:   models.StatusPending,
				CreatedAt:    now,
			}
		case err != nil:
			return err
		}

		if w.SetValue {
			e.Value = w.Value
		}
		if w.Note != nil {
			e.Note = *w.Note
		}
		if w.MarkedForReview != nil {
			e.MarkedForReview = *w.MarkedForReview
		}
		e.SyncStatus = localStatus(e.SyncStatus)
		e.Revision++
		e.UpdatedAt = now

		if op == ledger.OpCreate {
			err = r.entries.Insert(ctx, e)
		} else {
			err = r.entries.Update(ctx, e)
		}
		if err != nil {
			return err
		}
		if err := r.ledger.Append(ctx, models.KindEntry, e.Id, op, e.Revision, now); err != nil {
			return err
		}
		r.changed(models.KindEntry, e.Id, e.InspectionId, ChangeLocalWrite)
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddAttachment appends a locally captured file to an entry. Adding the same
// file twice returns the existing reference without a write.
func (s *Store) AddAttachment(ctx context.Context, entryId string, kind models.AttachmentKind, localPath string) (*models.Attachment, error) {
	a := models.Attachment{Kind: kind, LocalPath: localPath}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidAttachment, err)
	}

	var out *models.Attachment
	err := s.write(ctx, func(ctx context.Context, r *repos) error {
		e, err := r.entries.Get(ctx, entryId)
		if err != nil {
			return err
		}
		for i := range e.Attachments {
			if e.Attachments[i].LocalPath == localPath {
				existing := e.Attachments[i]
				out = &existing
				return nil
			}
		}

		now := s.now()
		a.Id = s.newId()
		e.Attachments = append(e.Attachments, a)
		e.SyncStatus = localStatus(e.SyncStatus)
		e.Revision++
		e.UpdatedAt = now

		if err := r.entries.Update(ctx, e); err != nil {
			return err
		}
		if err := r.ledger.Append(ctx, models.KindEntry, e.Id, ledger.OpAttach, e.Revision, now); err != nil {
			return err
		}
		r.changed(models.KindEntry, e.Id, e.InspectionId, ChangeLocalWrite)
		out = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
