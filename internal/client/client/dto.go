package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

type namedDTO struct {
	Name string `json:"name"`
}

// InspectionDTO is an inspection as returned by GET /inspections/mine.
type InspectionDTO struct {
	Id               string                `json:"id"`
	OwnerId          string                `json:"ownerId"`
	Type             models.InspectionType `json:"type"`
	Status           models.Lifecycle      `json:"status"`
	ScheduledDate    *time.Time            `json:"scheduledDate,omitempty"`
	CompletedAt      *time.Time            `json:"completedAt,omitempty"`
	Notes            string                `json:"notes"`
	TemplateSnapshot json.RawMessage       `json:"templateSnapshot,omitempty"`
	Version          int64                 `json:"version"`
	CreatedAt        *time.Time            `json:"createdAt,omitempty"`

	Property  *namedDTO `json:"property,omitempty"`
	Block     *namedDTO `json:"block,omitempty"`
	Inspector *namedDTO `json:"inspector,omitempty"`

	Entries []EntryDTO `json:"entries,omitempty"`
}

type AttachmentDTO struct {
	Id     string                `json:"id,omitempty"`
	Kind   models.AttachmentKind `json:"kind"`
	Ref    string                `json:"ref"`
	Digest string                `json:"digest,omitempty"`
}

type EntryDTO struct {
	Id              string          `json:"id"`
	InspectionId    string          `json:"inspectionId"`
	SectionRef      string          `json:"sectionRef"`
	FieldKey        string          `json:"fieldKey"`
	Value           json.RawMessage `json:"value"`
	Note            string          `json:"note"`
	Photos          []AttachmentDTO `json:"photos,omitempty"`
	MarkedForReview bool            `json:"markedForReview"`
	Version         int64           `json:"version"`
}

type inspectionPush struct {
	Type             models.InspectionType `json:"type"`
	Status           models.Lifecycle      `json:"status"`
	ScheduledDate    *time.Time            `json:"scheduledDate,omitempty"`
	CompletedAt      *time.Time            `json:"completedAt,omitempty"`
	Notes            string                `json:"notes"`
	TemplateSnapshot json.RawMessage       `json:"templateSnapshot,omitempty"`
	OwnerId          string                `json:"ownerId"`
	BaseVersion      int64                 `json:"baseVersion"`
}

type entryPush struct {
	InspectionId    string          `json:"inspectionId"`
	SectionRef      string          `json:"sectionRef"`
	FieldKey        string          `json:"fieldKey"`
	Note            string          `json:"note"`
	Value           json.RawMessage `json:"value"`
	Photos          []AttachmentDTO `json:"photos"`
	MarkedForReview bool            `json:"markedForReview"`
	BaseVersion     int64           `json:"baseVersion"`
}

type ackDTO struct {
	Id      string `json:"id"`
	Version int64  `json:"version"`
}

type copyRequest struct {
	Type          models.InspectionType `json:"type"`
	ScheduledDate *time.Time            `json:"scheduledDate,omitempty"`
	CopyImages    bool                  `json:"copyImages"`
	CopyText      bool                  `json:"copyText"`
}

func name(n *namedDTO) string {
	if n == nil {
		return ""
	}
	return n.Name
}

// ToModel converts the DTO. Entries whose value cannot be decoded are
// returned in skipped instead of failing the whole inspection.
func (d InspectionDTO) ToModel() (in models.Inspection, skipped []error) {
	in = models.Inspection{
		Id:          d.Id,
		OwnerId:     d.OwnerId,
		Type:        d.Type,
		Status:      d.Status,
		ScheduledAt: d.ScheduledDate,
		CompletedAt: d.CompletedAt,
		Notes:       d.Notes,
		Template:    models.TemplateSnapshot(d.TemplateSnapshot),
		Version:     d.Version,
		Display: models.Display{
			PropertyName:  name(d.Property),
			BlockName:     name(d.Block),
			InspectorName: name(d.Inspector),
		},
	}
	if d.CreatedAt != nil {
		in.CreatedAt = d.CreatedAt.UTC()
	}

	for _, ed := range d.Entries {
		if ed.InspectionId == "" {
			ed.InspectionId = d.Id
		}
		e, err := ed.ToModel()
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		in.Entries = append(in.Entries, e)
	}
	return in, skipped
}

func (d EntryDTO) ToModel() (models.Entry, error) {
	v, err := models.DecodeValue(d.Value)
	if err != nil {
		return models.Entry{}, fmt.Errorf("entry %s: %w", d.Id, err)
	}

	e := models.Entry{
		Id:              d.Id,
		InspectionId:    d.InspectionId,
		SectionRef:      d.SectionRef,
		FieldKey:        d.FieldKey,
		Value:           v,
		Note:            d.Note,
		MarkedForReview: d.MarkedForReview,
		Version:         d.Version,
	}
	for _, p := range d.Photos {
		kind := p.Kind
		if kind == "" {
			kind = models.AttachmentPhoto
		}
		e.Attachments = append(e.Attachments, models.Attachment{Id: p.Id, Kind: kind, RemoteRef: p.Ref, Digest: p.Digest})
	}
	return e, nil
}

func newInspectionPush(in models.Inspection) inspectionPush {
	return inspectionPush{
		Type:             in.Type,
		Status:           in.Status,
		ScheduledDate:    in.ScheduledAt,
		CompletedAt:      in.CompletedAt,
		Notes:            in.Notes,
		TemplateSnapshot: json.RawMessage(in.Template),
		OwnerId:          in.OwnerId,
		BaseVersion:      in.Version,
	}
}

// newEntryPush builds the PATCH body. Only remote attachment references are
// sent; local files must have been uploaded first.
func newEntryPush(e models.Entry) (entryPush, error) {
	v, err := models.EncodeValue(e.Value)
	if err != nil {
		return entryPush{}, err
	}

	photos := make([]AttachmentDTO, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		if !a.IsRemote() {
			continue
		}
		photos = append(photos, AttachmentDTO{Id: a.Id, Kind: a.Kind, Ref: a.RemoteRef, Digest: a.Digest})
	}

	return entryPush{
		InspectionId:    e.InspectionId,
		SectionRef:      e.SectionRef,
		FieldKey:        e.FieldKey,
		Note:            e.Note,
		Value:           v,
		Photos:          photos,
		MarkedForReview: e.MarkedForReview,
		BaseVersion:     e.Version,
	}, nil
}
