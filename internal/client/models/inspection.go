// Package models defines the records held by the local store: inspections,
// their entries and attachment references, together with the sync status
// bookkeeping that travels with them.
package models

import (
	"encoding/json"
	"time"
)

// SyncStatus tracks whether a record carries unacknowledged local changes.
type SyncStatus string

const (
	StatusSynced   SyncStatus = "synced"
	StatusPending  SyncStatus = "pending"
	StatusConflict SyncStatus = "conflict"
)

func (s SyncStatus) Valid() bool {
	switch s {
	case StatusSynced, StatusPending, StatusConflict:
		return true
	}
	return false
}

// Unsynced reports whether the record holds local data the server has not
// accepted yet. Such records are never overwritten by pulled data.
func (s SyncStatus) Unsynced() bool {
	return s == StatusPending || s == StatusConflict
}

// RecordKind names the two record types the engine synchronizes.
type RecordKind string

const (
	KindInspection RecordKind = "inspection"
	KindEntry      RecordKind = "entry"
)

// InspectionType classifies an inspection visit.
type InspectionType string

const (
	TypeCheckIn     InspectionType = "check_in"
	TypeCheckOut    InspectionType = "check_out"
	TypeRoutine     InspectionType = "routine"
	TypeMaintenance InspectionType = "maintenance"
	TypeInventory   InspectionType = "inventory"
)

func (t InspectionType) Valid() bool {
	switch t {
	case TypeCheckIn, TypeCheckOut, TypeRoutine, TypeMaintenance, TypeInventory:
		return true
	}
	return false
}

// Lifecycle is the workflow state of an inspection, independent of sync.
type Lifecycle string

const (
	LifecycleDraft      Lifecycle = "draft"
	LifecycleScheduled  Lifecycle = "scheduled"
	LifecycleInProgress Lifecycle = "in_progress"
	LifecycleCompleted  Lifecycle = "completed"
)

func (l Lifecycle) Valid() bool {
	switch l {
	case LifecycleDraft, LifecycleScheduled, LifecycleInProgress, LifecycleCompleted:
		return true
	}
	return false
}

// TemplateSnapshot is the section/field structure captured when the
// inspection was created. It is stored verbatim and never rewritten.
type TemplateSnapshot json.RawMessage

func (t TemplateSnapshot) MarshalJSON() ([]byte, error) {
	if len(t) == 0 {
		return []byte("null"), nil
	}
	return t, nil
}

func (t *TemplateSnapshot) UnmarshalJSON(b []byte) error {
	*t = append((*t)[:0], b...)
	return nil
}

// Display carries names denormalized by the server for presentation. It is
// refreshed by pulls and never pushed.
type Display struct {
	PropertyName  string `json:"propertyName,omitempty"`
	BlockName     string `json:"blockName,omitempty"`
	InspectorName string `json:"inspectorName,omitempty"`
}

// Inspection is one inspection visit.
type Inspection struct {
	Id      string
	OwnerId string
	Type    InspectionType
	Status  Lifecycle

	ScheduledAt *time.Time
	CompletedAt *time.Time

	Template TemplateSnapshot
	Notes    string
	Display  Display

	SyncStatus SyncStatus
	// Version is the server version the local copy is based on; 0 means the
	// server has never acknowledged this record.
	Version int64
	// Revision counts local writes and guards push acknowledgements.
	Revision int64

	CreatedAt time.Time
	UpdatedAt time.Time

	// Entries is populated by hydrating reads and by pulls that carry entries.
	Entries []Entry
}

// InspectionPatch holds the locally editable fields of an inspection. Nil
// fields are left untouched.
type InspectionPatch struct {
	Notes       *string
	Status      *Lifecycle
	ScheduledAt *time.Time
	CompletedAt *time.Time
}

// Empty reports whether the patch changes nothing.
func (p InspectionPatch) Empty() bool {
	return p.Notes == nil && p.Status == nil && p.ScheduledAt == nil && p.CompletedAt == nil
}
