package models

import (
	"strings"
	"time"
)

// Entry is one answer within an inspection, addressed by
// (SectionRef, FieldKey). SectionRef may carry a repeatable-instance
// qualifier, e.g. "Bedrooms/Bedroom 2".
type Entry struct {
	Id           string
	InspectionId string
	SectionRef   string
	FieldKey     string

	Value           FieldValue
	Note            string
	Attachments     []Attachment
	MarkedForReview bool

	SyncStatus SyncStatus
	Version    int64
	Revision   int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the composite key of the entry within its inspection.
func (e Entry) Key() EntryKey {
	return EntryKey{SectionRef: e.SectionRef, FieldKey: e.FieldKey}
}

// EntryKey is the (section, field) address of an entry.
type EntryKey struct {
	SectionRef string
	FieldKey   string
}

// SplitSectionRef separates a section reference into the template section
// and the repeatable-instance qualifier, if any.
func SplitSectionRef(ref string) (section, instance string) {
	section, instance, _ = strings.Cut(ref, "/")
	return section, instance
}

// EntryWrite is a local edit addressed by composite key. Nil fields are left
// untouched when the entry already exists.
type EntryWrite struct {
	InspectionId    string
	SectionRef      string
	FieldKey        string
	Value           FieldValue
	SetValue        bool
	Note            *string
	MarkedForReview *bool
}

// LocalAttachments returns the attachments that still point at local files.
func (e Entry) LocalAttachments() []Attachment {
	var out []Attachment
	for _, a := range e.Attachments {
		if a.IsLocal() {
			out = append(out, a)
		}
	}
	return out
}

// RemoteRefs returns the remote references in attachment order.
func (e Entry) RemoteRefs() []string {
	out := make([]string, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		if a.IsRemote() {
			out = append(out, a.RemoteRef)
		}
	}
	return out
}
