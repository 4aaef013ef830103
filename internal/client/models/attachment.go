package models

import (
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// AttachmentKind is the media type of an attachment.
type AttachmentKind string

const (
	AttachmentPhoto AttachmentKind = "photo"
	AttachmentAudio AttachmentKind = "audio"
)

// Attachment references captured media either by local path (not uploaded
// yet) or by remote reference (uploaded), never both.
type Attachment struct {
	Id        string         `json:"id"`
	Kind      AttachmentKind `json:"kind"`
	LocalPath string         `json:"localPath,omitempty"`
	RemoteRef string         `json:"remoteRef,omitempty"`
	Digest    string         `json:"digest,omitempty"`
}

func (a Attachment) IsLocal() bool  { return a.LocalPath != "" && a.RemoteRef == "" }
func (a Attachment) IsRemote() bool { return a.RemoteRef != "" && a.LocalPath == "" }

// Validate enforces the local XOR remote rule and a known kind.
func (a Attachment) Validate() error {
	if a.IsLocal() == a.IsRemote() {
		return fmt.Errorf("%w: attachment %s must be local or remote", common.ErrInvalidAttachment, a.Id)
	}
	switch a.Kind {
	case AttachmentPhoto, AttachmentAudio:
	default:
		return fmt.Errorf("%w: unknown kind %q", common.ErrInvalidAttachment, a.Kind)
	}
	return nil
}

// DedupeAttachments keeps the first of any attachments that point at the
// same local file, the same remote object or the same content digest.
func DedupeAttachments(in []Attachment) []Attachment {
	seen := make(map[string]struct{}, len(in)*2)
	out := make([]Attachment, 0, len(in))

	for _, a := range in {
		keys := make([]string, 0, 3)
		if a.LocalPath != "" {
			keys = append(keys, "l:"+a.LocalPath)
		}
		if a.RemoteRef != "" {
			keys = append(keys, "r:"+a.RemoteRef)
		}
		if a.Digest != "" {
			keys = append(keys, "d:"+a.Digest)
		}

		dup := false
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		out = append(out, a)
	}
	return out
}
