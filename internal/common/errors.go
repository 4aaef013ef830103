// Package common defines shared constants and sentinel errors used across
// the store, sync and upload layers of fieldsync. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Storage errors.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotInitialized     = errors.New("store not initialized")
	ErrNotFound           = errors.New("not found")

	// Sync errors.
	ErrVersionConflict = errors.New("version conflict")
	ErrPushFailed      = errors.New("push failed")
	ErrUploadFailed    = errors.New("upload failed")
	ErrNoConflict      = errors.New("record is not in conflict")

	// Validation errors.
	ErrInvalidAttachment = errors.New("invalid attachment reference")
	ErrInvalidValue      = errors.New("invalid field value")
	ErrImmutableTemplate = errors.New("template snapshot is immutable")
	ErrDuplicateKey      = errors.New("duplicate entry key")
)
