package assets

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

var ErrOffline = errors.New("offline")

// UploadFailedError reports a failed upload of one local file. It matches
// common.ErrUploadFailed and unwraps to the cause.
type UploadFailedError struct {
	Path  string
	Cause error
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.Path, e.Cause)
}

func (e *UploadFailedError) Unwrap() error { return e.Cause }

func (e *UploadFailedError) Is(target error) bool { return target == common.ErrUploadFailed }
