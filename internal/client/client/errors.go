package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRejected     = errors.New("request rejected")
)

// ConflictError is returned when the server holds a newer version of the
// record than the one the push was based on.
type ConflictError struct {
	Id      string
	Version int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: server is at version %d", e.Id, e.Version)
}

func (e *ConflictError) Is(target error) bool { return target == common.ErrVersionConflict }
