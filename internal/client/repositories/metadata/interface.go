// Package metadata stores small engine facts such as the time of the last
// successful pull.
package metadata

import (
	"context"
	"time"
)

// Well-known keys.
const (
	KeyLastPullAt  = "last_pull_at"
	KeyLastSyncAt  = "last_sync_at"
	KeyLastOwnerId = "last_owner_id"
)

type Repository interface {
	// Get returns the value for key, or (nil, nil) when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// GetTime returns the timestamp stored under key; ok is false when absent.
	GetTime(ctx context.Context, key string) (t time.Time, ok bool, err error)
	SetTime(ctx context.Context, key string, t time.Time) error
}
