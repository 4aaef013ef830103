package dbx

import (
	"database/sql"
	"time"
)

// Timestamps are stored as UTC unix nanoseconds so that SQLite can order
// them numerically.

// UnixNano converts t for storage.
func UnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// NullUnixNano converts an optional timestamp for storage.
func NullUnixNano(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: UnixNano(*t), Valid: true}
}

// FromUnixNano restores a stored timestamp.
func FromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// FromNullUnixNano restores an optional stored timestamp.
func FromNullUnixNano(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromUnixNano(n.Int64)
	return &t
}
