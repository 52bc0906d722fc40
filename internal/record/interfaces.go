package record

import (
	"context"
	"time"
)

// Store persists the record collection. Every call is a whole-collection
// read-modify-write; concurrent writers are not serialized.
type Store interface {
	List(ctx context.Context) ([]Record, error)
	Append(ctx context.Context, rec Record) error
	Replace(ctx context.Context, id string, patch Patch) (Record, error)
	Remove(ctx context.Context, id string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs.
type IDGenerator interface {
	NewID() (string, error)
}
