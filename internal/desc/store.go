package desc

import (
	"context"
	"errors"
)

// ErrCorruptCache reports a persisted cache that cannot be decoded. It is
// fatal: prior descriptions must never be discarded silently.
var ErrCorruptCache = errors.New("desc: persisted cache is corrupt")

// Record is the value stored per bare file name.
type Record struct {
	Description string `json:"description"`
	// ReferenceAnnotation is reserved; it is written empty and never rendered.
	ReferenceAnnotation string `json:"referenceAnnotation"`
}

// Store is a key-value store of description records keyed by bare file name.
// Callers Flush after every Put so that a crash loses at most the in-flight entry.
type Store interface {
	Get(ctx context.Context, name string) (Record, bool, error)
	Put(ctx context.Context, name string, rec Record) error
	Flush(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Close() error
}
