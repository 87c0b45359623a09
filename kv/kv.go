// Package kv defines the backing key/value store interface the tree engine
// is built on. Concrete engines (see the lvldb package) implement Store;
// the tree and its node store never depend on a specific engine.
package kv

import "context"

// Getter reads point values by key.
type Getter interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Putter writes and removes point values.
type Putter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// GetPutter groups read and write access.
type GetPutter interface {
	Getter
	Putter
}

// IsNotFounder classifies an engine-specific error as "key absent".
type IsNotFounder interface {
	IsNotFound(err error) bool
}

// Range is a half-open byte-key range [Start, Limit). A nil Limit means
// "no upper bound"; a nil Start means "from the beginning".
type Range struct {
	Start []byte
	Limit []byte
}

// Iterator walks a Range in key order. It must be Released after use.
type Iterator interface {
	First() bool
	Last() bool
	Next() bool
	Prev() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Bulk stages a batch of writes for a single atomic commit.
type Bulk interface {
	Putter
	// EnableAutoFlush allows the implementation to flush partial batches
	// to bound memory use; it must not break the batch's atomicity from
	// the caller's point of view prior to Write.
	EnableAutoFlush()
	Write() error
}

// Snapshot is a read-consistent view of the store at the point it was
// taken. It never observes writes committed afterward.
type Snapshot interface {
	Getter
	IsNotFounder
	Release()
}

// Store is the full backing key/value store contract: point access,
// ordered iteration, atomic batch writes, and point-in-time snapshots.
type Store interface {
	Getter
	Putter
	IsNotFounder
	Iterate(r Range) Iterator
	Bulk() Bulk
	Snapshot() Snapshot
	DeleteRange(ctx context.Context, r Range) error
}
