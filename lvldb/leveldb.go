// Package lvldb implements kv.Store on top of goleveldb, the embedded
// log-structured-merge engine this module uses as its backing store.
package lvldb

import (
	"context"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/merkleavl/mavl/kv"
)

// Options configures the underlying leveldb instance.
type Options struct {
	// CacheSizeMB is the block cache size, in megabytes.
	CacheSizeMB int
	// OpenFilesCacheCapacity bounds the number of file descriptors leveldb
	// keeps open for SST files.
	OpenFilesCacheCapacity int
}

func (o Options) toOpt() *opt.Options {
	cache := o.CacheSizeMB
	if cache <= 0 {
		cache = 16
	}
	files := o.OpenFilesCacheCapacity
	if files <= 0 {
		files = 16
	}
	return &opt.Options{
		OpenFilesCacheCapacity: files,
		BlockCacheCapacity:     cache * opt.MiB,
		WriteBuffer:            cache * opt.MiB,
	}
}

// LevelDB is a kv.Store backed by a goleveldb instance.
type LevelDB struct {
	db *leveldb.DB
}

// New opens (creating if absent) a leveldb instance rooted at path.
func New(path string, opts Options) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, opts.toOpt())
	if err != nil {
		return nil, errors.WithMessage(err, "open leveldb")
	}
	return &LevelDB{db}, nil
}

// NewMem opens an in-memory leveldb instance, for tests and ephemeral trees.
func NewMem() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.WithMessage(err, "open mem leveldb")
	}
	return &LevelDB{db}, nil
}

// Close closes the underlying database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// IsNotFound reports whether err is leveldb's "key not found".
func (l *LevelDB) IsNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound)
}

// Get implements kv.Getter.
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	return l.db.Get(key, nil)
}

// Has implements kv.Getter.
func (l *LevelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

// Put implements kv.Putter.
func (l *LevelDB) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

// Delete implements kv.Putter.
func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

// Iterate implements kv.Store.
func (l *LevelDB) Iterate(r kv.Range) kv.Iterator {
	return &iter{l.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, nil)}
}

// Bulk implements kv.Store.
func (l *LevelDB) Bulk() kv.Bulk {
	return &bulk{db: l.db, batch: new(leveldb.Batch)}
}

// Snapshot implements kv.Store.
func (l *LevelDB) Snapshot() kv.Snapshot {
	snap, err := l.db.GetSnapshot()
	if err != nil {
		return &errSnapshot{err}
	}
	return &snapshot{snap}
}

// DeleteRange implements kv.Store, removing every key in [r.Start, r.Limit)
// in one batch.
func (l *LevelDB) DeleteRange(ctx context.Context, r kv.Range) error {
	it := l.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, nil)
	defer it.Release()

	batch := new(leveldb.Batch)
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	if err := it.Error(); err != nil {
		return err
	}
	return l.db.Write(batch, nil)
}

type iter struct {
	it iterator.Iterator
}

func (i *iter) First() bool   { return i.it.First() }
func (i *iter) Last() bool    { return i.it.Last() }
func (i *iter) Next() bool    { return i.it.Next() }
func (i *iter) Prev() bool    { return i.it.Prev() }
func (i *iter) Key() []byte   { return i.it.Key() }
func (i *iter) Value() []byte { return i.it.Value() }
func (i *iter) Release()      { i.it.Release() }
func (i *iter) Error() error  { return i.it.Error() }

type bulk struct {
	db    *leveldb.DB
	batch *leveldb.Batch
	auto  bool
}

func (b *bulk) Put(key, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *bulk) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

func (b *bulk) EnableAutoFlush() { b.auto = true }

func (b *bulk) Write() error {
	return b.db.Write(b.batch, nil)
}

type snapshot struct {
	snap *leveldb.Snapshot
}

func (s *snapshot) Get(key []byte) ([]byte, error) { return s.snap.Get(key, nil) }
func (s *snapshot) Has(key []byte) (bool, error)   { return s.snap.Has(key, nil) }
func (s *snapshot) IsNotFound(err error) bool      { return errors.Is(err, leveldb.ErrNotFound) }
func (s *snapshot) Release()                       { s.snap.Release() }

// errSnapshot is returned when taking a snapshot fails; every call surfaces
// the original error instead of panicking.
type errSnapshot struct{ err error }

func (e *errSnapshot) Get(_ []byte) ([]byte, error) { return nil, e.err }
func (e *errSnapshot) Has(_ []byte) (bool, error)   { return false, e.err }
func (e *errSnapshot) IsNotFound(error) bool        { return false }
func (e *errSnapshot) Release()                     {}
