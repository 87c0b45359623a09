package kv

import "context"

// Bucket is a key-prefix namespace over a shared Store, Getter, or Putter.
// An empty Bucket is a no-op prefix. Bucket keys use a single-byte or short
// ASCII prefix (e.g. "n" for tree nodes, ":" for meta keys) per the caller's
// convention; Bucket itself is agnostic to the prefix's meaning.
type Bucket string

func (b Bucket) key(k []byte) []byte {
	if len(b) == 0 {
		return k
	}
	out := make([]byte, len(b)+len(k))
	copy(out, b)
	copy(out[len(b):], k)
	return out
}

// NewGetter returns a Getter scoped to this bucket over g.
func (b Bucket) NewGetter(g Getter) Getter {
	return &bucketGetter{b, g}
}

// NewPutter returns a Putter scoped to this bucket over p.
func (b Bucket) NewPutter(p Putter) Putter {
	return &bucketPutter{b, p}
}

// NewStore returns a Store scoped to this bucket over s.
func (b Bucket) NewStore(s Store) Store {
	return &bucketStore{b, s}
}

type bucketGetter struct {
	bucket Bucket
	g      Getter
}

func (b *bucketGetter) Get(key []byte) ([]byte, error) { return b.g.Get(b.bucket.key(key)) }
func (b *bucketGetter) Has(key []byte) (bool, error)   { return b.g.Has(b.bucket.key(key)) }

type bucketPutter struct {
	bucket Bucket
	p      Putter
}

func (b *bucketPutter) Put(key, value []byte) error { return b.p.Put(b.bucket.key(key), value) }
func (b *bucketPutter) Delete(key []byte) error      { return b.p.Delete(b.bucket.key(key)) }

type bucketStore struct {
	bucket Bucket
	s      Store
}

func (b *bucketStore) Get(key []byte) ([]byte, error) { return b.s.Get(b.bucket.key(key)) }
func (b *bucketStore) Has(key []byte) (bool, error)   { return b.s.Has(b.bucket.key(key)) }
func (b *bucketStore) Put(key, value []byte) error    { return b.s.Put(b.bucket.key(key), value) }
func (b *bucketStore) Delete(key []byte) error        { return b.s.Delete(b.bucket.key(key)) }
func (b *bucketStore) IsNotFound(err error) bool      { return b.s.IsNotFound(err) }

func (b *bucketStore) Iterate(r Range) Iterator {
	scoped := Range{Start: b.bucket.key(r.Start)}
	if r.Limit != nil {
		scoped.Limit = b.bucket.key(r.Limit)
	} else if len(b.bucket) > 0 {
		scoped.Limit = prefixUpperBound([]byte(b.bucket))
	}
	return &bucketIterator{prefixLen: len(b.bucket), it: b.s.Iterate(scoped)}
}

func (b *bucketStore) Bulk() Bulk {
	return &bucketBulk{b.bucket, b.s.Bulk()}
}

func (b *bucketStore) Snapshot() Snapshot {
	return &bucketSnapshot{b.bucket, b.s.Snapshot()}
}

func (b *bucketStore) DeleteRange(ctx context.Context, r Range) error {
	scoped := Range{Start: b.bucket.key(r.Start)}
	if r.Limit != nil {
		scoped.Limit = b.bucket.key(r.Limit)
	} else if len(b.bucket) > 0 {
		scoped.Limit = prefixUpperBound([]byte(b.bucket))
	}
	return b.s.DeleteRange(ctx, scoped)
}

// prefixUpperBound returns the least key that is strictly greater than every
// key beginning with prefix, or nil if prefix is all 0xff (unbounded above).
func prefixUpperBound(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

type bucketIterator struct {
	prefixLen int
	it        Iterator
}

func (b *bucketIterator) First() bool { return b.it.First() }
func (b *bucketIterator) Last() bool  { return b.it.Last() }
func (b *bucketIterator) Next() bool  { return b.it.Next() }
func (b *bucketIterator) Prev() bool  { return b.it.Prev() }
func (b *bucketIterator) Key() []byte {
	k := b.it.Key()
	if len(k) < b.prefixLen {
		return nil
	}
	return k[b.prefixLen:]
}
func (b *bucketIterator) Value() []byte { return b.it.Value() }
func (b *bucketIterator) Release()      { b.it.Release() }
func (b *bucketIterator) Error() error  { return b.it.Error() }

type bucketBulk struct {
	bucket Bucket
	bulk   Bulk
}

func (b *bucketBulk) Put(key, value []byte) error { return b.bulk.Put(b.bucket.key(key), value) }
func (b *bucketBulk) Delete(key []byte) error      { return b.bulk.Delete(b.bucket.key(key)) }
func (b *bucketBulk) EnableAutoFlush()             { b.bulk.EnableAutoFlush() }
func (b *bucketBulk) Write() error                 { return b.bulk.Write() }

type bucketSnapshot struct {
	bucket Bucket
	snap   Snapshot
}

func (b *bucketSnapshot) Get(key []byte) ([]byte, error) { return b.snap.Get(b.bucket.key(key)) }
func (b *bucketSnapshot) Has(key []byte) (bool, error)   { return b.snap.Has(b.bucket.key(key)) }
func (b *bucketSnapshot) IsNotFound(err error) bool      { return b.snap.IsNotFound(err) }
func (b *bucketSnapshot) Release()                       { b.snap.Release() }
