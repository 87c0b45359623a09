package store

import (
	"context"
	"time"

	"github.com/merkleavl/mavl/cache"
	"github.com/merkleavl/mavl/hash"
	"github.com/merkleavl/mavl/kv"
	"github.com/merkleavl/mavl/mavl"
	"github.com/merkleavl/mavl/metrics"
)

// Tree is a named, metrics-instrumented handle onto a mavl.RootController.
// Every named tree opened from the same DB shares the DB's node cache but
// is otherwise fully isolated: its keys, its root pointer, its proofs.
type Tree struct {
	name string
	rc   *mavl.RootController

	ops     metrics.CountVecMeter
	latency metrics.HistogramVecMeter
}

func newTree(name string, bucketed kv.Store, nodeCache *cache.LRU) (*Tree, error) {
	rc, err := mavl.Open(bucketed, nodeCache)
	if err != nil {
		return nil, err
	}
	return &Tree{
		name:    name,
		rc:      rc,
		ops:     metrics.CounterVec("tree_ops_total", []string{"tree", "op"}),
		latency: metrics.HistogramVec("tree_op_latency_us", []string{"tree", "op"}, nil),
	}, nil
}

// track records one call to op, incrementing its counter and observing its
// wall-clock latency in microseconds. Every exported method except RootHash
// and IterFrom calls it with defer at its top.
func (t *Tree) track(op string) func() {
	start := time.Now()
	t.ops.AddWithLabel(1, map[string]string{"tree": t.name, "op": op})
	return func() {
		labels := map[string]string{"tree": t.name, "op": op}
		t.latency.ObserveWithLabels(time.Since(start).Microseconds(), labels)
	}
}

// RootHash returns the tree's current root hash, or (Zero, false, nil) when
// empty.
func (t *Tree) RootHash() (hash.Digest, bool, error) {
	return t.rc.RootHash()
}

// Get returns the value stored for key.
func (t *Tree) Get(ctx context.Context, key []byte) ([]byte, error) {
	defer t.track("get")()
	return t.rc.Get(ctx, key)
}

// Put inserts or overwrites key.
func (t *Tree) Put(ctx context.Context, key, value []byte) error {
	defer t.track("put")()
	return t.rc.Put(ctx, key, value)
}

// Delete removes key.
func (t *Tree) Delete(ctx context.Context, key []byte) error {
	defer t.track("delete")()
	return t.rc.Delete(ctx, key)
}

// Apply atomically applies a pre-sorted, de-duplicated batch.
func (t *Tree) Apply(ctx context.Context, ops []mavl.Op) error {
	defer t.track("apply")()
	return t.rc.Apply(ctx, ops)
}

// ApplyChecked sorts a batch, rejects empty or duplicate keys with
// mavl.ErrInvalidBatch, and atomically applies it.
func (t *Tree) ApplyChecked(ctx context.Context, ops []mavl.Op) error {
	defer t.track("apply_checked")()
	return t.rc.ApplyChecked(ctx, ops)
}

// ProveKeys generates a membership/absence proof for keys.
func (t *Tree) ProveKeys(ctx context.Context, keys [][]byte) (*mavl.Proof, error) {
	defer t.track("prove_keys")()
	return t.rc.ProveKeys(ctx, keys)
}

// ProveRange generates a proof of every key/value pair in [from, to].
func (t *Tree) ProveRange(ctx context.Context, from, to []byte) (*mavl.Proof, error) {
	defer t.track("prove_range")()
	return t.rc.ProveRange(ctx, from, to)
}

// BranchRange returns the sparse proof subtree for [from, to].
func (t *Tree) BranchRange(ctx context.Context, from, to []byte) (*mavl.Proof, error) {
	defer t.track("branch_range")()
	return t.rc.BranchRange(ctx, from, to)
}

// IterFrom returns an ascending iterator starting at the least key >= from.
func (t *Tree) IterFrom(ctx context.Context, from []byte) *mavl.Iterator {
	return t.rc.IterFrom(ctx, from)
}
