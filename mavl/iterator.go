package mavl

import (
	"context"

	"github.com/merkleavl/mavl/kv"
)

// Iterator walks committed, persisted nodes in ascending key order starting
// at the least key >= the requested start. Because nodes are key-addressed,
// the backing store's natural key order over the node namespace already is
// in-order BST order (spec §4.4.1): no tree descent is needed.
type Iterator struct {
	it  kv.Iterator
	ctx context.Context
	err error
	cur *Node
}

func newIterator(ctx context.Context, nodes kv.Store, from []byte) *Iterator {
	return &Iterator{it: nodes.Iterate(kv.Range{Start: from}), ctx: ctx}
}

// Next advances to the next node, returning false at end-of-range, on a
// decode error, or if ctx is cancelled; check Err to distinguish them.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = ErrCancelled
		return false
	}
	if !it.it.Next() {
		it.err = it.it.Error()
		return false
	}
	n, err := decodeNode(it.it.Value())
	if err != nil {
		it.err = err
		return false
	}
	it.cur = n
	return true
}

// Node returns the node at the iterator's current position.
func (it *Iterator) Node() *Node { return it.cur }

// Err reports the error that stopped iteration, if any.
func (it *Iterator) Err() error { return it.err }

// Release must be called once iteration is done.
func (it *Iterator) Release() { it.it.Release() }
