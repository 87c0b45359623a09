package mavl

import (
	"bytes"
	"context"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/merkleavl/mavl/hash"
)

// Op is one element of a batch: either Put(Value) or Delete, keyed by Key.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// normalizeBatch sorts ops by key and rejects empty keys or duplicates, per
// the checked batch-apply entry point (spec §4.4.4, §8 S6).
func normalizeBatch(ops []Op) ([]Op, error) {
	out := append([]Op(nil), ops...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	for i, op := range out {
		if len(op.Key) == 0 {
			return nil, errors.WithStack(ErrInvalidBatch)
		}
		if i > 0 && bytes.Equal(out[i-1].Key, op.Key) {
			return nil, errors.WithStack(ErrInvalidBatch)
		}
	}
	return out, nil
}

// search descends from ref for key, returning the node if found, or the
// last node visited (with ok=false) when the descent runs into an empty
// child slot — the insertion site and the ancestor whose hash/height must
// be recomputed.
func search(t *txn, ref []byte, key []byte) (n *Node, ok bool, err error) {
	for {
		if len(ref) == 0 {
			return n, false, nil
		}
		cur, found, err := t.get(ref)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return nil, false, errors.WithStack(ErrInvariantViolated)
		}
		n = cur
		switch c := bytes.Compare(key, cur.Key); {
		case c == 0:
			return cur, true, nil
		case c < 0:
			if len(cur.LeftRef) == 0 {
				return cur, false, nil
			}
			ref = cur.LeftRef
		default:
			if len(cur.RightRef) == 0 {
				return cur, false, nil
			}
			ref = cur.RightRef
		}
	}
}

func childHeightAndHash(t *txn, ref []byte) (uint8, hash.Digest, error) {
	if len(ref) == 0 {
		return 0, hash.Zero, nil
	}
	c, found, err := t.get(ref)
	if err != nil {
		return 0, hash.Zero, err
	}
	if !found {
		return 0, hash.Zero, errors.WithStack(ErrInvariantViolated)
	}
	return c.height(), c.Hash, nil
}

// recomputeHeightsAndHash refreshes n's height fields and node_hash from
// its children as currently staged in t. The caller must still t.put(n).
func recomputeHeightsAndHash(t *txn, n *Node) error {
	lh, lHash, err := childHeightAndHash(t, n.LeftRef)
	if err != nil {
		return err
	}
	rh, rHash, err := childHeightAndHash(t, n.RightRef)
	if err != nil {
		return err
	}
	n.LeftHeight = lh
	n.RightHeight = rh
	n.Hash = hash.Sum(lHash[:], rHash[:], n.KVHash[:])
	return nil
}

// setParent rewrites the node at ref's ParentRef, if it differs, and
// restages it. A no-op for an empty ref.
func setParent(t *txn, ref []byte, parentRef []byte) error {
	if len(ref) == 0 {
		return nil
	}
	child, found, err := t.get(ref)
	if err != nil {
		return err
	}
	if !found {
		return errors.WithStack(ErrInvariantViolated)
	}
	if !bytes.Equal(child.ParentRef, parentRef) {
		c := child.clone()
		c.ParentRef = append([]byte(nil), parentRef...)
		t.put(c)
	}
	return nil
}

// rotateLeft rotates n down and its right child up. n.RightRef must be set.
// Returns the new subtree root's ref; n's and the pivot's heights/hashes are
// recomputed bottom-up before returning, per spec §4.4.3.
func rotateLeft(t *txn, n *Node) ([]byte, error) {
	pivot0, found, err := t.get(n.RightRef)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.WithStack(ErrInvariantViolated)
	}
	pivot := pivot0.clone()
	orphan := pivot.LeftRef
	oldParent := n.ParentRef

	n.RightRef = orphan
	if err := setParent(t, orphan, n.Key); err != nil {
		return nil, err
	}
	if err := recomputeHeightsAndHash(t, n); err != nil {
		return nil, err
	}

	pivot.LeftRef = append([]byte(nil), n.Key...)
	pivot.ParentRef = oldParent
	n.ParentRef = append([]byte(nil), pivot.Key...)
	t.put(n)

	if err := recomputeHeightsAndHash(t, pivot); err != nil {
		return nil, err
	}
	t.put(pivot)
	return pivot.Key, nil
}

// rotateRight mirrors rotateLeft for a left-heavy n.
func rotateRight(t *txn, n *Node) ([]byte, error) {
	pivot0, found, err := t.get(n.LeftRef)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.WithStack(ErrInvariantViolated)
	}
	pivot := pivot0.clone()
	orphan := pivot.RightRef
	oldParent := n.ParentRef

	n.LeftRef = orphan
	if err := setParent(t, orphan, n.Key); err != nil {
		return nil, err
	}
	if err := recomputeHeightsAndHash(t, n); err != nil {
		return nil, err
	}

	pivot.RightRef = append([]byte(nil), n.Key...)
	pivot.ParentRef = oldParent
	n.ParentRef = append([]byte(nil), pivot.Key...)
	t.put(n)

	if err := recomputeHeightsAndHash(t, pivot); err != nil {
		return nil, err
	}
	t.put(pivot)
	return pivot.Key, nil
}

// rebalance restores |balance| <= 1 at n, performing a single or double
// rotation as needed, then ensures the resulting subtree root's ParentRef
// is parentRef. Returns the (possibly different) subtree root's ref.
func rebalance(t *txn, n *Node, parentRef []byte) ([]byte, error) {
	var newRootRef []byte
	switch bal := n.balance(); {
	case bal > 1:
		rightChild, found, err := t.get(n.RightRef)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.WithStack(ErrInvariantViolated)
		}
		if rightChild.balance() < 0 {
			newRightRef, err := rotateRight(t, rightChild.clone())
			if err != nil {
				return nil, err
			}
			n.RightRef = newRightRef
			if err := setParent(t, newRightRef, n.Key); err != nil {
				return nil, err
			}
			if err := recomputeHeightsAndHash(t, n); err != nil {
				return nil, err
			}
			t.put(n)
		}
		newRootRef, err = rotateLeft(t, n)
		if err != nil {
			return nil, err
		}
	case bal < -1:
		leftChild, found, err := t.get(n.LeftRef)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.WithStack(ErrInvariantViolated)
		}
		if leftChild.balance() > 0 {
			newLeftRef, err := rotateLeft(t, leftChild.clone())
			if err != nil {
				return nil, err
			}
			n.LeftRef = newLeftRef
			if err := setParent(t, newLeftRef, n.Key); err != nil {
				return nil, err
			}
			if err := recomputeHeightsAndHash(t, n); err != nil {
				return nil, err
			}
			t.put(n)
		}
		newRootRef, err = rotateRight(t, n)
		if err != nil {
			return nil, err
		}
	default:
		newRootRef = append([]byte(nil), n.Key...)
	}
	if err := setParent(t, newRootRef, parentRef); err != nil {
		return nil, err
	}
	return newRootRef, nil
}

// putRec inserts or updates key=value in the subtree rooted at ref (nil for
// an empty subtree), wiring the result's ParentRef to parentRef. Returns
// the new subtree root's ref (spec §4.4.2).
func putRec(t *txn, ref []byte, parentRef []byte, key, value []byte) ([]byte, error) {
	if len(ref) == 0 {
		n := newLeaf(key, value)
		n.ParentRef = append([]byte(nil), parentRef...)
		t.put(n)
		return n.Key, nil
	}
	n0, found, err := t.get(ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.WithStack(ErrInvariantViolated)
	}
	n := n0.clone()
	n.ParentRef = append([]byte(nil), parentRef...)

	switch c := bytes.Compare(key, n.Key); {
	case c == 0:
		n.setValue(value)
		t.put(n)
		return n.Key, nil
	case c < 0:
		newLeftRef, err := putRec(t, n.LeftRef, n.Key, key, value)
		if err != nil {
			return nil, err
		}
		n.LeftRef = newLeftRef
	default:
		newRightRef, err := putRec(t, n.RightRef, n.Key, key, value)
		if err != nil {
			return nil, err
		}
		n.RightRef = newRightRef
	}
	if err := recomputeHeightsAndHash(t, n); err != nil {
		return nil, err
	}
	t.put(n)
	return rebalance(t, n, parentRef)
}

// extremeKV returns the key/value of the rightmost (rightMost=true) or
// leftmost node of the subtree rooted at ref.
func extremeKV(t *txn, ref []byte, rightMost bool) (key, value []byte, err error) {
	for {
		n, found, err := t.get(ref)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return nil, nil, errors.WithStack(ErrInvariantViolated)
		}
		var next []byte
		if rightMost {
			next = n.RightRef
		} else {
			next = n.LeftRef
		}
		if len(next) == 0 {
			return n.Key, n.Value, nil
		}
		ref = next
	}
}

// removeSelf detaches n — whose LeftRef/RightRef are already current —
// from the tree, splicing in a successor from the taller child subtree
// (ties break left) when n has two children, per spec §4.4.2.
func removeSelf(t *txn, n *Node, parentRef []byte) ([]byte, error) {
	t.del(n.Key)
	switch {
	case len(n.LeftRef) == 0 && len(n.RightRef) == 0:
		return nil, nil
	case len(n.LeftRef) == 0:
		if err := setParent(t, n.RightRef, parentRef); err != nil {
			return nil, err
		}
		return n.RightRef, nil
	case len(n.RightRef) == 0:
		if err := setParent(t, n.LeftRef, parentRef); err != nil {
			return nil, err
		}
		return n.LeftRef, nil
	default:
		var succKey, succValue []byte
		var err error
		if n.LeftHeight >= n.RightHeight {
			succKey, succValue, err = extremeKV(t, n.LeftRef, true)
			if err != nil {
				return nil, err
			}
			newLeftRef, _, err := deleteRec(t, n.LeftRef, succKey, nil)
			if err != nil {
				return nil, err
			}
			n.LeftRef = newLeftRef
		} else {
			succKey, succValue, err = extremeKV(t, n.RightRef, false)
			if err != nil {
				return nil, err
			}
			newRightRef, _, err := deleteRec(t, n.RightRef, succKey, nil)
			if err != nil {
				return nil, err
			}
			n.RightRef = newRightRef
		}
		spliced := &Node{
			Key:       succKey,
			Value:     succValue,
			LeftRef:   n.LeftRef,
			RightRef:  n.RightRef,
			ParentRef: append([]byte(nil), parentRef...),
		}
		spliced.KVHash = hash.Sum(spliced.Key, spliced.Value)
		if err := setParent(t, spliced.LeftRef, spliced.Key); err != nil {
			return nil, err
		}
		if err := setParent(t, spliced.RightRef, spliced.Key); err != nil {
			return nil, err
		}
		if err := recomputeHeightsAndHash(t, spliced); err != nil {
			return nil, err
		}
		t.put(spliced)
		return rebalance(t, spliced, parentRef)
	}
}

// deleteRec removes key from the subtree rooted at ref, reporting whether
// it was present. parentRef is the parent the resulting subtree root (if
// any) is re-wired to.
func deleteRec(t *txn, ref []byte, key []byte, parentRef []byte) (newRef []byte, removed bool, err error) {
	if len(ref) == 0 {
		return nil, false, nil
	}
	n0, found, err := t.get(ref)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, errors.WithStack(ErrInvariantViolated)
	}
	n := n0.clone()
	n.ParentRef = append([]byte(nil), parentRef...)

	switch c := bytes.Compare(key, n.Key); {
	case c < 0:
		newLeftRef, removed, err := deleteRec(t, n.LeftRef, key, n.Key)
		if err != nil || !removed {
			return ref, removed, err
		}
		n.LeftRef = newLeftRef
	case c > 0:
		newRightRef, removed, err := deleteRec(t, n.RightRef, key, n.Key)
		if err != nil || !removed {
			return ref, removed, err
		}
		n.RightRef = newRightRef
	default:
		newRoot, err := removeSelf(t, n, parentRef)
		return newRoot, true, err
	}
	if err := recomputeHeightsAndHash(t, n); err != nil {
		return nil, false, err
	}
	t.put(n)
	newSubRoot, err := rebalance(t, n, parentRef)
	return newSubRoot, true, err
}

// applyRec applies ops (sorted, unique, ascending by key) to the subtree
// rooted at ref. The left and right splits address disjoint key ranges and
// disjoint node sets, so they run in independent forked transactions
// (spec §4.4.4) merged back into t once both return.
func applyRec(ctx context.Context, t *txn, ref []byte, parentRef []byte, ops []Op) ([]byte, error) {
	if len(ops) == 0 {
		return ref, nil
	}
	if len(ref) == 0 {
		cur := []byte(nil)
		for _, op := range ops {
			if op.Delete {
				continue
			}
			var err error
			cur, err = putRec(t, cur, parentRef, op.Key, op.Value)
			if err != nil {
				return nil, err
			}
		}
		return cur, nil
	}

	n0, found, err := t.get(ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.WithStack(ErrInvariantViolated)
	}
	n := n0.clone()
	n.ParentRef = append([]byte(nil), parentRef...)

	i := sort.Search(len(ops), func(i int) bool { return bytes.Compare(ops[i].Key, n.Key) >= 0 })
	var left, right []Op
	var selfOp Op
	hasSelfOp := false
	if i < len(ops) && bytes.Equal(ops[i].Key, n.Key) {
		selfOp, hasSelfOp = ops[i], true
		left, right = ops[:i], ops[i+1:]
	} else {
		left, right = ops[:i], ops[i:]
	}

	leftTxn := newTxn(t.raw, t.cache)
	rightTxn := newTxn(t.raw, t.cache)

	var newLeftRef, newRightRef []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		newLeftRef, err = applyRec(gctx, leftTxn, n.LeftRef, n.Key, left)
		return err
	})
	g.Go(func() error {
		var err error
		newRightRef, err = applyRec(gctx, rightTxn, n.RightRef, n.Key, right)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	t.merge(leftTxn)
	t.merge(rightTxn)

	n.LeftRef = newLeftRef
	n.RightRef = newRightRef

	if hasSelfOp && selfOp.Delete {
		return removeSelf(t, n, parentRef)
	}
	if hasSelfOp {
		n.setValue(selfOp.Value)
	}
	if err := recomputeHeightsAndHash(t, n); err != nil {
		return nil, err
	}
	t.put(n)
	return rebalance(t, n, parentRef)
}
