package mavl

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/merkleavl/mavl/cache"
	"github.com/merkleavl/mavl/hash"
	"github.com/merkleavl/mavl/kv"
)

var logger = log.New("pkg", "mavl")

// RootController is the tree's single entry point (spec §4.6): it holds the
// current root reference, serializes mutators behind a write lock, and
// persists the root under the reserved ":root" meta key on every commit.
// Readers take the same lock only to copy the current root reference, then
// read a kv.Snapshot of the backing store. Because a mutator holds the lock
// for its whole operation, a read that starts during a mutation waits until
// that mutation has finished.
type RootController struct {
	mu      sync.Mutex
	raw     kv.Store
	nodes   kv.Store
	meta    kv.Store
	cache   *cache.LRU
	rootRef []byte
}

// Open loads the reserved :root meta key, if present, and returns a ready
// controller. An absent :root means an empty tree.
func Open(store kv.Store, nodeCache *cache.LRU) (*RootController, error) {
	rc := &RootController{
		raw:   store,
		nodes: nodeBucket.NewStore(store),
		meta:  metaBucket.NewStore(store),
		cache: nodeCache,
	}
	ref, err := rc.meta.Get(rootMetaKey)
	if err != nil {
		if rc.meta.IsNotFound(err) {
			return rc, nil
		}
		return nil, wrapBackingStore(err)
	}
	rc.rootRef = ref
	return rc, nil
}

func (rc *RootController) currentRoot() []byte {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]byte(nil), rc.rootRef...)
}

// RootHash returns the current root's node_hash, or (Zero, false, nil) for
// an empty tree.
func (rc *RootController) RootHash() (hash.Digest, bool, error) {
	ref := rc.currentRoot()
	if len(ref) == 0 {
		return hash.Zero, false, nil
	}
	snap := rc.nodes.Snapshot()
	defer snap.Release()
	n, found, err := readNode(snap, ref)
	if err != nil {
		return hash.Zero, false, err
	}
	if !found {
		return hash.Zero, false, errors.WithStack(ErrInvariantViolated)
	}
	return n.Hash, true, nil
}

// Get returns the value stored for key, or ErrNotFound.
func (rc *RootController) Get(ctx context.Context, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, errors.WithStack(ErrInvalidBatch)
	}
	ref := rc.currentRoot()
	snap := rc.nodes.Snapshot()
	defer snap.Release()

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(ErrCancelled)
		}
		if len(ref) == 0 {
			return nil, errors.WithStack(ErrNotFound)
		}
		n, found, err := readNode(snap, ref)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.WithStack(ErrInvariantViolated)
		}
		logger.Trace("get", "key", string(key), "at", string(n.Key))
		switch c := bytes.Compare(key, n.Key); {
		case c == 0:
			return n.Value, nil
		case c < 0:
			ref = n.LeftRef
		default:
			ref = n.RightRef
		}
		if len(ref) == 0 {
			return nil, errors.WithStack(ErrNotFound)
		}
	}
}

// Put inserts or overwrites a single key. It runs the single-key insert path
// (putRec) directly rather than going through Apply.
func (rc *RootController) Put(ctx context.Context, key, value []byte) error {
	if len(key) == 0 {
		return errors.WithStack(ErrInvalidBatch)
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return errors.WithStack(ErrCancelled)
	}
	t := newTxn(rc.raw, rc.cache)
	newRoot, err := putRec(t, rc.rootRef, nil, key, value)
	if err != nil {
		return err
	}
	if err := t.commit(newRoot); err != nil {
		return err
	}
	rc.rootRef = newRoot
	logger.Info("put committed", "key", string(key))
	return nil
}

// Delete removes key, returning ErrNotFound if it was absent.
func (rc *RootController) Delete(ctx context.Context, key []byte) error {
	if len(key) == 0 {
		return errors.WithStack(ErrInvalidBatch)
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return errors.WithStack(ErrCancelled)
	}
	t := newTxn(rc.raw, rc.cache)
	newRoot, removed, err := deleteRec(t, rc.rootRef, key, nil)
	if err != nil {
		return err
	}
	if !removed {
		return errors.WithStack(ErrNotFound)
	}
	if err := t.commit(newRoot); err != nil {
		return err
	}
	rc.rootRef = newRoot
	logger.Info("delete committed", "key", string(key))
	return nil
}

// Apply atomically applies a batch of Put/Delete operations, trusting the
// caller that ops are already sorted by key and contain no duplicates
// (spec §4.4.4). Use ApplyChecked when that cannot be guaranteed.
func (rc *RootController) Apply(ctx context.Context, ops []Op) error {
	return rc.apply(ctx, ops, false)
}

// ApplyChecked sorts ops, rejects empty and duplicate keys with
// ErrInvalidBatch, then applies the batch atomically (spec §4.4.4, §8 S6).
func (rc *RootController) ApplyChecked(ctx context.Context, ops []Op) error {
	return rc.apply(ctx, ops, true)
}

func (rc *RootController) apply(ctx context.Context, ops []Op, checked bool) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return errors.WithStack(ErrCancelled)
	}
	if checked {
		var err error
		ops, err = normalizeBatch(ops)
		if err != nil {
			return err
		}
	}
	t := newTxn(rc.raw, rc.cache)
	newRoot, err := applyRec(ctx, t, rc.rootRef, nil, ops)
	if err != nil {
		return err
	}
	if err := t.commit(newRoot); err != nil {
		return err
	}
	rc.rootRef = newRoot
	logger.Info("batch applied", "ops", len(ops), "checked", checked)
	return nil
}

// ProveKeys generates a proof exposing exactly the subset of keys present
// in the tree (spec §4.5.4).
func (rc *RootController) ProveKeys(ctx context.Context, keys [][]byte) (*Proof, error) {
	ref := rc.currentRoot()
	sorted := append([][]byte(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	snap := rc.nodes.Snapshot()
	defer snap.Release()
	load := snapshotLoader(ctx, snap)

	var tokens []Token
	if err := genKeys(load, ref, sorted, &tokens); err != nil {
		return nil, err
	}
	return &Proof{Tokens: tokens}, nil
}

// ProveRange generates a streaming proof of every key/value pair in
// [from, to] (spec §4.5.5).
func (rc *RootController) ProveRange(ctx context.Context, from, to []byte) (*Proof, error) {
	ref := rc.currentRoot()
	snap := rc.nodes.Snapshot()
	defer snap.Release()
	load := snapshotLoader(ctx, snap)

	var tokens []Token
	if err := genRange(load, ref, from, to, &tokens); err != nil {
		return nil, err
	}
	return &Proof{Tokens: tokens}, nil
}

// BranchRange returns the sparse proof subtree for [from, to] (spec
// §4.4.5), represented as the same proof-token stream ProveRange produces.
func (rc *RootController) BranchRange(ctx context.Context, from, to []byte) (*Proof, error) {
	return rc.ProveRange(ctx, from, to)
}

// IterFrom returns a lazy, restartable ascending iterator starting at the
// least key >= from.
func (rc *RootController) IterFrom(ctx context.Context, from []byte) *Iterator {
	return newIterator(ctx, rc.nodes, from)
}

func snapshotLoader(ctx context.Context, snap kv.Snapshot) nodeLoader {
	return func(ref []byte) (*Node, error) {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(ErrCancelled)
		}
		n, found, err := readNode(snap, ref)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.WithStack(ErrInvariantViolated)
		}
		return n, nil
	}
}

func readNode(g kv.Getter, ref []byte) (*Node, bool, error) {
	notFounder, _ := g.(kv.IsNotFounder)
	raw, err := g.Get(ref)
	if err != nil {
		if notFounder != nil && notFounder.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, wrapBackingStore(err)
	}
	n, err := decodeNode(raw)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}
