package mavl

import (
	"github.com/merkleavl/mavl/cache"
	"github.com/merkleavl/mavl/kv"
	"github.com/merkleavl/mavl/txlog"
)

// Backing-store namespaces (spec §6): a single-byte prefix isolates the
// node records from the reserved meta keys.
const (
	nodeBucket kv.Bucket = "n"
	metaBucket kv.Bucket = ":"
)

var rootMetaKey = []byte("root")

// tombstone marks a staged deletion in the transaction's journal; it is
// never written to the backing store.
var tombstone = &Node{}

// txn stages node reads and writes for a single tree operation: a read
// after a write within the same txn observes the write, and nothing reaches
// the backing store until commit. It is built on txlog.StackedMap, using
// only its base layer.
type txn struct {
	raw   kv.Store // unscoped backing store, for the atomic commit bulk
	nodes kv.Store // raw scoped to nodeBucket, for reads
	cache *cache.LRU
	sm    *txlog.StackedMap
}

func newTxn(raw kv.Store, nodeCache *cache.LRU) *txn {
	t := &txn{raw: raw, nodes: nodeBucket.NewStore(raw), cache: nodeCache}
	t.sm = txlog.New(t.load)
	return t
}

func (t *txn) load(key interface{}) (interface{}, bool, error) {
	k := key.(string)
	if t.cache != nil {
		if v, ok := t.cache.Get(k); ok {
			return v, true, nil
		}
	}
	raw, err := t.nodes.Get([]byte(k))
	if err != nil {
		if t.nodes.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, wrapBackingStore(err)
	}
	n, err := decodeNode(raw)
	if err != nil {
		return nil, false, err
	}
	if t.cache != nil {
		t.cache.Add(k, n)
	}
	return n, true, nil
}

// get loads the node addressed by ref, or (nil, false, nil) if ref is
// empty ("none") or absent.
func (t *txn) get(ref []byte) (*Node, bool, error) {
	if len(ref) == 0 {
		return nil, false, nil
	}
	v, found, err := t.sm.Get(string(ref))
	if err != nil || !found {
		return nil, false, err
	}
	n := v.(*Node)
	if n == tombstone {
		return nil, false, nil
	}
	return n, true, nil
}

// put stages n, keyed by its own Key (key-addressing).
func (t *txn) put(n *Node) {
	t.sm.Put(string(n.Key), n)
}

// del stages ref's record for removal.
func (t *txn) del(ref []byte) {
	t.sm.Put(string(ref), tombstone)
}

// merge replays other's staged journal into t, in journal order. Used to
// fold a forked subtree transaction (see applyRec) back into its parent
// once both sides of a parallel batch recursion have returned.
func (t *txn) merge(other *txn) {
	other.sm.Journal(func(k, v interface{}) bool {
		t.sm.Put(k, v)
		return true
	})
}

// commit flushes every staged write to a single atomic backing-store batch
// and points the reserved :root meta key at newRootRef (nil for an empty
// tree). On any error nothing is written; the caller's in-memory root
// reference must not be advanced.
func (t *txn) commit(newRootRef []byte) error {
	bulk := t.raw.Bulk()
	var werr error
	t.sm.Journal(func(k, v interface{}) bool {
		key := append(append([]byte{}, []byte(nodeBucket)...), []byte(k.(string))...)
		n := v.(*Node)
		if n == tombstone {
			werr = bulk.Delete(key)
			if t.cache != nil {
				t.cache.Remove(k.(string))
			}
		} else {
			werr = bulk.Put(key, encodeNode(n))
			if t.cache != nil {
				t.cache.Add(k.(string), n)
			}
		}
		return werr == nil
	})
	if werr != nil {
		return wrapBackingStore(werr)
	}

	rootKey := append(append([]byte{}, []byte(metaBucket)...), rootMetaKey...)
	if len(newRootRef) == 0 {
		werr = bulk.Delete(rootKey)
	} else {
		werr = bulk.Put(rootKey, newRootRef)
	}
	if werr != nil {
		return wrapBackingStore(werr)
	}
	return wrapBackingStore(bulk.Write())
}
