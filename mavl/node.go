// Package mavl implements the authenticated key/value store: a key-addressed
// AVL binary search tree whose every node carries a cryptographic hash
// chaining down to its children, making the root hash a compact commitment
// to the whole dataset.
package mavl

import "github.com/merkleavl/mavl/hash"

// Node is the atomic unit of persistence. Child and parent references are
// the referenced node's key (key-addressing, per the design's resolution of
// the addressing-mode choice): a node is reachable with a single backing
// store read, and the backing store's natural key order is in-order BST
// order, so iteration rides directly on the store's cursor.
type Node struct {
	Key, Value []byte
	KVHash     hash.Digest

	LeftHeight, RightHeight uint8
	LeftRef, RightRef       []byte
	ParentRef               []byte

	Hash hash.Digest
}

func newLeaf(key, value []byte) *Node {
	n := &Node{
		Key:   append([]byte(nil), key...),
		Value: append([]byte(nil), value...),
	}
	n.KVHash = hash.Sum(n.Key, n.Value)
	n.Hash = hash.Sum(hash.Zero[:], hash.Zero[:], n.KVHash[:])
	return n
}

// height is 1 + the taller child's height, where an absent child counts as
// 0 (so a fresh leaf has height 1).
func (n *Node) height() uint8 {
	if n.LeftHeight > n.RightHeight {
		return n.LeftHeight + 1
	}
	return n.RightHeight + 1
}

func (n *Node) balance() int {
	return int(n.RightHeight) - int(n.LeftHeight)
}

func (n *Node) setValue(value []byte) {
	n.Value = append([]byte(nil), value...)
	n.KVHash = hash.Sum(n.Key, n.Value)
}

// clone copies n so the caller may mutate it without corrupting any copy
// cached elsewhere (the shared node cache in particular).
func (n *Node) clone() *Node {
	c := *n
	c.Key = append([]byte(nil), n.Key...)
	c.Value = append([]byte(nil), n.Value...)
	c.LeftRef = append([]byte(nil), n.LeftRef...)
	c.RightRef = append([]byte(nil), n.RightRef...)
	c.ParentRef = append([]byte(nil), n.ParentRef...)
	return &c
}
