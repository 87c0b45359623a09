package mavl

import (
	"encoding/binary"

	"github.com/merkleavl/mavl/hash"
)

// encodeNode renders n per the fixed on-disk layout:
//
//	hash(32) kv_hash(32) left_height(u8) right_height(u8)
//	varlen(key) varlen(value) varlen(left_ref) varlen(right_ref) varlen(parent_ref)
func encodeNode(n *Node) []byte {
	buf := make([]byte, 0, 2*hash.Size+2+5*binary.MaxVarintLen64+len(n.Key)+len(n.Value)+len(n.LeftRef)+len(n.RightRef)+len(n.ParentRef))
	buf = append(buf, n.Hash[:]...)
	buf = append(buf, n.KVHash[:]...)
	buf = append(buf, n.LeftHeight, n.RightHeight)
	buf = putVarBytes(buf, n.Key)
	buf = putVarBytes(buf, n.Value)
	buf = putVarBytes(buf, n.LeftRef)
	buf = putVarBytes(buf, n.RightRef)
	buf = putVarBytes(buf, n.ParentRef)
	return buf
}

// decodeNode reverses encodeNode, failing with ErrCorruptNode on any
// truncation, bad length prefix, or impossible field combination (a zero
// child height paired with a present child ref, or vice versa).
func decodeNode(b []byte) (*Node, error) {
	if len(b) < 2*hash.Size+2 {
		return nil, ErrCorruptNode
	}
	n := &Node{}
	copy(n.Hash[:], b[:hash.Size])
	b = b[hash.Size:]
	copy(n.KVHash[:], b[:hash.Size])
	b = b[hash.Size:]
	n.LeftHeight, n.RightHeight = b[0], b[1]
	b = b[2:]

	var err error
	if n.Key, b, err = getVarBytes(b); err != nil {
		return nil, err
	}
	if len(n.Key) == 0 {
		return nil, ErrCorruptNode
	}
	if n.Value, b, err = getVarBytes(b); err != nil {
		return nil, err
	}
	if n.LeftRef, b, err = getVarBytes(b); err != nil {
		return nil, err
	}
	if n.RightRef, b, err = getVarBytes(b); err != nil {
		return nil, err
	}
	if n.ParentRef, b, err = getVarBytes(b); err != nil {
		return nil, err
	}
	if len(b) != 0 {
		return nil, ErrCorruptNode
	}
	if (n.LeftHeight == 0) != (len(n.LeftRef) == 0) {
		return nil, ErrCorruptNode
	}
	if (n.RightHeight == 0) != (len(n.RightRef) == 0) {
		return nil, ErrCorruptNode
	}
	return n, nil
}

func putVarBytes(buf []byte, b []byte) []byte {
	var lb [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lb[:], uint64(len(b)))
	buf = append(buf, lb[:n]...)
	buf = append(buf, b...)
	return buf
}

func getVarBytes(b []byte) (out, rest []byte, err error) {
	l, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, ErrCorruptNode
	}
	b = b[n:]
	if uint64(len(b)) < l {
		return nil, nil, ErrCorruptNode
	}
	if l == 0 {
		return nil, b, nil
	}
	return append([]byte(nil), b[:l]...), b[l:], nil
}
