package mavl

import "bytes"

// nodeLoader reads a single persisted node by ref for proof generation. It
// never descends further than asked: folding a sibling subtree into a
// PushHash token costs exactly one read, since a node's own Hash field
// already summarizes its whole subtree.
type nodeLoader func(ref []byte) (*Node, error)

// genKeys emits tokens for the subtree at ref, given the sorted set of
// queried keys relevant to it (spec §4.5.4). Left-subtree tokens (or a
// single PushHash) come first, then this node's own token, then Parent if a
// left child exists, then right-subtree tokens (or PushHash), then Child.
func genKeys(load nodeLoader, ref []byte, keys [][]byte, tokens *[]Token) error {
	if len(ref) == 0 {
		return nil
	}
	n, err := load(ref)
	if err != nil {
		return err
	}

	var leftKeys, rightKeys [][]byte
	mine := false
	for _, k := range keys {
		switch bytes.Compare(k, n.Key) {
		case 0:
			mine = true
		case -1:
			leftKeys = append(leftKeys, k)
		default:
			rightKeys = append(rightKeys, k)
		}
	}

	if len(n.LeftRef) != 0 {
		if len(leftKeys) > 0 {
			if err := genKeys(load, n.LeftRef, leftKeys, tokens); err != nil {
				return err
			}
		} else {
			lc, err := load(n.LeftRef)
			if err != nil {
				return err
			}
			*tokens = append(*tokens, Token{Kind: TokenPushHash, Hash: lc.Hash})
		}
	}

	if mine {
		*tokens = append(*tokens, Token{Kind: TokenPushKv, Key: n.Key, Value: n.Value})
	} else {
		*tokens = append(*tokens, Token{Kind: TokenPushKvHash, Hash: n.KVHash})
	}
	if len(n.LeftRef) != 0 {
		*tokens = append(*tokens, Token{Kind: TokenParent})
	}

	if len(n.RightRef) != 0 {
		if len(rightKeys) > 0 {
			if err := genKeys(load, n.RightRef, rightKeys, tokens); err != nil {
				return err
			}
		} else {
			rc, err := load(n.RightRef)
			if err != nil {
				return err
			}
			*tokens = append(*tokens, Token{Kind: TokenPushHash, Hash: rc.Hash})
		}
		*tokens = append(*tokens, Token{Kind: TokenChild})
	}
	return nil
}

// genRange emits tokens for the subtree at ref, proving every key in
// [from, to] (spec §4.4.5, §4.5.5). A child subtree is folded to a single
// PushHash when it provably holds nothing in range, using the BST ordering
// invariant rather than a read of its extremes.
func genRange(load nodeLoader, ref []byte, from, to []byte, tokens *[]Token) error {
	if len(ref) == 0 {
		return nil
	}
	n, err := load(ref)
	if err != nil {
		return err
	}

	descendLeft := len(n.LeftRef) != 0 && bytes.Compare(from, n.Key) < 0
	descendRight := len(n.RightRef) != 0 && bytes.Compare(to, n.Key) > 0
	mine := bytes.Compare(n.Key, from) >= 0 && bytes.Compare(n.Key, to) <= 0

	if len(n.LeftRef) != 0 {
		if descendLeft {
			if err := genRange(load, n.LeftRef, from, to, tokens); err != nil {
				return err
			}
		} else {
			lc, err := load(n.LeftRef)
			if err != nil {
				return err
			}
			*tokens = append(*tokens, Token{Kind: TokenPushHash, Hash: lc.Hash})
		}
	}

	if mine {
		*tokens = append(*tokens, Token{Kind: TokenPushKv, Key: n.Key, Value: n.Value})
	} else {
		*tokens = append(*tokens, Token{Kind: TokenPushKvHash, Hash: n.KVHash})
	}
	if len(n.LeftRef) != 0 {
		*tokens = append(*tokens, Token{Kind: TokenParent})
	}

	if len(n.RightRef) != 0 {
		if descendRight {
			if err := genRange(load, n.RightRef, from, to, tokens); err != nil {
				return err
			}
		} else {
			rc, err := load(n.RightRef)
			if err != nil {
				return err
			}
			*tokens = append(*tokens, Token{Kind: TokenPushHash, Hash: rc.Hash})
		}
		*tokens = append(*tokens, Token{Kind: TokenChild})
	}
	return nil
}
