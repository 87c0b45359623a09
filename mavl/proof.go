package mavl

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/merkleavl/mavl/hash"
)

// TokenKind is a proof-grammar token's wire tag (spec §4.5.2).
type TokenKind uint8

const (
	TokenPushHash   TokenKind = 0x01
	TokenPushKvHash TokenKind = 0x02
	TokenPushKv     TokenKind = 0x03
	TokenParent     TokenKind = 0x10
	TokenChild      TokenKind = 0x11
)

// Token is one instruction of the stack-based proof grammar (spec §4.5.1).
type Token struct {
	Kind       TokenKind
	Hash       hash.Digest // PushHash, PushKvHash
	Key, Value []byte      // PushKv
}

// Proof is a finite sequence of tokens that, replayed against an expected
// root hash, reconstructs a sparse subtree and the key/value pairs it
// exposes.
type Proof struct {
	Tokens []Token
}

// Encode renders the proof per the fixed binary token encoding.
func (p *Proof) Encode() []byte {
	var buf []byte
	for _, tok := range p.Tokens {
		buf = append(buf, byte(tok.Kind))
		switch tok.Kind {
		case TokenPushHash, TokenPushKvHash:
			buf = append(buf, tok.Hash[:]...)
		case TokenPushKv:
			buf = putVarBytes(buf, tok.Key)
			buf = putVarBytes(buf, tok.Value)
		}
	}
	return buf
}

// DecodeProof parses a proof previously produced by Proof.Encode.
func DecodeProof(b []byte) (*Proof, error) {
	p := &Proof{}
	for len(b) > 0 {
		kind := TokenKind(b[0])
		b = b[1:]
		switch kind {
		case TokenPushHash, TokenPushKvHash:
			if len(b) < hash.Size {
				return nil, ErrCorruptNode
			}
			var h hash.Digest
			copy(h[:], b[:hash.Size])
			b = b[hash.Size:]
			p.Tokens = append(p.Tokens, Token{Kind: kind, Hash: h})
		case TokenPushKv:
			k, rest, err := getVarBytes(b)
			if err != nil {
				return nil, err
			}
			v, rest2, err := getVarBytes(rest)
			if err != nil {
				return nil, err
			}
			b = rest2
			p.Tokens = append(p.Tokens, Token{Kind: kind, Key: k, Value: v})
		case TokenParent, TokenChild:
			p.Tokens = append(p.Tokens, Token{Kind: kind})
		default:
			return nil, ErrCorruptNode
		}
	}
	return p, nil
}

// Selector picks what a proof must expose: either a set of keys or a
// contiguous [From, To] range.
type Selector interface {
	isSelector()
}

// KeySelector proves membership (or absence) of a specific set of keys.
type KeySelector struct {
	Keys [][]byte
}

func (KeySelector) isSelector() {}

// RangeSelector proves every key/value pair in [From, To].
type RangeSelector struct {
	From, To []byte
}

func (RangeSelector) isSelector() {}

type frame struct {
	kvHash      hash.Digest
	hasKV       bool
	leftHash    hash.Digest
	rightHash   hash.Digest
	leftSet     bool
	rightSet    bool
	nodeHash    hash.Digest
	key, value  []byte
	hasKeyValue bool
}

func (f *frame) left() []byte {
	if f.leftSet {
		return f.leftHash[:]
	}
	return hash.Zero[:]
}

func (f *frame) right() []byte {
	if f.rightSet {
		return f.rightHash[:]
	}
	return hash.Zero[:]
}

// Verify replays proof against expectedRoot, returning the key/value pairs
// selector asked for. It is a pure function with no store access (spec
// §4.5.3).
func Verify(expectedRoot hash.Digest, proof *Proof, selector Selector) (map[string][]byte, error) {
	var stack []*frame
	pop := func() (*frame, error) {
		if len(stack) == 0 {
			return nil, errors.WithStack(ErrProofUnderflow)
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return f, nil
	}

	all := make(map[string][]byte)
	var firstKey, lastKey []byte
	haveFirst, haveLast := false, false

	for _, tok := range proof.Tokens {
		switch tok.Kind {
		case TokenPushHash:
			stack = append(stack, &frame{nodeHash: tok.Hash})
		case TokenPushKvHash:
			f := &frame{kvHash: tok.Hash, hasKV: true}
			f.nodeHash = hash.Sum(hash.Zero[:], hash.Zero[:], f.kvHash[:])
			stack = append(stack, f)
		case TokenPushKv:
			kvHash := hash.Sum(tok.Key, tok.Value)
			f := &frame{kvHash: kvHash, hasKV: true, key: tok.Key, value: tok.Value, hasKeyValue: true}
			f.nodeHash = hash.Sum(hash.Zero[:], hash.Zero[:], f.kvHash[:])
			stack = append(stack, f)
			all[string(tok.Key)] = tok.Value
			if !haveFirst {
				firstKey, haveFirst = tok.Key, true
			}
			lastKey, haveLast = tok.Key, true
		case TokenParent:
			child, err := pop()
			if err != nil {
				return nil, err
			}
			parent, err := pop()
			if err != nil {
				return nil, err
			}
			if !parent.hasKV || parent.leftSet {
				return nil, errors.WithStack(ErrProofChildOverwrite)
			}
			parent.leftHash, parent.leftSet = child.nodeHash, true
			parent.nodeHash = hash.Sum(parent.left(), parent.right(), parent.kvHash[:])
			stack = append(stack, parent)
		case TokenChild:
			child, err := pop()
			if err != nil {
				return nil, err
			}
			parent, err := pop()
			if err != nil {
				return nil, err
			}
			if !parent.hasKV || parent.rightSet {
				return nil, errors.WithStack(ErrProofChildOverwrite)
			}
			parent.rightHash, parent.rightSet = child.nodeHash, true
			parent.nodeHash = hash.Sum(parent.left(), parent.right(), parent.kvHash[:])
			stack = append(stack, parent)
		default:
			return nil, ErrCorruptNode
		}
	}

	if len(stack) != 1 {
		return nil, errors.WithStack(ErrProofUnfinished)
	}
	if stack[0].nodeHash != expectedRoot {
		return nil, errors.WithStack(ErrProofRootMismatch)
	}

	switch sel := selector.(type) {
	case RangeSelector:
		if !haveFirst || bytes.Compare(firstKey, sel.From) > 0 {
			return nil, errors.WithStack(ErrProofRangeGap)
		}
		if !haveLast || bytes.Compare(lastKey, sel.To) < 0 {
			return nil, errors.WithStack(ErrProofRangeGap)
		}
		out := make(map[string][]byte, len(all))
		for k, v := range all {
			if bytes.Compare([]byte(k), sel.From) >= 0 && bytes.Compare([]byte(k), sel.To) <= 0 {
				out[k] = v
			}
		}
		return out, nil
	case KeySelector:
		out := make(map[string][]byte, len(sel.Keys))
		for _, k := range sel.Keys {
			if v, ok := all[string(k)]; ok {
				out[string(k)] = v
			}
		}
		return out, nil
	default:
		return all, nil
	}
}
