// Package hash provides the fixed-size cryptographic digest used as the
// commitment primitive throughout the tree: every node hash and every
// proof token is a Digest.
package hash

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

var errInvalidLength = errors.New("hash: invalid digest length")

// Size is the fixed digest length in bytes. The design settles on 32 bytes;
// shorter digests (the 20-byte RIPEMD160(SHA256) some prototypes used) are a
// deployment choice outside this contract.
const Size = 32

// Digest is a 32-byte cryptographic hash.
type Digest [Size]byte

// Zero is the sentinel digest substituted for a missing child when
// computing a parent's node hash.
var Zero Digest

// Sum hashes the concatenation of all parts using BLAKE2b-256. Each part is
// preceded by its length as a fixed 8-byte big-endian integer, so that
// Sum("foo", "bar") and Sum("foobar") are never confusable: the mapping from
// a part sequence to the byte stream fed to the hash is injective.
func Sum(parts ...[]byte) Digest {
	h, _ := blake2b.New256(nil)
	var lenBuf [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:]) //nolint:errcheck // hash.Hash.Write never errors
		h.Write(p)         //nolint:errcheck // hash.Hash.Write never errors
	}
	var d Digest
	h.Sum(d[:0])
	return d
}

// IsZero reports whether d is the all-zero sentinel.
func (d Digest) IsZero() bool {
	return d == Zero
}

// Bytes returns a copy of the digest as a byte slice.
func (d Digest) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, d[:])
	return b
}

// String renders the digest as a lowercase hex string.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// FromBytes copies b into a Digest. b must be exactly Size bytes.
func FromBytes(b []byte) (Digest, bool) {
	var d Digest
	if len(b) != Size {
		return d, false
	}
	copy(d[:], b)
	return d, true
}

// MarshalJSON implements json.Marshaler, rendering the digest as a hex
// string prefixed with "0x".
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	got, ok := FromBytes(b)
	if !ok {
		return errInvalidLength
	}
	*d = got
	return nil
}
