package mavl

import "github.com/pkg/errors"

// Sentinel error kinds per the domain's error taxonomy. Check with
// errors.Is; BackingStore causes remain inspectable via errors.Cause.
var (
	ErrNotFound          = errors.New("mavl: not found")
	ErrInvalidBatch      = errors.New("mavl: invalid batch")
	ErrCorruptNode       = errors.New("mavl: corrupt node")
	ErrInvariantViolated = errors.New("mavl: invariant violated")
	ErrCancelled         = errors.New("mavl: cancelled")

	ErrProofRootMismatch   = errors.New("mavl: proof root mismatch")
	ErrProofUnderflow      = errors.New("mavl: proof stack underflow")
	ErrProofChildOverwrite = errors.New("mavl: proof child overwrite")
	ErrProofUnfinished     = errors.New("mavl: proof unfinished")
	ErrProofRangeGap       = errors.New("mavl: proof range gap")
)

// wrapBackingStore tags an error from the kv dependency without discarding
// it: errors.Cause still reaches the original leveldb/kv error.
func wrapBackingStore(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(err, "backing store")
}
