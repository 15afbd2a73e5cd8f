package vss

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrGenerationFailed means the bounded search for primes or a generator
	// exhausted its attempt budget without success.
	ErrGenerationFailed = errors.New("parameter generation attempt limit exceeded")

	// ErrInvalidInput covers malformed sharing requests: threshold below 1,
	// threshold above the share count, share count at least q, or a secret
	// outside [0, q).
	ErrInvalidInput = errors.New("invalid sharing input")

	// ErrInvalidParameters means a (p, q, g) triple failed validation.
	ErrInvalidParameters = errors.New("invalid group parameters")

	// ErrInsufficientShares means reconstruction was attempted with fewer
	// shares than the threshold. Reconstruction refuses rather than guessing.
	ErrInsufficientShares = errors.New("not enough shares to reconstruct")

	// ErrDuplicateIndex means two shares carry the same index.
	ErrDuplicateIndex = errors.New("duplicate share index")
)

// NotInvertibleError reports a failed modular inversion. The protocol never
// inverts a value sharing a factor with the modulus, so this signals a defect
// in the calling code or corrupted share data, not a user mistake.
type NotInvertibleError struct {
	Value   *big.Int
	Modulus *big.Int
}

func (e *NotInvertibleError) Error() string {
	return fmt.Sprintf("value %s is not invertible modulo %s", e.Value, e.Modulus)
}
