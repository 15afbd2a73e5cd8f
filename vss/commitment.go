package vss

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CommitmentScheme binds a polynomial coefficient to a public value. The
// protocol needs only this one operation, so an alternative construction
// (e.g. Pedersen commitments) can replace the exponential scheme without
// touching the polynomial, dealer or player logic.
type CommitmentScheme interface {
	// Commit derives the public commitment for a single coefficient.
	Commit(coefficient *big.Int) *big.Int
}

// FeldmanScheme is the discrete-log commitment scheme Commit(c) = g^c mod p.
// Recovering c from the commitment is the discrete logarithm problem.
type FeldmanScheme struct {
	field Field
	g     *big.Int
}

// NewFeldmanScheme returns the exponential commitment scheme for the group
// described by params.
func NewFeldmanScheme(params Parameters) FeldmanScheme {
	return FeldmanScheme{field: NewField(params.P), g: new(big.Int).Set(params.G)}
}

// Commit returns g^coefficient mod p.
func (s FeldmanScheme) Commit(coefficient *big.Int) *big.Int {
	return s.field.Pow(s.g, coefficient)
}

// CommitmentSet holds the ordered public commitments C_0..C_{t-1} to the
// sharing polynomial's coefficients. It is broadcast to every player, stays
// immutable for the session's lifetime, and its length equals the session
// threshold.
type CommitmentSet []*big.Int

// Threshold returns the session threshold implied by the commitment count.
func (cs CommitmentSet) Threshold() int {
	return len(cs)
}

// MarshalJSON encodes the commitments as canonical hexadecimal integers.
func (cs CommitmentSet) MarshalJSON() ([]byte, error) {
	enc := make([]*hexutil.Big, len(cs))
	for j, c := range cs {
		enc[j] = (*hexutil.Big)(c)
	}
	return json.Marshal(enc)
}

// UnmarshalJSON decodes a commitment list, rejecting null entries.
func (cs *CommitmentSet) UnmarshalJSON(data []byte) error {
	var enc []*hexutil.Big
	if err := json.Unmarshal(data, &enc); err != nil {
		return err
	}
	out := make(CommitmentSet, len(enc))
	for j, c := range enc {
		if c == nil {
			return fmt.Errorf("%w: commitment %d is null", ErrInvalidInput, j)
		}
		out[j] = (*big.Int)(c)
	}
	*cs = out
	return nil
}

// Commit derives the commitment set for a polynomial under the given scheme.
// Pure: neither the polynomial nor the scheme is mutated.
func Commit(poly *Polynomial, scheme CommitmentScheme) CommitmentSet {
	commitments := make(CommitmentSet, len(poly.coefficients))
	for j, c := range poly.coefficients {
		commitments[j] = scheme.Commit(c)
	}
	return commitments
}
