package vss

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Polynomial is the dealer's sharing polynomial over GF(q). The constant
// term is the secret; the remaining threshold-1 coefficients are drawn
// uniformly at random. Coefficients are never exported: shares and
// commitments are the only values derived from them that may leave the
// dealer.
type Polynomial struct {
	coefficients []*big.Int
	field        Field
}

// NewPolynomial builds a degree-(threshold-1) polynomial over GF(q) with the
// secret as constant term. The secret must lie in [0, q) and the threshold
// must be at least 1, else ErrInvalidInput. Random coefficients are drawn
// from rng.
func NewPolynomial(secret *big.Int, threshold int, q *big.Int, rng io.Reader) (*Polynomial, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("%w: threshold %d must be at least 1", ErrInvalidInput, threshold)
	}
	if secret == nil || secret.Sign() < 0 || secret.Cmp(q) >= 0 {
		return nil, fmt.Errorf("%w: secret must be in [0, q)", ErrInvalidInput)
	}

	coefficients := make([]*big.Int, threshold)
	coefficients[0] = new(big.Int).Set(secret)
	for j := 1; j < threshold; j++ {
		c, err := rand.Int(rng, q)
		if err != nil {
			return nil, fmt.Errorf("drawing coefficient %d: %w", j, err)
		}
		coefficients[j] = c
	}

	return &Polynomial{coefficients: coefficients, field: NewField(q)}, nil
}

// Threshold returns the coefficient count, i.e. the number of shares needed
// to determine the polynomial.
func (poly *Polynomial) Threshold() int {
	return len(poly.coefficients)
}

// Evaluate computes the polynomial at x over GF(q) using Horner's method, so
// no explicit exponentiation is performed.
func (poly *Polynomial) Evaluate(x *big.Int) *big.Int {
	acc := new(big.Int)
	for j := len(poly.coefficients) - 1; j >= 0; j-- {
		acc = poly.field.Add(poly.field.Mul(acc, x), poly.coefficients[j])
	}
	return acc
}
