package vss

import (
	"math/big"
)

// Field provides modular arithmetic with the modulus attached to the value.
// All results are normalized into [0, modulus). Keeping the modulus and the
// operations together prevents GF(q) share arithmetic and GF(p) commitment
// arithmetic from being accidentally intermixed.
//
// A Field is immutable and safe for concurrent use.
type Field struct {
	modulus *big.Int
}

// NewField returns a Field for arithmetic modulo m. The modulus must be
// greater than 1; the protocol only ever uses prime moduli.
func NewField(m *big.Int) Field {
	return Field{modulus: new(big.Int).Set(m)}
}

// Modulus returns a copy of the field's modulus.
func (f Field) Modulus() *big.Int {
	return new(big.Int).Set(f.modulus)
}

// Add returns (a + b) mod m.
func (f Field) Add(a, b *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Add(a, b), f.modulus)
}

// Sub returns (a - b) mod m, normalized into [0, m).
func (f Field) Sub(a, b *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Sub(a, b), f.modulus)
}

// Mul returns (a * b) mod m.
func (f Field) Mul(a, b *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Mul(a, b), f.modulus)
}

// Pow returns a^e mod m via square-and-multiply modular exponentiation.
// The exponent must not be negative.
func (f Field) Pow(a, e *big.Int) *big.Int {
	return new(big.Int).Exp(a, e, f.modulus)
}

// Inverse returns the multiplicative inverse of a modulo m, computed with the
// extended Euclidean algorithm. It fails with a NotInvertibleError if
// gcd(a, m) != 1, which for a prime modulus only happens when a is a multiple
// of m; seeing it means a bug upstream, not bad user input.
func (f Field) Inverse(a *big.Int) (*big.Int, error) {
	x := new(big.Int)
	gcd := new(big.Int).GCD(x, nil, new(big.Int).Mod(a, f.modulus), f.modulus)
	if gcd.Cmp(big.NewInt(1)) != 0 {
		return nil, &NotInvertibleError{Value: new(big.Int).Set(a), Modulus: f.Modulus()}
	}
	return x.Mod(x, f.modulus), nil
}
