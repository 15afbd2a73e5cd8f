// Package vss implements Feldman Verifiable Secret Sharing over a
// runtime-generated Schnorr group.
//
// A dealer splits a secret into n shares such that any t of them reconstruct
// it, while every share can be checked against public commitments without
// revealing anything about the secret. The package covers the entire
// protocol:
//
//   - ParameterGenerator finds primes p, q with q | (p-1) and a generator g
//     of the order-q subgroup of GF(p)*.
//   - Polynomial holds the dealer's degree-(t-1) sharing polynomial over
//     GF(q) with the secret as constant term.
//   - Commit derives the per-coefficient commitments C_j = g^{c_j} mod p.
//   - Deal produces the commitment set and the n shares.
//   - VerifyShare checks g^v mod p against the commitment product.
//   - Reconstruct recovers the secret from >= t shares via Lagrange
//     interpolation at zero.
//
// # Two fields, one abstraction
//
// Share arithmetic runs over GF(q) and commitment arithmetic over GF(p).
// Mixing the two moduli is the classic defect in implementations of this
// scheme, so all modular arithmetic flows through the Field type, which
// carries its modulus with it.
//
// # Verification
//
// For a share (i, v) and commitments C_0..C_{t-1}:
//
//	g^v mod p == product_j C_j^(i^j mod q) mod p
//
// Exponents i^j are reduced modulo q before exponentiation. Commitment
// values have multiplicative order dividing q, so the reduction is exact and
// keeps exponents bounded regardless of i and j.
//
// A failed check is an expected protocol outcome (tampered share,
// inconsistent dealer) and is reported as a boolean, never as an error.
//
// # Randomness
//
// Every operation that consumes randomness takes an io.Reader. Production
// callers pass crypto/rand.Reader; tests pass a DeterministicReader for
// reproducible polynomials and parameters.
//
// # Usage
//
//	params, err := vss.NewParameterGenerator(rand.Reader).Generate(ctx, 32, 20)
//	if err != nil {
//	    log.Fatalf("Failed to generate parameters: %v", err)
//	}
//
//	commitments, shares, err := vss.Deal(secret, 5, 3, params, rand.Reader)
//	if err != nil {
//	    log.Fatalf("Failed to deal shares: %v", err)
//	}
//
//	// Each player verifies its own share against the broadcast commitments.
//	ok := vss.VerifyShare(shares[0], commitments, params)
//
//	// Any three verified shares recover the secret.
//	secret, err := vss.Reconstruct(shares[:3], 3, params.Q)
package vss
