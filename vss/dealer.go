package vss

import (
	"fmt"
	"io"
	"math/big"
)

// Deal splits secret into n shares with reconstruction threshold t under the
// given group parameters, committing coefficients with the standard
// exponential scheme. It returns the commitment set for broadcast and one
// share per index 1..n for private, individual delivery. Deal consumes
// randomness but performs no I/O; delivery is the caller's concern.
func Deal(secret *big.Int, n, t int, params Parameters, rng io.Reader) (CommitmentSet, []Share, error) {
	return DealWithScheme(secret, n, t, params, NewFeldmanScheme(params), rng)
}

// DealWithScheme is Deal with a caller-provided commitment scheme.
//
// Validation failures (t < 1, t > n, n >= q, secret outside [0, q)) fail
// with ErrInvalidInput before any randomness is consumed. The n < q bound
// keeps share indices nonzero and pairwise distinct in GF(q).
func DealWithScheme(secret *big.Int, n, t int, params Parameters, scheme CommitmentScheme, rng io.Reader) (CommitmentSet, []Share, error) {
	if t < 1 {
		return nil, nil, fmt.Errorf("%w: threshold %d must be at least 1", ErrInvalidInput, t)
	}
	if t > n {
		return nil, nil, fmt.Errorf("%w: threshold %d exceeds share count %d", ErrInvalidInput, t, n)
	}
	if big.NewInt(int64(n)).Cmp(params.Q) >= 0 {
		return nil, nil, fmt.Errorf("%w: share count %d must be smaller than q", ErrInvalidInput, n)
	}

	poly, err := NewPolynomial(secret, t, params.Q, rng)
	if err != nil {
		return nil, nil, err
	}

	commitments := Commit(poly, scheme)

	shares := make([]Share, n)
	for i := 1; i <= n; i++ {
		shares[i-1] = Share{Index: i, Value: poly.Evaluate(big.NewInt(int64(i)))}
	}

	return commitments, shares, nil
}
