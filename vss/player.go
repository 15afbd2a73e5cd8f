package vss

import (
	"fmt"
	"math/big"
	"sync"
)

// VerifyShare checks a share (i, v) against the public commitments:
//
//	g^v mod p == product_j commitments[j]^(i^j mod q) mod p
//
// Exponents i^j are reduced modulo q before exponentiation; commitment
// values have multiplicative order dividing q, so the reduction is exact.
//
// A mismatch is an expected protocol outcome (tampered share, inconsistent
// dealer), so the result is a plain boolean, never an error.
func VerifyShare(share Share, commitments CommitmentSet, params Parameters) bool {
	if share.Value == nil || len(commitments) == 0 {
		return false
	}
	// A bulletin decoded from untrusted input can carry commitments without
	// parameters. Incomplete parameters can never vouch for a share.
	if params.P == nil || params.Q == nil || params.G == nil {
		return false
	}

	shareField := NewField(params.Q)
	commitField := NewField(params.P)

	left := commitField.Pow(params.G, share.Value)

	x := big.NewInt(int64(share.Index))
	right := big.NewInt(1)
	exponent := big.NewInt(1) // x^0
	for _, commitment := range commitments {
		right = commitField.Mul(right, commitField.Pow(commitment, exponent))
		exponent = shareField.Mul(exponent, x)
	}

	return left.Cmp(right) == 0
}

// Reconstruct recovers the secret from the given shares via Lagrange
// interpolation at zero over GF(q):
//
//	secret = sum_i v_i * prod_{j != i} (0 - x_j) * (x_i - x_j)^-1 mod q
//
// At least threshold shares are required (ErrInsufficientShares, never a
// silently wrong value) and indices must be pairwise distinct
// (ErrDuplicateIndex). Callers are expected to have verified the shares
// first; interpolating unverified shares yields garbage, not an error.
func Reconstruct(shares []Share, threshold int, q *big.Int) (*big.Int, error) {
	if len(shares) < threshold {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientShares, len(shares), threshold)
	}

	seen := make(map[int]struct{}, len(shares))
	for _, share := range shares {
		if _, dup := seen[share.Index]; dup {
			return nil, fmt.Errorf("%w: index %d", ErrDuplicateIndex, share.Index)
		}
		seen[share.Index] = struct{}{}
		if share.Value == nil {
			return nil, fmt.Errorf("%w: share %d has no value", ErrInvalidInput, share.Index)
		}
	}

	field := NewField(q)
	zero := new(big.Int)
	secret := new(big.Int)

	for i, share := range shares {
		xi := big.NewInt(int64(share.Index))

		weight := big.NewInt(1)
		for j, other := range shares {
			if j == i {
				continue
			}
			xj := big.NewInt(int64(other.Index))

			numerator := field.Sub(zero, xj)
			denominator, err := field.Inverse(field.Sub(xi, xj))
			if err != nil {
				return nil, fmt.Errorf("lagrange weight for indices %d and %d: %w", share.Index, other.Index, err)
			}
			weight = field.Mul(weight, field.Mul(numerator, denominator))
		}

		secret = field.Add(secret, field.Mul(weight, share.Value))
	}

	return secret, nil
}

// Player accumulates verified shares for one sharing session and
// reconstructs the secret once the threshold is met. Shares failing the
// commitment check are rejected as data, not errors. Safe for concurrent
// use.
type Player struct {
	mu          sync.Mutex
	params      Parameters
	commitments CommitmentSet
	threshold   int
	shares      map[int]Share
	secret      *big.Int
}

// NewPlayer returns a player for the session described by the public
// bulletin material. The commitment count is the session threshold.
func NewPlayer(params Parameters, commitments CommitmentSet) (*Player, error) {
	if len(commitments) == 0 {
		return nil, fmt.Errorf("%w: empty commitment set", ErrInvalidInput)
	}

	return &Player{
		params:      params,
		commitments: commitments,
		threshold:   len(commitments),
		shares:      make(map[int]Share),
	}, nil
}

// Threshold returns the number of shares required for reconstruction.
func (player *Player) Threshold() int {
	return player.threshold
}

// Verify checks a share against the session commitments without storing it.
func (player *Player) Verify(share Share) bool {
	return VerifyShare(share, player.commitments, player.params)
}

// Collect verifies a share and stores it for reconstruction. The boolean
// reports whether the share passed verification; a rejected share is not
// stored and not an error. A second share for an already collected index
// fails with ErrDuplicateIndex.
func (player *Player) Collect(share Share) (bool, error) {
	player.mu.Lock()
	defer player.mu.Unlock()

	if _, dup := player.shares[share.Index]; dup {
		return false, fmt.Errorf("%w: index %d", ErrDuplicateIndex, share.Index)
	}

	if !VerifyShare(share, player.commitments, player.params) {
		return false, nil
	}

	player.shares[share.Index] = Share{Index: share.Index, Value: new(big.Int).Set(share.Value)}
	return true, nil
}

// Collected returns the number of verified shares held so far.
func (player *Player) Collected() int {
	player.mu.Lock()
	defer player.mu.Unlock()
	return len(player.shares)
}

// Reconstructed reports whether the secret has been recovered.
func (player *Player) Reconstructed() bool {
	player.mu.Lock()
	defer player.mu.Unlock()
	return player.secret != nil
}

// Reconstruct interpolates the secret from the collected shares, failing
// with ErrInsufficientShares until the threshold is met. The result is
// cached: repeated calls return the same secret without recomputation.
func (player *Player) Reconstruct() (*big.Int, error) {
	player.mu.Lock()
	defer player.mu.Unlock()

	if player.secret != nil {
		return new(big.Int).Set(player.secret), nil
	}

	shares := make([]Share, 0, len(player.shares))
	for _, share := range player.shares {
		shares = append(shares, share)
	}

	secret, err := Reconstruct(shares, player.threshold, player.params.Q)
	if err != nil {
		return nil, err
	}

	player.secret = secret
	return new(big.Int).Set(secret), nil
}
