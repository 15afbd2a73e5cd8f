package vss

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Toy group used throughout: q=101, p=6*101+1=607, g=3^6 mod 607=122.
// 122 != 1 is a power of the (p-1)/q exponent, so its order is exactly q.
var toyParams = Parameters{P: big.NewInt(607), Q: big.NewInt(101), G: big.NewInt(122)}

func TestDeal_Validation(t *testing.T) {
	secret := big.NewInt(42)

	_, _, err := Deal(secret, 5, 0, toyParams, rand.Reader)
	assert.ErrorIs(t, err, ErrInvalidInput, "Threshold below 1 should be rejected")

	_, _, err = Deal(secret, 2, 3, toyParams, rand.Reader)
	assert.ErrorIs(t, err, ErrInvalidInput, "Threshold above the share count should be rejected")

	_, _, err = Deal(secret, 101, 3, toyParams, rand.Reader)
	assert.ErrorIs(t, err, ErrInvalidInput, "Share count equal to q should be rejected")

	_, _, err = Deal(big.NewInt(101), 5, 3, toyParams, rand.Reader)
	assert.ErrorIs(t, err, ErrInvalidInput, "Secret outside [0, q) should be rejected")
}

func TestDeal_IssuesDistinctIndexedShares(t *testing.T) {
	commitments, shares, err := Deal(big.NewInt(42), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	assert.Len(t, commitments, 3, "One commitment per coefficient")
	assert.Len(t, shares, 5, "One share per player")

	seen := make(map[int]bool)
	for _, share := range shares {
		assert.True(t, share.Index >= 1 && share.Index <= 5, "Indices should be in [1, n]")
		assert.False(t, seen[share.Index], "Indices should be pairwise distinct")
		seen[share.Index] = true

		assert.True(t, share.Value.Sign() >= 0 && share.Value.Cmp(toyParams.Q) < 0, "Share values should be reduced modulo q")
	}
}

func TestDeal_EveryShareVerifies(t *testing.T) {
	commitments, shares, err := Deal(big.NewInt(42), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	for _, share := range shares {
		assert.True(t, VerifyShare(share, commitments, toyParams), "Honestly issued share %d should verify", share.Index)
	}
}

func TestDeal_ThresholdEqualsShareCount(t *testing.T) {
	commitments, shares, err := Deal(big.NewInt(7), 3, 3, toyParams, rand.Reader)
	require.NoError(t, err, "t == n should be allowed")

	secret, err := Reconstruct(shares, 3, toyParams.Q)
	require.NoError(t, err, "Reconstruction from all shares should succeed")
	assert.Equal(t, int64(7), secret.Int64(), "All shares should recover the secret")

	for _, share := range shares {
		assert.True(t, VerifyShare(share, commitments, toyParams), "Share %d should verify", share.Index)
	}
}

type doublingScheme struct {
	field Field
}

func (s doublingScheme) Commit(coefficient *big.Int) *big.Int {
	return s.field.Mul(big.NewInt(2), coefficient)
}

func TestDealWithScheme_UsesProvidedScheme(t *testing.T) {
	// A stand-in scheme exercises the capability boundary: the dealer
	// should commit through it without touching the exponential scheme.
	scheme := doublingScheme{field: NewField(toyParams.P)}

	commitments, _, err := DealWithScheme(big.NewInt(21), 5, 3, toyParams, scheme, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	assert.Equal(t, int64(42), commitments[0].Int64(), "The constant-term commitment should come from the provided scheme")
}

func TestCommit_FeldmanScheme(t *testing.T) {
	scheme := NewFeldmanScheme(toyParams)

	poly, err := NewPolynomial(big.NewInt(42), 3, toyParams.Q, NewDeterministicReader([]byte("commit")))
	require.NoError(t, err, "Polynomial construction should succeed")

	commitments := Commit(poly, scheme)
	require.Len(t, commitments, 3, "One commitment per coefficient")

	field := NewField(toyParams.P)
	assert.Equal(t, field.Pow(toyParams.G, big.NewInt(42)), commitments[0], "C_0 should be g^secret mod p")
	assert.Equal(t, 3, commitments.Threshold(), "The commitment count implies the threshold")
}
