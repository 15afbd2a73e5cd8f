package vss

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pickShares(t *testing.T, shares []Share, indices ...int) []Share {
	t.Helper()
	byIndex := make(map[int]Share, len(shares))
	for _, share := range shares {
		byIndex[share.Index] = share
	}
	picked := make([]Share, 0, len(indices))
	for _, index := range indices {
		share, ok := byIndex[index]
		require.True(t, ok, "No share with index %d", index)
		picked = append(picked, share)
	}
	return picked
}

func TestReconstruct_AnyThresholdSubset(t *testing.T) {
	commitments, shares, err := Deal(big.NewInt(42), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")
	require.Len(t, commitments, 3, "One commitment per coefficient")

	first, err := Reconstruct(pickShares(t, shares, 1, 3, 5), 3, toyParams.Q)
	require.NoError(t, err, "Reconstruction from {1,3,5} should succeed")
	assert.Equal(t, int64(42), first.Int64(), "Shares 1, 3, 5 should recover the secret")

	second, err := Reconstruct(pickShares(t, shares, 2, 4, 5), 3, toyParams.Q)
	require.NoError(t, err, "Reconstruction from {2,4,5} should succeed")
	assert.Equal(t, int64(42), second.Int64(), "Shares 2, 4, 5 should recover the secret")
}

func TestReconstruct_BelowThreshold(t *testing.T) {
	_, shares, err := Deal(big.NewInt(42), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	_, err = Reconstruct(shares[:2], 3, toyParams.Q)
	assert.ErrorIs(t, err, ErrInsufficientShares, "Two shares should not meet a threshold of three")
}

func TestReconstruct_DuplicateIndex(t *testing.T) {
	_, shares, err := Deal(big.NewInt(42), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	duplicated := []Share{shares[0], shares[0], shares[1]}
	_, err = Reconstruct(duplicated, 3, toyParams.Q)
	assert.ErrorIs(t, err, ErrDuplicateIndex, "A repeated index should be rejected")
}

func TestVerifyShare_DetectsTampering(t *testing.T) {
	commitments, shares, err := Deal(big.NewInt(42), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	tampered := pickShares(t, shares, 3)[0]
	tampered.Value = new(big.Int).Mod(new(big.Int).Add(tampered.Value, big.NewInt(1)), toyParams.Q)

	assert.False(t, VerifyShare(tampered, commitments, toyParams), "The altered share should fail verification")
	for _, share := range shares {
		if share.Index == 3 {
			continue
		}
		assert.True(t, VerifyShare(share, commitments, toyParams), "Untouched share %d should still verify", share.Index)
	}
}

func TestVerifyShare_RandomizedTampering(t *testing.T) {
	commitments, shares, err := Deal(big.NewInt(17), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	for trial := 0; trial < 25; trial++ {
		offset, err := RandomSecret(new(big.Int).Sub(toyParams.Q, big.NewInt(1)), rand.Reader)
		require.NoError(t, err, "Drawing an offset should succeed")
		offset.Add(offset, big.NewInt(1))

		victim := shares[trial%len(shares)]
		victim.Value = new(big.Int).Mod(new(big.Int).Add(victim.Value, offset), toyParams.Q)
		assert.False(t, VerifyShare(victim, commitments, toyParams), "Any nonzero perturbation should fail verification")
	}
}

func TestVerifyShare_WrongIndex(t *testing.T) {
	commitments, shares, err := Deal(big.NewInt(42), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	swapped := shares[0]
	swapped.Index = shares[1].Index
	assert.False(t, VerifyShare(swapped, commitments, toyParams), "A share presented under another index should fail")
}

func TestVerifyShare_IncompleteParameters(t *testing.T) {
	commitments, shares, err := Deal(big.NewInt(42), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	// Bulletins decoded from untrusted JSON can carry commitments while
	// leaving the parameters zero-valued. Verification must refuse, not
	// panic.
	assert.False(t, VerifyShare(shares[0], commitments, Parameters{}), "Zero-value parameters should fail verification")
	assert.False(t, VerifyShare(shares[0], commitments, Parameters{P: toyParams.P, Q: toyParams.Q}), "A missing generator should fail verification")
	assert.False(t, VerifyShare(shares[0], commitments, Parameters{P: toyParams.P, G: toyParams.G}), "A missing subgroup order should fail verification")
}

func TestReconstruct_LargerToyGroup(t *testing.T) {
	// q=13931 admits p=12*13931+1=167173; g=2^12 lands in the order-q
	// subgroup.
	params := Parameters{P: big.NewInt(167173), Q: big.NewInt(13931), G: big.NewInt(4096)}
	require.NoError(t, params.Validate(10), "The larger toy group should be well formed")

	commitments, shares, err := Deal(big.NewInt(1234), 7, 4, params, NewDeterministicReader([]byte("larger group")))
	require.NoError(t, err, "Dealing should succeed")

	for _, share := range shares {
		require.True(t, VerifyShare(share, commitments, params), "Share %d should verify", share.Index)
	}

	secret, err := Reconstruct(shares[2:6], 4, params.Q)
	require.NoError(t, err, "Reconstruction should succeed")
	assert.Equal(t, int64(1234), secret.Int64(), "Any four shares should recover the secret")
}

func TestReconstruct_MinimalGroup(t *testing.T) {
	params := Parameters{P: big.NewInt(11), Q: big.NewInt(5), G: big.NewInt(3)}
	require.NoError(t, params.Validate(10), "The minimal toy group should be well formed")

	commitments, shares, err := Deal(big.NewInt(3), 4, 2, params, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	for _, share := range shares {
		assert.True(t, VerifyShare(share, commitments, params), "Share %d should verify", share.Index)
	}

	secret, err := Reconstruct(pickShares(t, shares, 2, 4), 2, params.Q)
	require.NoError(t, err, "Reconstruction should succeed")
	assert.Equal(t, int64(3), secret.Int64(), "Two shares should recover the secret")
}

func TestDealReconstruct_RoundTrip(t *testing.T) {
	for trial := 0; trial < 10; trial++ {
		secret, err := RandomSecret(toyParams.Q, rand.Reader)
		require.NoError(t, err, "Drawing a secret should succeed")

		_, shares, err := Deal(secret, 5, 3, toyParams, rand.Reader)
		require.NoError(t, err, "Dealing should succeed")

		recovered, err := Reconstruct(shares[:3], 3, toyParams.Q)
		require.NoError(t, err, "Reconstruction should succeed")
		assert.Zero(t, secret.Cmp(recovered), "Dealing then reconstructing should return the original secret")
	}
}

func TestPlayer_CollectUntilThreshold(t *testing.T) {
	commitments, shares, err := Deal(big.NewInt(42), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	player, err := NewPlayer(toyParams, commitments)
	require.NoError(t, err, "Player construction should succeed")
	assert.Equal(t, 3, player.Threshold(), "The commitment count implies the threshold")

	_, err = player.Reconstruct()
	assert.ErrorIs(t, err, ErrInsufficientShares, "Reconstruction before the threshold should fail")

	for _, share := range shares[:3] {
		accepted, err := player.Collect(share)
		require.NoError(t, err, "Collecting a valid share should succeed")
		assert.True(t, accepted, "A genuine share should pass verification")
	}
	assert.Equal(t, 3, player.Collected(), "Three shares should be held")
	assert.False(t, player.Reconstructed(), "The secret has not been interpolated yet")

	secret, err := player.Reconstruct()
	require.NoError(t, err, "Reconstruction should succeed")
	assert.Equal(t, int64(42), secret.Int64(), "The collected shares should recover the secret")
	assert.True(t, player.Reconstructed(), "The recovered secret should be cached")

	again, err := player.Reconstruct()
	require.NoError(t, err, "Repeated reconstruction should succeed")
	assert.Equal(t, secret, again, "Repeated reconstruction should return the cached secret")
}

func TestPlayer_RejectsInvalidShares(t *testing.T) {
	commitments, shares, err := Deal(big.NewInt(42), 5, 3, toyParams, rand.Reader)
	require.NoError(t, err, "Dealing should succeed")

	player, err := NewPlayer(toyParams, commitments)
	require.NoError(t, err, "Player construction should succeed")

	forged := shares[0]
	forged.Value = new(big.Int).Mod(new(big.Int).Add(forged.Value, big.NewInt(1)), toyParams.Q)
	accepted, err := player.Collect(forged)
	require.NoError(t, err, "A failed verification is data, not an error")
	assert.False(t, accepted, "A forged share should be rejected")
	assert.Zero(t, player.Collected(), "A rejected share should not be held")

	accepted, err = player.Collect(shares[0])
	require.NoError(t, err, "The genuine share should still be accepted")
	assert.True(t, accepted, "The genuine share should pass verification")
	_, err = player.Collect(shares[0])
	assert.ErrorIs(t, err, ErrDuplicateIndex, "Collecting the same index twice should be rejected")
	assert.Equal(t, 1, player.Collected(), "The duplicate should not be held")
}
