package vss

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestField_Normalization(t *testing.T) {
	field := NewField(big.NewInt(13))

	assert.Equal(t, int64(2), field.Add(big.NewInt(10), big.NewInt(5)).Int64(), "Add should reduce modulo 13")
	assert.Equal(t, int64(11), field.Sub(big.NewInt(3), big.NewInt(5)).Int64(), "Sub should normalize negative results into [0, m)")
	assert.Equal(t, int64(12), field.Mul(big.NewInt(5), big.NewInt(5)).Int64(), "Mul should reduce modulo 13")
	assert.Equal(t, int64(0), field.Sub(big.NewInt(5), big.NewInt(5)).Int64(), "Sub of equal values should be zero")
}

func TestField_Pow(t *testing.T) {
	// 3 has order 5 modulo 11.
	field := NewField(big.NewInt(11))

	assert.Equal(t, int64(1), field.Pow(big.NewInt(3), big.NewInt(5)).Int64(), "3^5 mod 11 should be 1")
	assert.Equal(t, int64(1), field.Pow(big.NewInt(3), big.NewInt(0)).Int64(), "Any base to the zero should be 1")
	assert.Equal(t, int64(3), field.Pow(big.NewInt(3), big.NewInt(1)).Int64(), "Base to the first power should be itself")
	assert.Equal(t, int64(5), field.Pow(big.NewInt(3), big.NewInt(3)).Int64(), "3^3 mod 11 should be 5")
}

func TestField_Inverse(t *testing.T) {
	q := big.NewInt(101)
	field := NewField(q)

	for _, value := range []int64{1, 2, 57, 100} {
		inverse, err := field.Inverse(big.NewInt(value))
		require.NoError(t, err, "Inverse should succeed for nonzero value %d", value)

		product := field.Mul(big.NewInt(value), inverse)
		assert.Equal(t, int64(1), product.Int64(), "value * inverse should be 1 for %d", value)
		assert.True(t, inverse.Sign() >= 0 && inverse.Cmp(q) < 0, "Inverse should be normalized into [0, q)")
	}

	// Negative values are inverted through their residue.
	inverse, err := field.Inverse(big.NewInt(-2))
	require.NoError(t, err, "Inverse of a negative value should use its residue")
	assert.Equal(t, int64(1), field.Mul(big.NewInt(99), inverse).Int64(), "-2 and 99 share an inverse modulo 101")
}

func TestField_InverseNotInvertible(t *testing.T) {
	field := NewField(big.NewInt(101))

	_, err := field.Inverse(big.NewInt(0))
	require.Error(t, err, "Zero has no inverse")

	var notInvertible *NotInvertibleError
	require.ErrorAs(t, err, &notInvertible, "Error should carry the offending value and modulus")
	assert.Equal(t, int64(0), notInvertible.Value.Int64(), "Error should report the offending value")
	assert.Equal(t, int64(101), notInvertible.Modulus.Int64(), "Error should report the modulus")

	_, err = field.Inverse(big.NewInt(202))
	assert.Error(t, err, "A multiple of the modulus has no inverse")
}
