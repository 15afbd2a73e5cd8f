package vss

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
)

// RandomSecret draws a uniform secret from [0, q) for callers that let the
// dealer pick the secret (e.g. fresh key material) rather than supplying one.
func RandomSecret(q *big.Int, rng io.Reader) (*big.Int, error) {
	secret, err := rand.Int(rng, q)
	if err != nil {
		return nil, fmt.Errorf("drawing secret: %w", err)
	}
	return secret, nil
}

// DeterministicReader produces a reproducible byte stream derived from a
// seed, for tests that need stable polynomials and parameters. Blocks are
// SHA-256 digests of the seed and a running counter. Production code passes
// crypto/rand.Reader instead.
//
// A DeterministicReader is not safe for concurrent use; pair it with a
// single-worker ParameterGenerator.
type DeterministicReader struct {
	seed    []byte
	counter uint64
	buf     []byte
}

// NewDeterministicReader returns a reader seeded with the given bytes. Equal
// seeds yield identical streams.
func NewDeterministicReader(seed []byte) *DeterministicReader {
	r := &DeterministicReader{seed: make([]byte, len(seed))}
	copy(r.seed, seed)
	return r
}

// Read fills p from the derived stream. It never fails.
func (r *DeterministicReader) Read(p []byte) (int, error) {
	for len(r.buf) < len(p) {
		h := sha256.New()
		h.Write(r.seed)
		var counter [8]byte
		binary.BigEndian.PutUint64(counter[:], r.counter)
		h.Write(counter[:])
		r.buf = h.Sum(r.buf)
		r.counter++
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
