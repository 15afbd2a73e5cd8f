package vss

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"runtime"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/atomic"
)

// Parameters describes the group every participant of a sharing session
// agrees on: primes p and q with q | (p-1), and a generator g of the order-q
// subgroup of GF(p)*. Shares live in GF(q), commitments in GF(p).
//
// Parameters are immutable once generated and safe to share read-only across
// concurrent operations. The JSON encoding uses 0x-prefixed hexadecimal big
// integers so all participants agree on a canonical byte-level form.
type Parameters struct {
	P *big.Int
	Q *big.Int
	G *big.Int
}

type parametersJSON struct {
	P *hexutil.Big `json:"p"`
	Q *hexutil.Big `json:"q"`
	G *hexutil.Big `json:"g"`
}

// MarshalJSON encodes the parameters with canonical hexadecimal integers.
func (params Parameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(parametersJSON{
		P: (*hexutil.Big)(params.P),
		Q: (*hexutil.Big)(params.Q),
		G: (*hexutil.Big)(params.G),
	})
}

// UnmarshalJSON decodes parameters, requiring all three group elements.
func (params *Parameters) UnmarshalJSON(data []byte) error {
	var enc parametersJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return err
	}
	if enc.P == nil || enc.Q == nil || enc.G == nil {
		return fmt.Errorf("%w: p, q and g are all required", ErrInvalidParameters)
	}
	params.P = (*big.Int)(enc.P)
	params.Q = (*big.Int)(enc.Q)
	params.G = (*big.Int)(enc.G)
	return nil
}

// Fingerprint returns the Keccak-256 digest of the abi-packed parameter
// encoding. Participants compare fingerprints before accepting shares or
// commitments; a mismatch is a protocol violation, never silently tolerated.
func (params Parameters) Fingerprint() ([32]byte, error) {
	if params.P == nil || params.Q == nil || params.G == nil {
		return [32]byte{}, fmt.Errorf("%w: p, q and g are all required", ErrInvalidParameters)
	}

	bytesTy, _ := abi.NewType("bytes", "", nil)
	arguments := abi.Arguments{
		{Type: bytesTy},
		{Type: bytesTy},
		{Type: bytesTy},
	}

	packed, err := arguments.Pack(params.P.Bytes(), params.Q.Bytes(), params.G.Bytes())
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// Validate checks the group invariants: p and q pass a probabilistic
// primality test with the given certainty, q divides p-1, and g generates a
// subgroup of order exactly q (g != 1 and g^q mod p = 1). Mismatched or
// corrupted parameters fail with ErrInvalidParameters.
func (params Parameters) Validate(certainty int) error {
	if certainty <= 0 {
		certainty = DefaultCertainty
	}
	if params.P == nil || params.Q == nil || params.G == nil {
		return fmt.Errorf("%w: p, q and g are all required", ErrInvalidParameters)
	}
	if !params.Q.ProbablyPrime(certainty) {
		return fmt.Errorf("%w: q is not prime", ErrInvalidParameters)
	}
	if !params.P.ProbablyPrime(certainty) {
		return fmt.Errorf("%w: p is not prime", ErrInvalidParameters)
	}

	pMinusOne := new(big.Int).Sub(params.P, big.NewInt(1))
	if new(big.Int).Mod(pMinusOne, params.Q).Sign() != 0 {
		return fmt.Errorf("%w: q does not divide p-1", ErrInvalidParameters)
	}

	one := big.NewInt(1)
	if params.G.Cmp(one) <= 0 || params.G.Cmp(pMinusOne) > 0 {
		return fmt.Errorf("%w: g is outside (1, p-1]", ErrInvalidParameters)
	}
	if NewField(params.P).Pow(params.G, params.Q).Cmp(one) != 0 {
		return fmt.Errorf("%w: g does not have order q", ErrInvalidParameters)
	}

	return nil
}

const (
	// DefaultQBits is the bit length of q used when callers pass a
	// non-positive bit length.
	DefaultQBits = 32

	// DefaultCertainty is the number of Miller-Rabin rounds used when
	// callers pass a non-positive certainty.
	DefaultCertainty = 20

	defaultMaxAttempts = 100000

	// Bounded scans inside one trial before resampling q or giving up on
	// the group.
	pScanPerTrial = 128
	gScanPerTrial = 64
)

// errNoCandidate makes a worker move on to a fresh q candidate.
var errNoCandidate = errors.New("no candidate in this trial")

// ParameterGenerator searches for a (p, q, g) group suitable for sharing
// sessions. One trial samples a candidate prime q of the requested bit
// length, scans for k with p = k*q + 1 prime, then raises random bases
// h to the (p-1)/q power until the result is not 1, which guarantees order
// exactly q since q is prime.
//
// Trials run on parallel workers with first-success cancellation. The total
// number of tested candidates is bounded; exceeding the bound fails with
// ErrGenerationFailed.
type ParameterGenerator struct {
	rand        io.Reader
	workers     int
	maxAttempts int
}

// NewParameterGenerator returns a generator drawing randomness from rng.
// The source must be safe for concurrent use unless the generator is limited
// to a single worker.
func NewParameterGenerator(rng io.Reader) *ParameterGenerator {
	return &ParameterGenerator{
		rand:        rng,
		workers:     runtime.NumCPU(),
		maxAttempts: defaultMaxAttempts,
	}
}

// WithWorkers returns a copy of the generator running the given number of
// concurrent trial workers.
func (pg *ParameterGenerator) WithWorkers(workers int) *ParameterGenerator {
	return &ParameterGenerator{
		rand:        pg.rand,
		workers:     workers,
		maxAttempts: pg.maxAttempts,
	}
}

// WithMaxAttempts returns a copy of the generator with the given candidate
// budget shared across all workers.
func (pg *ParameterGenerator) WithMaxAttempts(limit int) *ParameterGenerator {
	return &ParameterGenerator{
		rand:        pg.rand,
		workers:     pg.workers,
		maxAttempts: limit,
	}
}

// Generate searches for group parameters with a q of the given bit length,
// testing primality with the given certainty. Non-positive arguments fall
// back to DefaultQBits and DefaultCertainty. The search is CPU-bound;
// canceling ctx aborts it.
func (pg *ParameterGenerator) Generate(ctx context.Context, bits, certainty int) (Parameters, error) {
	if bits <= 0 {
		bits = DefaultQBits
	}
	if certainty <= 0 {
		certainty = DefaultCertainty
	}
	if bits < 2 {
		return Parameters{}, fmt.Errorf("%w: bit length %d is too small", ErrInvalidInput, bits)
	}

	workers := pg.workers
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan Parameters, 1)
	attempts := atomic.NewInt64(int64(pg.maxAttempts))
	sourceErr := atomic.NewError(nil)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				params, err := pg.trial(ctx, bits, certainty, attempts)
				if errors.Is(err, errNoCandidate) {
					continue
				}
				if err != nil {
					// Budget exhaustion and cancellation are reported by
					// Generate itself; only a failing randomness source
					// needs to surface from here.
					if !errors.Is(err, ErrGenerationFailed) && ctx.Err() == nil && sourceErr.Load() == nil {
						sourceErr.Store(err)
					}
					return
				}
				select {
				case found <- params:
				default:
				}
				cancel()
				return
			}
		}()
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	params, ok := <-found
	if ok {
		return params, nil
	}
	if err := ctx.Err(); err != nil {
		return Parameters{}, err
	}
	if err := sourceErr.Load(); err != nil {
		return Parameters{}, err
	}
	return Parameters{}, fmt.Errorf("%w after %d candidates", ErrGenerationFailed, pg.maxAttempts)
}

// trial runs one end-to-end search: one candidate q, a bounded scan for p,
// and a bounded scan for the generator. Returns errNoCandidate when the
// scans come up empty so the caller resamples q.
func (pg *ParameterGenerator) trial(ctx context.Context, bits, certainty int, attempts *atomic.Int64) (Parameters, error) {
	if attempts.Dec() < 0 {
		return Parameters{}, ErrGenerationFailed
	}

	q, err := rand.Prime(pg.rand, bits)
	if err != nil {
		return Parameters{}, fmt.Errorf("sampling q: %w", err)
	}

	p, err := pg.findP(ctx, q, bits, certainty, attempts)
	if err != nil {
		return Parameters{}, err
	}

	g, err := pg.findG(ctx, p, q, attempts)
	if err != nil {
		return Parameters{}, err
	}

	return Parameters{P: p, Q: q, G: g}, nil
}

// findP scans for a prime p = k*q + 1 with k drawn at the same bit length
// as q.
func (pg *ParameterGenerator) findP(ctx context.Context, q *big.Int, bits, certainty int, attempts *atomic.Int64) (*big.Int, error) {
	one := big.NewInt(1)
	kMax := new(big.Int).Lsh(one, uint(bits))

	for i := 0; i < pScanPerTrial; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempts.Dec() < 0 {
			return nil, ErrGenerationFailed
		}

		k, err := rand.Int(pg.rand, kMax)
		if err != nil {
			return nil, fmt.Errorf("sampling k: %w", err)
		}
		if k.Sign() == 0 {
			continue
		}

		p := new(big.Int).Mul(k, q)
		p.Add(p, one)
		if p.ProbablyPrime(certainty) {
			return p, nil
		}
	}

	return nil, errNoCandidate
}

// findG raises random bases h in [2, p-2] to the (p-1)/q power. Any result
// other than 1 has order exactly q because q is prime.
func (pg *ParameterGenerator) findG(ctx context.Context, p, q *big.Int, attempts *atomic.Int64) (*big.Int, error) {
	one := big.NewInt(1)
	exponent := new(big.Int).Sub(p, one)
	exponent.Div(exponent, q)

	// h ranges over [2, p-2]; degenerate groups (p < 5) have no usable base.
	hMax := new(big.Int).Sub(p, big.NewInt(3))
	if hMax.Sign() <= 0 {
		return nil, errNoCandidate
	}

	field := NewField(p)
	for i := 0; i < gScanPerTrial; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempts.Dec() < 0 {
			return nil, ErrGenerationFailed
		}

		h, err := rand.Int(pg.rand, hMax)
		if err != nil {
			return nil, fmt.Errorf("sampling generator base: %w", err)
		}
		h.Add(h, big.NewInt(2))

		g := field.Pow(h, exponent)
		if g.Cmp(one) != 0 {
			return g, nil
		}
	}

	return nil, errNoCandidate
}
