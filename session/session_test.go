package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/feldman-vss-backend/cryptoutils"
	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/metrics"
	"github.com/ruteri/feldman-vss-backend/roster"
	"github.com/ruteri/feldman-vss-backend/vss"
)

// Toy group: q=101, p=6*101+1=607 (both prime), g=3^6 mod 607, which has
// order exactly 101.
func toyParams() vss.Parameters {
	return vss.Parameters{
		P: big.NewInt(607),
		Q: big.NewInt(101),
		G: big.NewInt(122),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRoster(t *testing.T, n int) (*roster.Roster, map[interfaces.PlayerID][]byte) {
	t.Helper()

	players := make([]roster.Player, n)
	privKeys := make(map[interfaces.PlayerID][]byte, n)
	for i := range players {
		privPEM, pubPEM, err := cryptoutils.GenerateKeyPair()
		require.NoError(t, err)
		id := interfaces.PlayerID(fmt.Sprintf("player-%d", i+1))
		players[i] = roster.Player{ID: id, PublicKeyPEM: pubPEM}
		privKeys[id] = privPEM
	}

	r, err := roster.New(players)
	require.NoError(t, err)
	return r, privKeys
}

// decryptShare opens a sealed issued share with the player's private key.
func decryptShare(t *testing.T, privPEM []byte, issued *IssuedShare) vss.Share {
	t.Helper()

	plaintext, err := cryptoutils.DecryptWithPrivateKey(privPEM, issued.Encrypted)
	require.NoError(t, err)

	var share vss.Share
	require.NoError(t, share.UnmarshalJSON(plaintext))
	require.Equal(t, issued.Index, share.Index)
	return share
}

func newTestSession(t *testing.T, r *roster.Roster, secret *big.Int) *SharingSession {
	t.Helper()

	s, err := NewSharingSession(testLogger(), interfaces.NewSessionID(), toyParams(), Config{
		Dealer:      "player-1",
		TotalShares: 5,
		Threshold:   3,
		Secret:      secret,
		Players:     r.Players(),
	}, vss.NewDeterministicReader([]byte("session test seed")))
	require.NoError(t, err)
	return s
}

func TestSessionLifecycle(t *testing.T) {
	r, privKeys := testRoster(t, 5)
	s := newTestSession(t, r, big.NewInt(42))

	require.Equal(t, interfaces.StateSharesIssued, s.State())

	// Every player decrypts and submits; state advances through
	// PartiallyReconstructed to Reconstructed at the threshold.
	var shares []vss.Share
	for _, player := range r.Players() {
		issued, err := s.ShareFor(player.ID)
		require.NoError(t, err)
		shares = append(shares, decryptShare(t, privKeys[player.ID], issued))
	}

	accepted, err := s.Submit(shares[0])
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, interfaces.StatePartiallyReconstructed, s.State())

	accepted, err = s.Submit(shares[1])
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, interfaces.StatePartiallyReconstructed, s.State())

	accepted, err = s.Submit(shares[2])
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, interfaces.StateReconstructed, s.State())

	secret, err := s.Secret("player-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), secret.Int64())

	// Terminal: no further submissions, even valid ones.
	_, err = s.Submit(shares[3])
	assert.ErrorIs(t, err, interfaces.ErrInvalidSessionState)
}

func TestSessionSecretDealerOnly(t *testing.T) {
	r, privKeys := testRoster(t, 5)
	s := newTestSession(t, r, big.NewInt(7))

	_, err := s.Secret("player-1")
	assert.ErrorIs(t, err, interfaces.ErrInvalidSessionState, "secret unavailable before reconstruction")

	for i, player := range r.Players()[:3] {
		issued, err := s.ShareFor(player.ID)
		require.NoError(t, err)
		accepted, err := s.Submit(decryptShare(t, privKeys[player.ID], issued))
		require.NoError(t, err, "share %d", i)
		require.True(t, accepted)
	}

	_, err = s.Secret("player-2")
	assert.ErrorIs(t, err, interfaces.ErrNotDealer)

	secret, err := s.Secret("player-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), secret.Int64())
}

func TestSessionRejectsTamperedShare(t *testing.T) {
	r, privKeys := testRoster(t, 5)
	s := newTestSession(t, r, big.NewInt(42))

	issued, err := s.ShareFor("player-3")
	require.NoError(t, err)
	share := decryptShare(t, privKeys["player-3"], issued)

	tampered := vss.Share{
		Index: share.Index,
		Value: new(big.Int).Mod(new(big.Int).Add(share.Value, big.NewInt(1)), toyParams().Q),
	}

	accepted, err := s.Submit(tampered)
	require.NoError(t, err, "a rejected share is data, not an error")
	assert.False(t, accepted)
	assert.Equal(t, 0, s.Collected())

	// The genuine share still goes through afterwards.
	accepted, err = s.Submit(share)
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestSessionDuplicateSubmission(t *testing.T) {
	r, privKeys := testRoster(t, 5)
	s := newTestSession(t, r, big.NewInt(42))

	issued, err := s.ShareFor("player-2")
	require.NoError(t, err)
	share := decryptShare(t, privKeys["player-2"], issued)

	accepted, err := s.Submit(share)
	require.NoError(t, err)
	require.True(t, accepted)

	_, err = s.Submit(share)
	assert.ErrorIs(t, err, vss.ErrDuplicateIndex)
}

func TestSessionRetire(t *testing.T) {
	r, _ := testRoster(t, 5)
	s := newTestSession(t, r, big.NewInt(42))

	assert.ErrorIs(t, s.Retire("player-2"), interfaces.ErrNotDealer)
	require.NoError(t, s.Retire("player-1"))
	assert.Equal(t, interfaces.StateRetired, s.State())

	_, err := s.ShareFor("player-2")
	assert.ErrorIs(t, err, interfaces.ErrInvalidSessionState)

	assert.ErrorIs(t, s.Retire("player-1"), interfaces.ErrInvalidSessionState)
}

func TestSessionGaugeUnchangedAfterFailedDeal(t *testing.T) {
	r, _ := testRoster(t, 5)

	states := []interfaces.SessionState{interfaces.StateInitialized, interfaces.StateParametersReady}
	before := make([]float64, len(states))
	for i, state := range states {
		before[i] = testutil.ToFloat64(metrics.SessionsByState.WithLabelValues(state.String()))
	}

	// Secret outside [0, q) fails inside Deal, after the session has already
	// moved through the early lifecycle states.
	_, err := NewSharingSession(testLogger(), interfaces.NewSessionID(), toyParams(), Config{
		Dealer:      "player-1",
		TotalShares: 5,
		Threshold:   3,
		Secret:      big.NewInt(500),
		Players:     r.Players(),
	}, vss.NewDeterministicReader([]byte("seed")))
	require.ErrorIs(t, err, vss.ErrInvalidInput)

	for i, state := range states {
		assert.Equal(t, before[i], testutil.ToFloat64(metrics.SessionsByState.WithLabelValues(state.String())), "failed dealing should not leak a %s session into the gauge", state)
	}
}

func TestSessionIssuedSharesDealerOnly(t *testing.T) {
	r, privKeys := testRoster(t, 5)
	s := newTestSession(t, r, big.NewInt(42))

	_, err := s.IssuedShares("player-2")
	assert.ErrorIs(t, err, interfaces.ErrNotDealer)

	issued, err := s.IssuedShares("player-1")
	require.NoError(t, err)
	require.Len(t, issued, 5)
	for i, share := range issued {
		assert.Equal(t, i+1, share.Index, "listing should be ordered by index")
		decrypted := decryptShare(t, privKeys[share.PlayerID], &issued[i])
		assert.True(t, vss.VerifyShare(decrypted, s.commitments, s.params), "listed ciphertexts should hold the issued shares")
	}

	require.NoError(t, s.Retire("player-1"))
	_, err = s.IssuedShares("player-1")
	assert.ErrorIs(t, err, interfaces.ErrInvalidSessionState)
}

func TestSessionConcurrentSubmissions(t *testing.T) {
	r, privKeys := testRoster(t, 5)
	s := newTestSession(t, r, big.NewInt(99))

	var wg sync.WaitGroup
	for _, player := range r.Players() {
		issued, err := s.ShareFor(player.ID)
		require.NoError(t, err)
		share := decryptShare(t, privKeys[player.ID], issued)

		wg.Add(1)
		go func() {
			defer wg.Done()
			// Past the threshold the session turns terminal, so late
			// submissions may be refused; none may corrupt state.
			_, _ = s.Submit(share)
		}()
	}
	wg.Wait()

	require.Equal(t, interfaces.StateReconstructed, s.State())
	secret, err := s.Secret("player-1")
	require.NoError(t, err)
	assert.Equal(t, int64(99), secret.Int64())
}

func TestSessionBulletin(t *testing.T) {
	r, _ := testRoster(t, 5)
	s := newTestSession(t, r, big.NewInt(42))

	b := s.Bulletin()
	assert.Equal(t, s.ID(), b.SessionID)
	assert.Equal(t, 5, b.TotalShares)
	assert.Equal(t, 3, b.Threshold)
	assert.Equal(t, 3, b.Commitments.Threshold())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, b.IssuedIndices)
	assert.Equal(t, "shares_issued", b.State)

	fingerprint, err := s.Parameters().Fingerprint()
	require.NoError(t, err)
	assert.EqualValues(t, fingerprint[:], []byte(b.ParametersFingerprint))

	require.NoError(t, s.CheckFingerprint(fingerprint[:]))
	assert.ErrorIs(t, s.CheckFingerprint([]byte{1, 2, 3}), interfaces.ErrParameterMismatch)
}

func TestManagerReusedParameters(t *testing.T) {
	r, _ := testRoster(t, 5)
	m := NewManager(testLogger(), r, vss.NewDeterministicReader([]byte("manager seed")))

	params := toyParams()
	fingerprint, err := params.Fingerprint()
	require.NoError(t, err)

	s, err := m.Create(context.Background(), CreateRequest{
		Dealer:              "player-1",
		TotalShares:         5,
		Threshold:           3,
		Secret:              big.NewInt(42),
		Parameters:          &params,
		ExpectedFingerprint: fingerprint[:],
	})
	require.NoError(t, err)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = m.Get(interfaces.NewSessionID())
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)

	// A fingerprint from a different group refuses session creation.
	_, err = m.Create(context.Background(), CreateRequest{
		Dealer:              "player-1",
		TotalShares:         5,
		Threshold:           3,
		Parameters:          &params,
		ExpectedFingerprint: []byte{0xde, 0xad},
	})
	assert.ErrorIs(t, err, interfaces.ErrParameterMismatch)
}

func TestManagerGeneratesParameters(t *testing.T) {
	r, _ := testRoster(t, 5)
	// The parameter search runs on parallel workers, so it needs a
	// concurrency-safe randomness source.
	m := NewManager(testLogger(), r, rand.Reader)

	s, err := m.Create(context.Background(), CreateRequest{
		Dealer:      "player-1",
		TotalShares: 3,
		Threshold:   2,
		Bits:        16,
		Certainty:   20,
	})
	require.NoError(t, err)
	require.NoError(t, s.Parameters().Validate(20))
}

func TestManagerRejectsOversizedSession(t *testing.T) {
	r, _ := testRoster(t, 2)
	m := NewManager(testLogger(), r, vss.NewDeterministicReader([]byte("seed")))

	_, err := m.Create(context.Background(), CreateRequest{
		Dealer:      "player-1",
		TotalShares: 3,
		Threshold:   2,
	})
	assert.ErrorIs(t, err, vss.ErrInvalidInput)
}

func TestManagerRejectsNonPositiveShareCount(t *testing.T) {
	r, _ := testRoster(t, 2)
	m := NewManager(testLogger(), r, vss.NewDeterministicReader([]byte("seed")))

	params := toyParams()
	for _, n := range []int{0, -1} {
		_, err := m.Create(context.Background(), CreateRequest{
			Dealer:      "player-1",
			TotalShares: n,
			Threshold:   1,
			Parameters:  &params,
		})
		assert.ErrorIs(t, err, vss.ErrInvalidInput, "total shares %d should be rejected before dealing", n)
	}
}
