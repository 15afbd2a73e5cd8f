package session

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ruteri/feldman-vss-backend/cryptoutils"
	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/metrics"
	"github.com/ruteri/feldman-vss-backend/roster"
	"github.com/ruteri/feldman-vss-backend/vss"
)

// IssuedShare is one player's sealed slice of the session secret. The
// plaintext share exists only inside vss.Deal and inside the receiving
// player; the session retains only the ECIES ciphertext.
type IssuedShare struct {
	// PlayerID is the identity this share was sealed to.
	PlayerID interfaces.PlayerID

	// Index is the share's evaluation point, in [1, n].
	Index int

	// Encrypted is the share JSON encrypted to the player's roster key.
	Encrypted []byte

	// Retrieved tracks whether the player has fetched or received the share.
	Retrieved bool
}

// Bulletin is the public record of a session: everything a player needs to
// verify a share, and nothing that helps recover the secret below the
// threshold. Bulletins are persisted to content-addressed storage and served
// unauthenticated.
type Bulletin struct {
	SessionID             interfaces.SessionID `json:"session_id"`
	Parameters            vss.Parameters       `json:"parameters"`
	ParametersFingerprint hexutil.Bytes        `json:"parameters_fingerprint"`
	Commitments           vss.CommitmentSet    `json:"commitments"`
	TotalShares           int                  `json:"total_shares"`
	Threshold             int                  `json:"threshold"`
	State                 string               `json:"state"`
	IssuedIndices         []int                `json:"issued_indices"`
}

// SharingSession drives one secret through the sharing lifecycle:
//
//	Initialized -> ParametersReady -> SharesIssued
//	    -> PartiallyReconstructed (0 < collected < t) -> Reconstructed
//
// Reconstructed is terminal; a new secret requires a new session. Retire
// wipes share material and is allowed from any state.
//
// The dealer's polynomial never outlives NewSharingSession: shares and
// commitments are derived inside it and the polynomial is dropped before the
// constructor returns. The reconstructed secret is readable only by the
// dealer identity that created the session.
//
// Safe for concurrent use; share submissions arrive concurrently over HTTP.
type SharingSession struct {
	mu  sync.Mutex
	log *slog.Logger

	id          interfaces.SessionID
	dealer      interfaces.PlayerID
	totalShares int
	threshold   int

	params      vss.Parameters
	fingerprint [32]byte
	commitments vss.CommitmentSet

	issued    map[interfaces.PlayerID]*IssuedShare
	collector *vss.Player

	state  interfaces.SessionState
	secret *big.Int
}

// Config carries the dealing inputs for a new session.
type Config struct {
	// Dealer is the identity allowed to read the reconstructed secret.
	Dealer interfaces.PlayerID

	// TotalShares (n) and Threshold (t) define the scheme; t of n shares
	// reconstruct.
	TotalShares int
	Threshold   int

	// Secret to share, in [0, q). If nil, a random secret is drawn.
	Secret *big.Int

	// Players receive the shares, one each, in order. Must have exactly
	// TotalShares entries.
	Players []roster.Player
}

// NewSharingSession deals a secret under params and seals one share per
// player. Validation errors (threshold bounds, player count, secret range)
// surface before any share is issued.
func NewSharingSession(log *slog.Logger, id interfaces.SessionID, params vss.Parameters, cfg Config, rng io.Reader) (*SharingSession, error) {
	if len(cfg.Players) != cfg.TotalShares {
		return nil, fmt.Errorf("%w: %d players for %d shares", vss.ErrInvalidInput, len(cfg.Players), cfg.TotalShares)
	}

	fingerprint, err := params.Fingerprint()
	if err != nil {
		return nil, err
	}

	s := &SharingSession{
		log:         log.With("session", id.String()),
		id:          id,
		dealer:      cfg.Dealer,
		totalShares: cfg.TotalShares,
		threshold:   cfg.Threshold,
		params:      params,
		fingerprint: fingerprint,
		issued:      make(map[interfaces.PlayerID]*IssuedShare, cfg.TotalShares),
		state:       interfaces.StateInitialized,
	}
	metrics.SessionsByState.WithLabelValues(s.state.String()).Inc()
	// Dealing can still fail below; only a returned session may count in the
	// per-state gauge.
	committed := false
	defer func() {
		if !committed {
			metrics.SessionsByState.WithLabelValues(s.state.String()).Dec()
		}
	}()
	s.setState(interfaces.StateParametersReady)

	secret := cfg.Secret
	if secret == nil {
		secret, err = vss.RandomSecret(params.Q, rng)
		if err != nil {
			return nil, err
		}
	}

	// The polynomial lives only inside Deal; only commitments and sealed
	// shares survive it.
	commitments, shares, err := vss.Deal(secret, cfg.TotalShares, cfg.Threshold, params, rng)
	if err != nil {
		return nil, err
	}
	s.commitments = commitments

	collector, err := vss.NewPlayer(params, commitments)
	if err != nil {
		return nil, err
	}
	s.collector = collector

	for i, share := range shares {
		player := cfg.Players[i]
		shareJSON, err := share.MarshalJSON()
		if err != nil {
			return nil, err
		}

		encrypted, err := cryptoutils.EncryptWithPublicKey(player.PublicKeyPEM, shareJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to seal share %d for %s: %w", share.Index, player.ID, err)
		}

		s.issued[player.ID] = &IssuedShare{
			PlayerID:  player.ID,
			Index:     share.Index,
			Encrypted: encrypted,
		}
	}

	s.setState(interfaces.StateSharesIssued)
	s.log.Info("Shares issued",
		slog.Int("totalShares", cfg.TotalShares),
		slog.Int("threshold", cfg.Threshold))

	committed = true
	return s, nil
}

// setState moves the lifecycle forward and keeps the per-state session gauge
// current. Callers hold the lock (or the session is not yet shared).
func (s *SharingSession) setState(next interfaces.SessionState) {
	metrics.SessionsByState.WithLabelValues(s.state.String()).Dec()
	metrics.SessionsByState.WithLabelValues(next.String()).Inc()
	s.state = next
}

// ID returns the session identifier.
func (s *SharingSession) ID() interfaces.SessionID {
	return s.id
}

// Dealer returns the identity allowed to read the reconstructed secret.
func (s *SharingSession) Dealer() interfaces.PlayerID {
	return s.dealer
}

// State returns the current lifecycle state.
func (s *SharingSession) State() interfaces.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Parameters returns the session's group parameters.
func (s *SharingSession) Parameters() vss.Parameters {
	return s.params
}

// Fingerprint returns the Keccak-256 parameter fingerprint.
func (s *SharingSession) Fingerprint() [32]byte {
	return s.fingerprint
}

// CheckFingerprint compares a participant's parameter fingerprint against
// the session's. A mismatch is a protocol violation.
func (s *SharingSession) CheckFingerprint(other []byte) error {
	if !bytes.Equal(other, s.fingerprint[:]) {
		return fmt.Errorf("%w: got %x, session has %x", interfaces.ErrParameterMismatch, other, s.fingerprint)
	}
	return nil
}

// Collected returns the number of verified shares accumulated so far.
func (s *SharingSession) Collected() int {
	return s.collector.Collected()
}

// Threshold returns the number of shares required for reconstruction.
func (s *SharingSession) Threshold() int {
	return s.threshold
}

// ShareFor hands out the sealed share issued to the given player and marks
// it retrieved. Players can re-fetch their share; only the holder of the
// matching private key can open it either way.
func (s *SharingSession) ShareFor(player interfaces.PlayerID) (*IssuedShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == interfaces.StateRetired {
		return nil, fmt.Errorf("%w: session is retired", interfaces.ErrInvalidSessionState)
	}

	issued, ok := s.issued[player]
	if !ok {
		return nil, fmt.Errorf("%w: no share issued to %s", interfaces.ErrUnknownPlayer, player)
	}

	issued.Retrieved = true
	return &IssuedShare{
		PlayerID:  issued.PlayerID,
		Index:     issued.Index,
		Encrypted: issued.Encrypted,
		Retrieved: true,
	}, nil
}

// Submit accumulates a decrypted share for reconstruction. The boolean
// reports whether the share passed commitment verification; a rejected share
// is an expected protocol outcome, not an error. At threshold the secret is
// reconstructed and the session becomes terminal.
func (s *SharingSession) Submit(share vss.Share) (accepted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case interfaces.StateSharesIssued, interfaces.StatePartiallyReconstructed:
		// Submission window.
	default:
		return false, fmt.Errorf("%w: state %s", interfaces.ErrInvalidSessionState, s.state)
	}

	accepted, err = s.collector.Collect(share)
	if err != nil {
		return false, err
	}
	if !accepted {
		metrics.SharesRejected.Inc()
		s.log.Warn("Share rejected by commitment check", slog.Int("index", share.Index))
		return false, nil
	}

	metrics.SharesVerified.Inc()
	s.log.Info("Share accepted",
		slog.Int("index", share.Index),
		slog.Int("collected", s.collector.Collected()),
		slog.Int("threshold", s.threshold))

	if s.collector.Collected() < s.threshold {
		if s.state == interfaces.StateSharesIssued {
			s.setState(interfaces.StatePartiallyReconstructed)
		}
		return true, nil
	}

	secret, err := s.collector.Reconstruct()
	if err != nil {
		// Collected() >= threshold, so interpolation cannot refuse; any
		// failure here is a defect.
		return true, fmt.Errorf("reconstruction at threshold: %w", err)
	}

	s.secret = secret
	s.setState(interfaces.StateReconstructed)
	metrics.Reconstructions.Inc()
	s.log.Info("Secret reconstructed", slog.Int("shares", s.collector.Collected()))

	return true, nil
}

// Secret returns the reconstructed secret to the dealer. Any other identity
// fails with ErrNotDealer; before reconstruction it fails with
// ErrInvalidSessionState.
func (s *SharingSession) Secret(requestor interfaces.PlayerID) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requestor != s.dealer {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotDealer, requestor)
	}
	if s.state != interfaces.StateReconstructed {
		return nil, fmt.Errorf("%w: state %s", interfaces.ErrInvalidSessionState, s.state)
	}

	return new(big.Int).Set(s.secret), nil
}

// IssuedShares returns every sealed share in issue order. Dealer-only: the
// ciphertexts are opaque to the dealer but together they reveal which players
// have retrieved their shares, and handing them out is the dealer's call.
func (s *SharingSession) IssuedShares(requestor interfaces.PlayerID) ([]IssuedShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requestor != s.dealer {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotDealer, requestor)
	}
	if s.state == interfaces.StateRetired {
		return nil, fmt.Errorf("%w: session is retired", interfaces.ErrInvalidSessionState)
	}

	shares := make([]IssuedShare, 0, len(s.issued))
	for _, issued := range s.issued {
		shares = append(shares, IssuedShare{
			PlayerID:  issued.PlayerID,
			Index:     issued.Index,
			Encrypted: append([]byte(nil), issued.Encrypted...),
			Retrieved: issued.Retrieved,
		})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].Index < shares[j].Index })

	return shares, nil
}

// Retire wipes the session's share material and secret. Dealer-only and
// terminal; a retired session answers no further share or secret requests.
func (s *SharingSession) Retire(requestor interfaces.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requestor != s.dealer {
		return fmt.Errorf("%w: %s", interfaces.ErrNotDealer, requestor)
	}
	if s.state == interfaces.StateRetired {
		return fmt.Errorf("%w: already retired", interfaces.ErrInvalidSessionState)
	}

	for _, issued := range s.issued {
		for i := range issued.Encrypted {
			issued.Encrypted[i] = 0
		}
	}
	s.issued = make(map[interfaces.PlayerID]*IssuedShare)
	if s.secret != nil {
		s.secret.SetInt64(0)
		s.secret = nil
	}

	s.setState(interfaces.StateRetired)
	s.log.Info("Session retired")
	return nil
}

// Bulletin returns the public session record.
func (s *SharingSession) Bulletin() Bulletin {
	s.mu.Lock()
	defer s.mu.Unlock()

	indices := make([]int, 0, len(s.issued))
	for _, issued := range s.issued {
		indices = append(indices, issued.Index)
	}
	sort.Ints(indices)

	return Bulletin{
		SessionID:             s.id,
		Parameters:            s.params,
		ParametersFingerprint: s.fingerprint[:],
		Commitments:           s.commitments,
		TotalShares:           s.totalShares,
		Threshold:             s.threshold,
		State:                 s.state.String(),
		IssuedIndices:         indices,
	}
}
