package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/metrics"
	"github.com/ruteri/feldman-vss-backend/roster"
	"github.com/ruteri/feldman-vss-backend/vss"
)

// Manager owns the live sharing sessions of one deployment. It creates
// sessions (generating group parameters or accepting reused ones), maps
// session IDs to sessions, and enforces that lifecycle transitions happen
// only through the session's own methods.
type Manager struct {
	mu       sync.RWMutex
	log      *slog.Logger
	roster   *roster.Roster
	rng      io.Reader
	sessions map[interfaces.SessionID]*SharingSession
}

// NewManager creates a session manager over the given roster. Randomness for
// parameter search, polynomial coefficients and generated secrets is drawn
// from rng (crypto/rand.Reader in production).
func NewManager(log *slog.Logger, r *roster.Roster, rng io.Reader) *Manager {
	return &Manager{
		log:      log,
		roster:   r,
		rng:      rng,
		sessions: make(map[interfaces.SessionID]*SharingSession),
	}
}

// CreateRequest carries the inputs for a new sharing session.
type CreateRequest struct {
	// Dealer is the authenticated identity creating the session.
	Dealer interfaces.PlayerID

	// TotalShares (n) and Threshold (t); shares go to the first n roster
	// entries in order.
	TotalShares int
	Threshold   int

	// Secret to share; nil means the dealer asks for a fresh random secret.
	Secret *big.Int

	// Parameters reuses an existing validated group instead of generating.
	// ExpectedFingerprint, if set, must match the reused parameters.
	Parameters          *vss.Parameters
	ExpectedFingerprint []byte

	// Bits and Certainty configure parameter generation when Parameters is
	// nil. Non-positive values fall back to the package defaults.
	Bits      int
	Certainty int
}

// Create deals a new session. With no reused parameters it runs the parallel
// group search first, observing the search duration in metrics; canceling
// ctx aborts the search.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*SharingSession, error) {
	if req.TotalShares < 1 || req.TotalShares > m.roster.Len() {
		return nil, fmt.Errorf("%w: %d shares for %d roster entries", vss.ErrInvalidInput, req.TotalShares, m.roster.Len())
	}

	var params vss.Parameters
	if req.Parameters != nil {
		params = *req.Parameters
		if err := params.Validate(req.Certainty); err != nil {
			return nil, err
		}
		if len(req.ExpectedFingerprint) > 0 {
			fingerprint, err := params.Fingerprint()
			if err != nil {
				return nil, err
			}
			if !bytes.Equal(fingerprint[:], req.ExpectedFingerprint) {
				return nil, fmt.Errorf("%w: reused parameters do not match expected fingerprint", interfaces.ErrParameterMismatch)
			}
		}
	} else {
		start := time.Now()
		generated, err := vss.NewParameterGenerator(m.rng).Generate(ctx, req.Bits, req.Certainty)
		if err != nil {
			return nil, fmt.Errorf("parameter generation: %w", err)
		}
		metrics.ParameterGenerations.Observe(time.Since(start).Seconds())
		params = generated
	}

	players := m.roster.Players()[:req.TotalShares]

	id := interfaces.NewSessionID()
	s, err := NewSharingSession(m.log, id, params, Config{
		Dealer:      req.Dealer,
		TotalShares: req.TotalShares,
		Threshold:   req.Threshold,
		Secret:      req.Secret,
		Players:     players,
	}, m.rng)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	return s, nil
}

// Get returns the session for an ID, or ErrSessionNotFound.
func (m *Manager) Get(id interfaces.SessionID) (*SharingSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrSessionNotFound, id)
	}
	return s, nil
}

// Roster returns the deployment roster the manager issues shares against.
func (m *Manager) Roster() *roster.Roster {
	return m.roster
}

// Sessions returns all live sessions, for status reporting.
func (m *Manager) Sessions() []*SharingSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*SharingSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
