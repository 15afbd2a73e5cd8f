package interfaces

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// SessionID uniquely identifies one sharing session. A session binds one
// secret, one polynomial and one commitment set; reusing an ID for a new
// secret is never allowed.
type SessionID uuid.UUID

// NewSessionID returns a fresh random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.Must(uuid.NewRandom()))
}

// ParseSessionID parses the canonical UUID string form of a session ID.
func ParseSessionID(s string) (SessionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, fmt.Errorf("invalid session id %q: %w", s, err)
	}
	return SessionID(id), nil
}

// String returns the canonical UUID string form.
func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler for JSON fields and map keys.
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SessionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// PlayerID identifies one participant in the roster. IDs are operator-chosen
// strings (typically a public key fingerprint or a hostname) and appear in
// authentication headers, so the format is restricted.
type PlayerID string

var playerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// NewPlayerID validates and returns a player identifier.
func NewPlayerID(s string) (PlayerID, error) {
	id := PlayerID(s)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks the identifier format.
func (id PlayerID) Validate() error {
	if !playerIDRegex.MatchString(string(id)) {
		return fmt.Errorf("invalid player id %q", string(id))
	}
	return nil
}

// String returns the identifier as a plain string.
func (id PlayerID) String() string {
	return string(id)
}

// SessionState is the lifecycle state of a sharing session.
type SessionState int

const (
	// StateInitialized is the state before group parameters are fixed.
	StateInitialized SessionState = iota

	// StateParametersReady means the (p, q, g) group is fixed but no shares
	// have been issued yet.
	StateParametersReady

	// StateSharesIssued means shares have been dealt and the dealer's
	// polynomial has been dropped.
	StateSharesIssued

	// StatePartiallyReconstructed means at least one verified share has been
	// collected but the threshold has not been met.
	StatePartiallyReconstructed

	// StateReconstructed is terminal: the secret is recovered. A new secret
	// requires a new session.
	StateReconstructed

	// StateRetired is terminal: share material has been wiped.
	StateRetired
)

// String returns the state name used in APIs, logs and metrics.
func (s SessionState) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateParametersReady:
		return "parameters_ready"
	case StateSharesIssued:
		return "shares_issued"
	case StatePartiallyReconstructed:
		return "partially_reconstructed"
	case StateReconstructed:
		return "reconstructed"
	case StateRetired:
		return "retired"
	default:
		return "unknown"
	}
}

var (
	// ErrSessionNotFound is returned when no session exists for an ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionState is returned when an operation is not allowed in
	// the session's current lifecycle state, including any attempt to leave
	// a terminal state.
	ErrInvalidSessionState = errors.New("operation not allowed in current session state")

	// ErrUnknownPlayer is returned when a player ID is not in the roster or
	// holds no share in the session.
	ErrUnknownPlayer = errors.New("player not in roster")

	// ErrNotDealer is returned when a dealer-only operation is attempted by
	// another identity.
	ErrNotDealer = errors.New("operation restricted to the session dealer")

	// ErrParameterMismatch is returned when a participant presents group
	// parameters with a fingerprint different from the session's. Mismatched
	// parameters are a protocol violation and are never silently tolerated.
	ErrParameterMismatch = errors.New("group parameter fingerprint mismatch")
)
