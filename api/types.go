package api

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/session"
	"github.com/ruteri/feldman-vss-backend/vss"
)

// Authentication headers for the admin API. The signature is an ECDSA P-256
// ASN.1 signature over SHA-256(method || path || body), verified against the
// player's roster key.
const (
	PlayerIDHeader        = "X-Player-ID"
	PlayerSignatureHeader = "X-Player-Signature"
)

// CreateSessionRequest starts a new sharing session. Either Parameters is
// supplied (reused from an earlier session, checked against
// ExpectedFingerprint) or fresh parameters are generated from Bits and
// Certainty.
type CreateSessionRequest struct {
	// TotalShares (n) and Threshold (t) define the scheme.
	TotalShares int `json:"total_shares"`
	Threshold   int `json:"threshold"`

	// Secret to share, in [0, q). If absent, a random secret is drawn.
	Secret *hexutil.Big `json:"secret,omitempty"`

	// Parameters reuses an existing group instead of generating one.
	Parameters *vss.Parameters `json:"parameters,omitempty"`

	// ExpectedFingerprint guards reused Parameters against substitution.
	ExpectedFingerprint hexutil.Bytes `json:"expected_fingerprint,omitempty"`

	// Bits is the size of the subgroup order q when generating parameters.
	Bits int `json:"bits,omitempty"`

	// Certainty is the Miller-Rabin certainty for primality checks.
	Certainty int `json:"certainty,omitempty"`
}

// CreateSessionResponse returns the new session's public bulletin. The
// bulletin is also persisted to content-addressed storage;
// BulletinContentID locates it there.
type CreateSessionResponse struct {
	SessionID         interfaces.SessionID `json:"session_id"`
	Bulletin          session.Bulletin     `json:"bulletin"`
	BulletinContentID string               `json:"bulletin_content_id,omitempty"`
}

// GetShareResponse carries a player's sealed share. EncryptedShare is the
// ECIES ciphertext of the share JSON, base64 encoded; only the holder of the
// player's private key can open it.
type GetShareResponse struct {
	SessionID      interfaces.SessionID `json:"session_id"`
	ShareIndex     int                  `json:"share_index"`
	EncryptedShare string               `json:"encrypted_share"`
}

// IssuedShareInfo is one sealed share in a dealer's distribution listing.
type IssuedShareInfo struct {
	PlayerID       interfaces.PlayerID `json:"player_id"`
	ShareIndex     int                 `json:"share_index"`
	EncryptedShare string              `json:"encrypted_share"`
	Retrieved      bool                `json:"retrieved"`
}

// IssuedSharesResponse lists every sealed share of a session for the dealer
// to fan out to player inboxes. The ciphertexts only open with the receiving
// players' keys.
type IssuedSharesResponse struct {
	SessionID interfaces.SessionID `json:"session_id"`
	Shares    []IssuedShareInfo    `json:"shares"`
}

// SubmitShareRequest submits a decrypted share for reconstruction. The
// fingerprint proves the submitter verified against the same group
// parameters the session was dealt under.
type SubmitShareRequest struct {
	Share                 vss.Share     `json:"share"`
	ParametersFingerprint hexutil.Bytes `json:"parameters_fingerprint,omitempty"`
}

// SubmitShareResponse reports the submission outcome. Accepted=false with a
// 200 status means the share failed commitment verification, which is a
// protocol outcome, not a transport error.
type SubmitShareResponse struct {
	Accepted  bool   `json:"accepted"`
	Collected int    `json:"collected"`
	Threshold int    `json:"threshold"`
	State     string `json:"state"`
}

// SecretResponse returns the reconstructed secret to the dealer.
type SecretResponse struct {
	SessionID interfaces.SessionID `json:"session_id"`
	Secret    *hexutil.Big         `json:"secret"`
}

// RetireResponse acknowledges session retirement.
type RetireResponse struct {
	SessionID interfaces.SessionID `json:"session_id"`
	State     string               `json:"state"`
}

// SessionStatus is one session's entry in the status summary.
type SessionStatus struct {
	SessionID   interfaces.SessionID `json:"session_id"`
	State       string               `json:"state"`
	TotalShares int                  `json:"total_shares"`
	Threshold   int                  `json:"threshold"`
	Collected   int                  `json:"collected"`
}

// StatusResponse summarizes the service and its sessions.
type StatusResponse struct {
	Service  string          `json:"service"`
	Version  string          `json:"version"`
	Sessions []SessionStatus `json:"sessions"`
}

// InboxShareRequest pushes a sealed share to a player's inbox. The bulletin
// lets the receiver verify the decrypted share against the session
// commitments before persisting it.
type InboxShareRequest struct {
	SessionID      interfaces.SessionID `json:"session_id"`
	Bulletin       session.Bulletin     `json:"bulletin"`
	EncryptedShare string               `json:"encrypted_share"`
}

// InboxShareResponse acknowledges a pushed share. Accepted=false means the
// share failed verification against the bulletin commitments.
type InboxShareResponse struct {
	Accepted       bool   `json:"accepted"`
	ShareIndex     int    `json:"share_index,omitempty"`
	ShareContentID string `json:"share_content_id,omitempty"`
}
