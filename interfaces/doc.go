// Package interfaces defines the types and contracts shared between the
// components of the sharing backend, without implementation details.
//
// Keeping these definitions in one dependency-light package lets the session
// layer, the storage backends and the HTTP handlers evolve independently:
//
// # Identity Types
//
//   - SessionID: UUID identifying one sharing session
//   - PlayerID: operator-chosen identifier for one roster participant
//   - SessionState: the session lifecycle state machine's states
//
// # Storage
//
//   - StorageBackend: content-addressed storage for bulletins and share
//     records (file, S3, IPFS, Vault)
//   - StorageBackendFactory: creates backends from URI strings and builds
//     redundant multi-backend configurations
//   - ContentID: 32-byte SHA-256 hash addressing stored content
//   - ContentType: namespace separation between public bulletins and
//     confidential share records
//
// # Sentinel Errors
//
// Cross-package error branching goes through the sentinels defined here
// (ErrSessionNotFound, ErrInvalidSessionState, ErrUnknownPlayer,
// ErrNotDealer, ErrParameterMismatch, ErrContentNotFound,
// ErrBackendUnavailable, ErrInvalidLocationURI) so callers can use
// errors.Is without importing implementation packages.
package interfaces
