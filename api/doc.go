/*
Package api defines the HTTP API surface for the verifiable secret sharing
service: shared request/response types, authentication header names, and the
HTTP server configuration.

The API is split into two handler subpackages:

1. vsshandler - Authenticated session administration and the player share inbox
2. bulletinhandler - Unauthenticated read-only access to public session bulletins

# Authentication

Admin requests carry the player's identity in the X-Player-ID header and an
ECDSA P-256 signature over SHA-256(method || path || body) in the
X-Player-Signature header. Signatures are verified against the public key
registered for that player in the roster.

# Verification failures are data

A share that fails commitment verification is an expected protocol outcome:
the submission endpoints respond 200 with accepted=false rather than an error
status. Error statuses are reserved for transport, authentication, and state
violations.

See the subpackages for handler and client documentation.
*/
package api
