// Package vsshandler implements the authenticated HTTP API for secret
// sharing sessions: the dealer creates sessions and reads reconstructed
// secrets, players fetch and submit shares, and the inbox endpoint receives
// shares pushed by the dealer's fan-out.
//
// Requests are authenticated with the X-Player-ID and X-Player-Signature
// headers against the roster. The Client type signs requests for one player
// identity; PushShare delivers sealed shares to other players' inboxes.
package vsshandler
