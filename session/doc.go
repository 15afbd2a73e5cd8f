// Package session coordinates sharing sessions: the lifecycle state machine
// around the vss core, sealed share issuance against the roster, and
// threshold-triggered reconstruction.
//
// A SharingSession moves through
//
//	Initialized -> ParametersReady -> SharesIssued
//	    -> PartiallyReconstructed -> Reconstructed (terminal)
//
// with Retired as the cleanup terminal reachable from any state. The
// dealer's polynomial is dropped during construction; the session keeps only
// the public commitments and the per-player ECIES-sealed shares. The
// reconstructed secret is released exclusively to the dealer identity that
// created the session.
//
// The Manager owns all live sessions of a deployment: it generates or
// accepts (fingerprint-checked) group parameters, assigns share indices to
// roster entries in roster order, and resolves session IDs for the HTTP
// handlers.
package session
