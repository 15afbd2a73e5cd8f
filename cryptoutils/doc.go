// Package cryptoutils provides the cryptographic helpers surrounding the
// sharing protocol: player key management, share encryption in transit, and
// share protection at rest.
//
// # Key Management
//
// Players and dealers are identified by P-256 ECDSA key pairs in PEM format.
// GenerateKeyPair creates them, ParsePrivateKey/ParsePublicKey load them, and
// PlayerPubkey.Fingerprint derives the roster identifier. API requests are
// authenticated with SignRequest/VerifyRequest, which sign
// SHA-256(method || path || body) with an ASN.1-encoded ECDSA signature.
//
// # Share Encryption (transit)
//
// EncryptWithPublicKey seals an issued share to the receiving player's
// public key using ECIES (ephemeral ECDH, SHA-256 KDF, AES-GCM). Only the
// holder of the matching private key can open it with DecryptWithPrivateKey.
//
// # Share Protection (rest)
//
// EncryptWithPassphrase/DecryptWithPassphrase protect share files on disk
// between delivery and reconstruction, deriving the AES-GCM key from a
// passphrase with argon2id.
package cryptoutils
