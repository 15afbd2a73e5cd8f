// Package storage provides content-addressed storage backends for session
// bulletins and encrypted share records.
//
// Content is identified by its SHA-256 hash, so any backend holding the data
// can serve it and the result can be verified against the identifier.
// Bulletins are public session records (group parameters, commitments, state)
// and may live on open backends such as public S3 buckets or IPFS. Share
// records hold ciphertext only, but should still be kept on operator-trusted
// backends; the Vault backend authenticates with TLS client certificates for
// that purpose.
//
// Available backends:
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - IPFS distributed storage
//   - vault:// - HashiCorp Vault KV v2
//
// Backends are created from location URIs through the Factory, and several
// backends can be aggregated into a MultiStorageBackend that stores to every
// available backend and fetches from the first one that has the content.
package storage
