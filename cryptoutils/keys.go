package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
)

// PlayerPubkey is a player's ECDSA public key in PEM (PKIX) format. It serves
// two purposes: verifying the player's request signatures and encrypting the
// player's share.
type PlayerPubkey []byte

// Validate checks that the PEM parses into an ECDSA public key.
func (pub PlayerPubkey) Validate() error {
	_, err := ParsePublicKey(pub)
	return err
}

// Fingerprint returns the hex-encoded SHA-256 digest of the PEM encoding.
// Fingerprints are the default player identifiers in roster files.
func (pub PlayerPubkey) Fingerprint() string {
	h := sha256.Sum256(pub)
	return hex.EncodeToString(h[:])
}

// GenerateKeyPair creates a new P-256 ECDSA key pair for a player or dealer.
// Both keys are returned in PEM format: the private key as an EC PRIVATE KEY
// block, the public key as a PUBLIC KEY block suitable for roster files.
func GenerateKeyPair() (privateKeyPEM, publicKeyPEM []byte, err error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	privateKeyPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: privateKeyBytes,
	})

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicKeyPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicKeyBytes,
	})

	return privateKeyPEM, publicKeyPEM, nil
}

// ParsePrivateKey parses an ECDSA private key from PEM format.
func ParsePrivateKey(privateKeyPEM []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing private key")
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ECDSA private key: %w", err)
	}

	return privateKey, nil
}

// ParsePublicKey parses an ECDSA public key from PEM (PKIX) format.
func ParsePublicKey(publicKeyPEM []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing public key")
	}

	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	ecdsaPubKey, ok := pubKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("not an ECDSA public key")
	}

	return ecdsaPubKey, nil
}

// SignRequest signs an API request with the caller's private key. The signed
// message is SHA-256(method || path || body) and the signature is ASN.1
// encoded, matching VerifyRequest on the server side.
func SignRequest(privateKey *ecdsa.PrivateKey, method, path string, body []byte) ([]byte, error) {
	digest := requestDigest(method, path, body)
	return ecdsa.SignASN1(rand.Reader, privateKey, digest[:])
}

// VerifyRequest checks an ASN.1 request signature against a player's public
// key PEM. A false result means the signature does not match; parsing
// problems with the key are reported as errors.
func VerifyRequest(publicKeyPEM []byte, method, path string, body, signature []byte) (bool, error) {
	pubKey, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return false, err
	}

	digest := requestDigest(method, path, body)
	return ecdsa.VerifyASN1(pubKey, digest[:], signature), nil
}

func requestDigest(method, path string, body []byte) [32]byte {
	message := method + path
	if len(body) > 0 {
		message += string(body)
	}
	return sha256.Sum256([]byte(message))
}
