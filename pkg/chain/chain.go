// Package chain implements the hash-chain and signature primitives for
// trust receipts: content hashes over canonical bytes, Ed25519 signatures,
// and the chain hash that binds a receipt to its predecessor.
package chain

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/trustrail/trustrail-core/pkg/canonical"
)

// Common errors returned by this package.
var (
	ErrInvalidKeySize = errors.New("invalid Ed25519 key size")
)

const (
	// Genesis is the sentinel previous-hash for the first receipt of a session.
	Genesis = "GENESIS"

	// HashLength is the length of a hex-encoded SHA-256 digest.
	HashLength = 64

	// SignatureAlgorithm identifies the only signature scheme in use.
	SignatureAlgorithm = "Ed25519"

	// timestampLayout is the wire format for receipt timestamps:
	// UTC, millisecond precision, Z suffix. The timestamp participates in
	// the chain hash as this exact string, so the layout is load-bearing.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Timestamp formats t in the receipt wire format (UTC milliseconds).
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a receipt timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

// HashBytes returns the lowercase hex SHA-256 digest of b.
func HashBytes(b []byte) string {
	digest := sha256.Sum256(b)
	return hex.EncodeToString(digest[:])
}

// ContentHash canonicalizes payload and returns its hex SHA-256 digest.
// Identical semantic content produces an identical hash on every platform.
func ContentHash(payload any) (string, error) {
	c, err := canonical.Canonicalize(payload)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	return HashBytes(c), nil
}

// Sign produces a hex-encoded Ed25519 signature over the canonical payload
// bytes. The private key is used for the duration of this call only.
func Sign(canonicalPayload []byte, privateKey ed25519.PrivateKey) (string, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKeySize, ed25519.PrivateKeySize, len(privateKey))
	}
	sig := ed25519.Sign(privateKey, canonicalPayload)
	return hex.EncodeToString(sig), nil
}

// Verify checks a hex-encoded Ed25519 signature over the canonical payload
// bytes. Malformed signatures return false, not an error; only a wrong-size
// public key is an error.
func Verify(signatureHex string, canonicalPayload []byte, publicKey ed25519.PublicKey) (bool, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKeySize, ed25519.PublicKeySize, len(publicKey))
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false, nil
	}

	return ed25519.Verify(publicKey, canonicalPayload, sig), nil
}

// ChainHash computes the hash that links a receipt into its session chain:
//
//	SHA-256(previous_hash || canonical_payload || timestamp || signature)
//
// with each component as UTF-8 bytes, the signature as lowercase hex, and
// no separators. Including the signature means chain linkage cannot be
// forged without re-signing.
func ChainHash(previousHash string, canonicalPayload []byte, timestamp, signatureHex string) string {
	buf := make([]byte, 0, len(previousHash)+len(canonicalPayload)+len(timestamp)+len(signatureHex))
	buf = append(buf, previousHash...)
	buf = append(buf, canonicalPayload...)
	buf = append(buf, timestamp...)
	buf = append(buf, signatureHex...)
	return HashBytes(buf)
}

// EqualHash compares two hex digests in constant time.
func EqualHash(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
