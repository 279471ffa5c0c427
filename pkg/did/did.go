// Package did provides parsing, validation, and derivation of trustrail
// decentralized identifiers. A trustrail DID is a stable identity string
// bound to a rotatable Ed25519 public key, formatted as
// did:<namespace>:<40 alphanumeric characters>.
package did

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by this package.
var (
	ErrInvalidFormat = errors.New("invalid DID format")
)

const (
	// DefaultNamespace is the namespace used for identifiers minted by this
	// module. Other namespaces parse fine; derivation uses this one.
	DefaultNamespace = "trustrail"

	// IdentifierLength is the fixed length of the method-specific identifier.
	IdentifierLength = 40

	// Ed25519PublicKeySize is the size of an Ed25519 public key in bytes.
	Ed25519PublicKeySize = 32
)

// DID represents a parsed identifier.
type DID struct {
	// Namespace is the DID method namespace (e.g., "trustrail").
	Namespace string

	// Identifier is the 40-character alphanumeric method-specific id.
	Identifier string

	// Raw is the original DID string.
	Raw string
}

// Parse parses a DID string into its components.
// Returns ErrInvalidFormat (possibly wrapped with detail) on any violation
// of the did:<namespace>:<40 alphanumeric> shape.
func Parse(s string) (*DID, error) {
	if s == "" {
		return nil, ErrInvalidFormat
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 parts, got %d", ErrInvalidFormat, len(parts))
	}

	if parts[0] != "did" {
		return nil, fmt.Errorf("%w: must start with 'did:'", ErrInvalidFormat)
	}

	namespace := parts[1]
	if namespace == "" || !isLowerAlnum(namespace) {
		return nil, fmt.Errorf("%w: namespace must be lowercase alphanumeric", ErrInvalidFormat)
	}

	id := parts[2]
	if len(id) != IdentifierLength {
		return nil, fmt.Errorf("%w: identifier must be %d characters, got %d", ErrInvalidFormat, IdentifierLength, len(id))
	}
	if !isAlnum(id) {
		return nil, fmt.Errorf("%w: identifier must be alphanumeric", ErrInvalidFormat)
	}

	return &DID{
		Namespace:  namespace,
		Identifier: id,
		Raw:        s,
	}, nil
}

// Validate reports whether s is a well-formed DID.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

// String returns the canonical DID string.
func (d *DID) String() string {
	if d.Raw != "" {
		return d.Raw
	}
	return fmt.Sprintf("did:%s:%s", d.Namespace, d.Identifier)
}

// FromPublicKey derives a DID in the given namespace from an Ed25519
// public key: the identifier is the first 40 hex characters of
// SHA-256(public_key). The derivation is stable — the same key always
// yields the same DID.
func FromPublicKey(namespace string, publicKey ed25519.PublicKey) (string, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if !isLowerAlnum(namespace) {
		return "", fmt.Errorf("%w: namespace must be lowercase alphanumeric", ErrInvalidFormat)
	}
	if len(publicKey) != Ed25519PublicKeySize {
		return "", fmt.Errorf("%w: Ed25519 public key must be %d bytes, got %d", ErrInvalidFormat, Ed25519PublicKeySize, len(publicKey))
	}

	digest := sha256.Sum256(publicKey)
	id := hex.EncodeToString(digest[:])[:IdentifierLength]

	return fmt.Sprintf("did:%s:%s", namespace, id), nil
}

func isAlnum(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

func isLowerAlnum(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}
