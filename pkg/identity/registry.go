// Package identity implements the DID registry: creation, resolution,
// key rotation, revocation, and key history for the cryptographic
// identities that sign trust receipts.
//
// Resolution is split into two capabilities. ResolveVerificationKey
// succeeds for any key ever recorded, including keys of revoked
// identities, so historical receipts stay verifiable forever.
// ResolveSigningKey succeeds only for an active identity's active key —
// a revoked identity can never produce new receipts.
package identity

import (
	"crypto/ed25519"
	"errors"
	"time"
)

// Common errors returned by this package.
var (
	ErrNotFound            = errors.New("identity not found")
	ErrInvalidState        = errors.New("invalid identity state")
	ErrIdentityUnavailable = errors.New("identity unavailable for signing")
	ErrInvalidKey          = errors.New("invalid key material")
)

// EntityType classifies the principal behind an identity.
type EntityType string

const (
	EntityAgent   EntityType = "agent"
	EntityHuman   EntityType = "human"
	EntityService EntityType = "service"
)

// KeyStatus is the lifecycle status of a single key in the history.
type KeyStatus string

const (
	KeyActive  KeyStatus = "active"
	KeyRotated KeyStatus = "rotated"
	KeyRevoked KeyStatus = "revoked"
)

// Status is the lifecycle status of a whole identity.
// Revocation is terminal.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// KeyRecord is one entry in an identity's key history. It retains enough
// information to verify any receipt ever signed with the key.
type KeyRecord struct {
	// PublicKey is the hex-encoded Ed25519 public key.
	PublicKey string `json:"public_key"`

	// Version is the monotonically increasing key version ("1", "2", ...).
	Version string `json:"version"`

	// Status is active, rotated, or revoked.
	Status KeyStatus `json:"status"`

	// CreatedAt is when the key became active.
	CreatedAt time.Time `json:"created_at"`

	// RotatedAt is when the key stopped being active (rotation or revocation).
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
}

// Identity is the full registry record for one DID.
// Invariant: exactly one key in KeyHistory has status active unless the
// identity is revoked, in which case zero do.
type Identity struct {
	ID                string     `json:"id"`
	EntityType        EntityType `json:"entity_type"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	CurrentPublicKey  string     `json:"current_public_key"`
	CurrentKeyVersion string     `json:"current_key_version"`

	// KeyHistory is stored oldest first; the KeyHistory registry operation
	// returns it newest first.
	KeyHistory []KeyRecord `json:"key_history"`

	Status           Status `json:"status"`
	RevocationReason string `json:"revocation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Created is the result of creating an identity. The private key is
// returned exactly once; the registry does not retain it.
type Created struct {
	DID        string `json:"did"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// Resolution is the result of resolving a DID. For a revoked identity it
// carries the last-known key and Status revoked — still usable to verify
// old receipts, never to sign new ones.
type Resolution struct {
	PublicKey  string `json:"public_key"`
	KeyVersion string `json:"key_version"`
	Status     Status `json:"status"`
}

// Rotation is the result of a key rotation.
type Rotation struct {
	KeyVersion string `json:"key_version"`
	Status     Status `json:"status"`
}

// Revocation is the result of revoking an identity.
type Revocation struct {
	Status           Status `json:"status"`
	RevocationReason string `json:"revocation_reason"`
}

// SigningKey is the active key of an active identity.
type SigningKey struct {
	PublicKey  ed25519.PublicKey
	KeyVersion string
}

// Registry is the interface all identity registries implement.
// Implementations must serialize Rotate/Revoke per DID; Resolve and the
// other reads may proceed concurrently.
type Registry interface {
	// Create generates an Ed25519 key pair, derives the DID, and records
	// the key as version "1", status active.
	Create(entityType EntityType, name, description string) (*Created, error)

	// Resolve returns the current key and status. It succeeds for revoked
	// identities (callers must treat those as untrusted for new work) and
	// fails with ErrNotFound for unknown DIDs.
	Resolve(didStr string) (*Resolution, error)

	// Rotate marks the current active key rotated and appends newPublicKey
	// as active with an incremented version. Fails with ErrNotFound for
	// unknown DIDs and ErrInvalidState for revoked identities.
	Rotate(didStr string, newPublicKey ed25519.PublicKey) (*Rotation, error)

	// Revoke terminally revokes an identity. A second revocation fails with
	// ErrInvalidState — revocation must be explicit and auditable once.
	Revoke(didStr, reason string) (*Revocation, error)

	// KeyHistory returns the identity's keys, newest first.
	KeyHistory(didStr string) ([]KeyRecord, error)

	// Get returns the full identity record.
	Get(didStr string) (*Identity, error)

	KeyResolver
}

// KeyResolver is the capability-split view of a registry that the receipt
// generator and validator consume.
type KeyResolver interface {
	// ResolveSigningKey returns the active key for an active identity.
	// Fails with ErrIdentityUnavailable if the identity is unknown or
	// revoked.
	ResolveSigningKey(didStr string) (*SigningKey, error)

	// ResolveVerificationKey returns the public key recorded under
	// keyVersion, regardless of key or identity status. Fails with
	// ErrNotFound if the DID or version was never recorded.
	ResolveVerificationKey(didStr, keyVersion string) (ed25519.PublicKey, error)
}
