package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/trustrail/trustrail-core/pkg/did"
)

// newIdentity generates a key pair and builds the initial registry record.
// Shared by every Registry implementation.
func newIdentity(namespace string, entityType EntityType, name, description string, now time.Time) (*Identity, *Created, error) {
	switch entityType {
	case EntityAgent, EntityHuman, EntityService:
	default:
		return nil, nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidState, entityType)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	didStr, err := did.FromPublicKey(namespace, pub)
	if err != nil {
		return nil, nil, err
	}

	pubHex := hex.EncodeToString(pub)
	ident := &Identity{
		ID:                didStr,
		EntityType:        entityType,
		Name:              name,
		Description:       description,
		CurrentPublicKey:  pubHex,
		CurrentKeyVersion: "1",
		KeyHistory: []KeyRecord{
			{
				PublicKey: pubHex,
				Version:   "1",
				Status:    KeyActive,
				CreatedAt: now,
			},
		},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created := &Created{
		DID:        didStr,
		PublicKey:  pubHex,
		PrivateKey: hex.EncodeToString(priv),
	}

	return ident, created, nil
}

// rotate applies a key rotation to the record in place.
func (i *Identity) rotate(newPublicKey ed25519.PublicKey, now time.Time) (*Rotation, error) {
	if i.Status == StatusRevoked {
		return nil, fmt.Errorf("%w: cannot rotate key of revoked identity %s", ErrInvalidState, i.ID)
	}
	if len(newPublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(newPublicKey))
	}

	current, err := strconv.Atoi(i.CurrentKeyVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt key version %q", ErrInvalidState, i.CurrentKeyVersion)
	}
	next := strconv.Itoa(current + 1)

	// Retire the active key; prior rotations are untouched.
	for idx := range i.KeyHistory {
		if i.KeyHistory[idx].Status == KeyActive {
			i.KeyHistory[idx].Status = KeyRotated
			at := now
			i.KeyHistory[idx].RotatedAt = &at
		}
	}

	pubHex := hex.EncodeToString(newPublicKey)
	i.KeyHistory = append(i.KeyHistory, KeyRecord{
		PublicKey: pubHex,
		Version:   next,
		Status:    KeyActive,
		CreatedAt: now,
	})
	i.CurrentPublicKey = pubHex
	i.CurrentKeyVersion = next
	i.UpdatedAt = now

	return &Rotation{KeyVersion: next, Status: i.Status}, nil
}

// revoke terminally revokes the identity in place.
func (i *Identity) revoke(reason string, now time.Time) (*Revocation, error) {
	if i.Status == StatusRevoked {
		return nil, fmt.Errorf("%w: identity %s is already revoked", ErrInvalidState, i.ID)
	}

	// The active key is revoked with the identity; already-rotated keys
	// keep their own status.
	for idx := range i.KeyHistory {
		if i.KeyHistory[idx].Status == KeyActive {
			i.KeyHistory[idx].Status = KeyRevoked
			at := now
			i.KeyHistory[idx].RotatedAt = &at
		}
	}

	i.Status = StatusRevoked
	i.RevocationReason = reason
	i.UpdatedAt = now

	return &Revocation{Status: StatusRevoked, RevocationReason: reason}, nil
}

// resolution builds the Resolve result for the record. Revoked identities
// resolve to their last-known key so historical receipts stay verifiable.
func (i *Identity) resolution() *Resolution {
	return &Resolution{
		PublicKey:  i.CurrentPublicKey,
		KeyVersion: i.CurrentKeyVersion,
		Status:     i.Status,
	}
}

// signingKey returns the active key if the identity may sign.
func (i *Identity) signingKey() (*SigningKey, error) {
	if i.Status == StatusRevoked {
		return nil, fmt.Errorf("%w: identity %s is revoked", ErrIdentityUnavailable, i.ID)
	}

	pub, err := hex.DecodeString(i.CurrentPublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: corrupt public key for %s", ErrInvalidKey, i.ID)
	}

	return &SigningKey{PublicKey: pub, KeyVersion: i.CurrentKeyVersion}, nil
}

// verificationKey returns the historical key recorded under version,
// regardless of key or identity status.
func (i *Identity) verificationKey(version string) (ed25519.PublicKey, error) {
	for _, rec := range i.KeyHistory {
		if rec.Version != version {
			continue
		}
		pub, err := hex.DecodeString(rec.PublicKey)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: corrupt public key for %s version %s", ErrInvalidKey, i.ID, version)
		}
		return pub, nil
	}
	return nil, fmt.Errorf("%w: %s has no key version %s", ErrNotFound, i.ID, version)
}

// historyNewestFirst returns a copy of the key history, newest first.
func (i *Identity) historyNewestFirst() []KeyRecord {
	out := make([]KeyRecord, len(i.KeyHistory))
	for idx, rec := range i.KeyHistory {
		out[len(i.KeyHistory)-1-idx] = rec
	}
	return out
}

// clone returns a deep copy so callers never alias registry state.
func (i *Identity) clone() *Identity {
	dup := *i
	dup.KeyHistory = make([]KeyRecord, len(i.KeyHistory))
	copy(dup.KeyHistory, i.KeyHistory)
	for idx := range dup.KeyHistory {
		if dup.KeyHistory[idx].RotatedAt != nil {
			at := *dup.KeyHistory[idx].RotatedAt
			dup.KeyHistory[idx].RotatedAt = &at
		}
	}
	return &dup
}
