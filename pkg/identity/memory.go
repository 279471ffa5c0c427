package identity

import (
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/trustrail/trustrail-core/pkg/did"
)

// MemoryRegistry is an in-process Registry guarded by a RWMutex.
// Mutations are mutually exclusive; resolution proceeds under the read
// lock. There are no ambient singletons — construct one registry per
// tenant or per test.
type MemoryRegistry struct {
	mu        sync.RWMutex
	entries   map[string]*Identity
	namespace string

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// NewMemoryRegistry creates an empty in-memory registry. An empty
// namespace means did.DefaultNamespace.
func NewMemoryRegistry(namespace string) *MemoryRegistry {
	if namespace == "" {
		namespace = did.DefaultNamespace
	}
	return &MemoryRegistry{
		entries:   make(map[string]*Identity),
		namespace: namespace,
		Now:       time.Now,
	}
}

// Create generates a key pair and registers the new identity.
func (r *MemoryRegistry) Create(entityType EntityType, name, description string) (*Created, error) {
	ident, created, err := newIdentity(r.namespace, entityType, name, description, r.Now().UTC())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[ident.ID]; exists {
		return nil, fmt.Errorf("%w: identity %s already exists", ErrInvalidState, ident.ID)
	}
	r.entries[ident.ID] = ident

	return created, nil
}

// Resolve returns the current key and status for a DID.
func (r *MemoryRegistry) Resolve(didStr string) (*Resolution, error) {
	ident, err := r.lookup(didStr)
	if err != nil {
		return nil, err
	}
	return ident.resolution(), nil
}

// Rotate retires the active key and installs newPublicKey.
func (r *MemoryRegistry) Rotate(didStr string, newPublicKey ed25519.PublicKey) (*Rotation, error) {
	if err := did.Validate(didStr); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.entries[didStr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, didStr)
	}
	return ident.rotate(newPublicKey, r.Now().UTC())
}

// Revoke terminally revokes an identity.
func (r *MemoryRegistry) Revoke(didStr, reason string) (*Revocation, error) {
	if err := did.Validate(didStr); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.entries[didStr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, didStr)
	}
	return ident.revoke(reason, r.Now().UTC())
}

// KeyHistory returns the identity's keys, newest first.
func (r *MemoryRegistry) KeyHistory(didStr string) ([]KeyRecord, error) {
	ident, err := r.lookup(didStr)
	if err != nil {
		return nil, err
	}
	return ident.historyNewestFirst(), nil
}

// Get returns a copy of the full identity record.
func (r *MemoryRegistry) Get(didStr string) (*Identity, error) {
	ident, err := r.lookup(didStr)
	if err != nil {
		return nil, err
	}
	return ident, nil
}

// ResolveSigningKey returns the active key for an active identity.
func (r *MemoryRegistry) ResolveSigningKey(didStr string) (*SigningKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ident, ok := r.entries[didStr]
	if !ok {
		return nil, fmt.Errorf("%w: unknown identity %s", ErrIdentityUnavailable, didStr)
	}
	return ident.signingKey()
}

// ResolveVerificationKey returns the key recorded under keyVersion.
func (r *MemoryRegistry) ResolveVerificationKey(didStr, keyVersion string) (ed25519.PublicKey, error) {
	ident, err := r.lookup(didStr)
	if err != nil {
		return nil, err
	}
	return ident.verificationKey(keyVersion)
}

// lookup returns a deep copy of the record under the read lock.
func (r *MemoryRegistry) lookup(didStr string) (*Identity, error) {
	if err := did.Validate(didStr); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ident, ok := r.entries[didStr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, didStr)
	}
	return ident.clone(), nil
}
