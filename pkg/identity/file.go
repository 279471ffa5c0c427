package identity

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/trustrail/trustrail-core/pkg/did"
)

// FileRegistry implements Registry using one JSON file per identity.
// Default location: ~/.trustrail/identities/
//
// The write lock spans the whole read-modify-write of a mutation, so
// Rotate and Revoke are mutually exclusive across all DIDs in the
// directory. Reads take the read lock only.
type FileRegistry struct {
	dir       string
	namespace string
	mu        sync.RWMutex

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// DefaultRegistryDir returns the default identity registry directory.
func DefaultRegistryDir() string {
	if envPath := os.Getenv("TRUSTRAIL_HOME"); envPath != "" {
		return filepath.Join(envPath, "identities")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".trustrail", "identities")
	}
	return filepath.Join(home, ".trustrail", "identities")
}

// NewFileRegistry creates a file-based registry rooted at dir.
// An empty dir means DefaultRegistryDir(); an empty namespace means
// did.DefaultNamespace.
func NewFileRegistry(dir, namespace string) (*FileRegistry, error) {
	if dir == "" {
		dir = DefaultRegistryDir()
	}
	if namespace == "" {
		namespace = did.DefaultNamespace
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	return &FileRegistry{dir: dir, namespace: namespace, Now: time.Now}, nil
}

// identityPath returns the file path for a DID's record.
func (r *FileRegistry) identityPath(didStr string) string {
	safe := strings.ReplaceAll(didStr, ":", "_")
	return filepath.Join(r.dir, safe+".json")
}

// Create generates a key pair and writes the new identity record.
func (r *FileRegistry) Create(entityType EntityType, name, description string) (*Created, error) {
	ident, created, err := newIdentity(r.namespace, entityType, name, description, r.Now().UTC())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.identityPath(ident.ID)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: identity %s already exists", ErrInvalidState, ident.ID)
	}
	if err := r.save(ident); err != nil {
		return nil, err
	}

	return created, nil
}

// Resolve returns the current key and status for a DID.
func (r *FileRegistry) Resolve(didStr string) (*Resolution, error) {
	ident, err := r.read(didStr)
	if err != nil {
		return nil, err
	}
	return ident.resolution(), nil
}

// Rotate retires the active key and installs newPublicKey.
func (r *FileRegistry) Rotate(didStr string, newPublicKey ed25519.PublicKey) (*Rotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, err := r.load(didStr)
	if err != nil {
		return nil, err
	}

	rot, err := ident.rotate(newPublicKey, r.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := r.save(ident); err != nil {
		return nil, err
	}
	return rot, nil
}

// Revoke terminally revokes an identity.
func (r *FileRegistry) Revoke(didStr, reason string) (*Revocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, err := r.load(didStr)
	if err != nil {
		return nil, err
	}

	rev, err := ident.revoke(reason, r.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := r.save(ident); err != nil {
		return nil, err
	}
	return rev, nil
}

// KeyHistory returns the identity's keys, newest first.
func (r *FileRegistry) KeyHistory(didStr string) ([]KeyRecord, error) {
	ident, err := r.read(didStr)
	if err != nil {
		return nil, err
	}
	return ident.historyNewestFirst(), nil
}

// Get returns the full identity record.
func (r *FileRegistry) Get(didStr string) (*Identity, error) {
	return r.read(didStr)
}

// List returns every identity in the registry directory.
func (r *FileRegistry) List() ([]*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry directory: %w", err)
	}

	var out []*Identity
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			continue
		}
		var ident Identity
		if err := json.Unmarshal(data, &ident); err != nil {
			continue
		}
		out = append(out, &ident)
	}

	return out, nil
}

// ResolveSigningKey returns the active key for an active identity.
func (r *FileRegistry) ResolveSigningKey(didStr string) (*SigningKey, error) {
	ident, err := r.read(didStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIdentityUnavailable, didStr)
	}
	return ident.signingKey()
}

// ResolveVerificationKey returns the key recorded under keyVersion.
func (r *FileRegistry) ResolveVerificationKey(didStr, keyVersion string) (ed25519.PublicKey, error) {
	ident, err := r.read(didStr)
	if err != nil {
		return nil, err
	}
	return ident.verificationKey(keyVersion)
}

// read loads a record under the read lock.
func (r *FileRegistry) read(didStr string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.load(didStr)
}

// load reads and parses a record. Callers hold the appropriate lock.
func (r *FileRegistry) load(didStr string) (*Identity, error) {
	if err := did.Validate(didStr); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.identityPath(didStr))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, didStr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}

	var ident Identity
	if err := json.Unmarshal(data, &ident); err != nil {
		return nil, fmt.Errorf("failed to parse identity record: %w", err)
	}

	return &ident, nil
}

// save writes a record. Callers hold the write lock.
func (r *FileRegistry) save(ident *Identity) error {
	data, err := json.MarshalIndent(ident, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := os.WriteFile(r.identityPath(ident.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	return nil
}
