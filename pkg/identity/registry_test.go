package identity_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustrail/trustrail-core/pkg/did"
	"github.com/trustrail/trustrail-core/pkg/identity"
)

// Both implementations must satisfy the same contract, so every test runs
// against both.
func registries(t *testing.T) map[string]identity.Registry {
	t.Helper()

	fileReg, err := identity.NewFileRegistry(t.TempDir(), "")
	require.NoError(t, err)

	return map[string]identity.Registry{
		"memory": identity.NewMemoryRegistry(""),
		"file":   fileReg,
	}
}

func TestCreate(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			created, err := reg.Create(identity.EntityAgent, "support-agent", "tier-1 support bot")
			require.NoError(t, err)

			require.NoError(t, did.Validate(created.DID))
			assert.True(t, strings.HasPrefix(created.DID, "did:trustrail:"))
			assert.Len(t, created.PublicKey, ed25519.PublicKeySize*2)
			assert.Len(t, created.PrivateKey, ed25519.PrivateKeySize*2)

			res, err := reg.Resolve(created.DID)
			require.NoError(t, err)
			assert.Equal(t, created.PublicKey, res.PublicKey)
			assert.Equal(t, "1", res.KeyVersion)
			assert.Equal(t, identity.StatusActive, res.Status)
		})
	}
}

func TestCreate_UnknownEntityType(t *testing.T) {
	reg := identity.NewMemoryRegistry("")
	_, err := reg.Create(identity.EntityType("robot"), "x", "")
	assert.ErrorIs(t, err, identity.ErrInvalidState)
}

func TestResolve_NotFound(t *testing.T) {
	unknown := "did:trustrail:" + strings.Repeat("ab12", 10)
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(unknown)
			assert.ErrorIs(t, err, identity.ErrNotFound)
		})
	}
}

func TestResolve_MalformedDID(t *testing.T) {
	reg := identity.NewMemoryRegistry("")
	_, err := reg.Resolve("not-a-did")
	assert.ErrorIs(t, err, did.ErrInvalidFormat)
}

func TestRotate(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			created, err := reg.Create(identity.EntityAgent, "rotator", "")
			require.NoError(t, err)

			newPub, _, err := ed25519.GenerateKey(rand.Reader)
			require.NoError(t, err)

			rot, err := reg.Rotate(created.DID, newPub)
			require.NoError(t, err)
			assert.Equal(t, "2", rot.KeyVersion)
			assert.Equal(t, identity.StatusActive, rot.Status)

			// Resolution now reports the new key
			res, err := reg.Resolve(created.DID)
			require.NoError(t, err)
			assert.Equal(t, "2", res.KeyVersion)
			assert.NotEqual(t, created.PublicKey, res.PublicKey)

			// History keeps the old key, newest first
			history, err := reg.KeyHistory(created.DID)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, "2", history[0].Version)
			assert.Equal(t, identity.KeyActive, history[0].Status)
			assert.Equal(t, "1", history[1].Version)
			assert.Equal(t, identity.KeyRotated, history[1].Status)
			assert.Equal(t, created.PublicKey, history[1].PublicKey)
			assert.NotNil(t, history[1].RotatedAt)
		})
	}
}

func TestRotate_Unknown(t *testing.T) {
	reg := identity.NewMemoryRegistry("")
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = reg.Rotate("did:trustrail:"+strings.Repeat("cd34", 10), pub)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestRevoke(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			created, err := reg.Create(identity.EntityAgent, "doomed", "")
			require.NoError(t, err)

			rev, err := reg.Revoke(created.DID, "key compromise")
			require.NoError(t, err)
			assert.Equal(t, identity.StatusRevoked, rev.Status)
			assert.Equal(t, "key compromise", rev.RevocationReason)

			// Resolution still succeeds, reporting the last-known key
			res, err := reg.Resolve(created.DID)
			require.NoError(t, err)
			assert.Equal(t, identity.StatusRevoked, res.Status)
			assert.Equal(t, created.PublicKey, res.PublicKey)

			// Double revocation is rejected, not silently accepted
			_, err = reg.Revoke(created.DID, "again")
			assert.ErrorIs(t, err, identity.ErrInvalidState)

			// Rotation after revocation is rejected
			newPub, _, err := ed25519.GenerateKey(rand.Reader)
			require.NoError(t, err)
			_, err = reg.Rotate(created.DID, newPub)
			assert.ErrorIs(t, err, identity.ErrInvalidState)
		})
	}
}

func TestRevoke_RotatedKeysKeepStatus(t *testing.T) {
	reg := identity.NewMemoryRegistry("")
	created, err := reg.Create(identity.EntityAgent, "a", "")
	require.NoError(t, err)

	newPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, err = reg.Rotate(created.DID, newPub)
	require.NoError(t, err)

	_, err = reg.Revoke(created.DID, "done")
	require.NoError(t, err)

	history, err := reg.KeyHistory(created.DID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, identity.KeyRevoked, history[0].Status) // was active
	assert.Equal(t, identity.KeyRotated, history[1].Status) // untouched
}

func TestSigningKeyCapability(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			created, err := reg.Create(identity.EntityAgent, "signer", "")
			require.NoError(t, err)

			key, err := reg.ResolveSigningKey(created.DID)
			require.NoError(t, err)
			assert.Equal(t, "1", key.KeyVersion)
			assert.Len(t, key.PublicKey, ed25519.PublicKeySize)

			_, err = reg.Revoke(created.DID, "compromise")
			require.NoError(t, err)

			// Revoked identities cannot sign...
			_, err = reg.ResolveSigningKey(created.DID)
			assert.ErrorIs(t, err, identity.ErrIdentityUnavailable)

			// ...but their historical keys still verify
			pub, err := reg.ResolveVerificationKey(created.DID, "1")
			require.NoError(t, err)
			assert.Len(t, pub, ed25519.PublicKeySize)
		})
	}
}

func TestResolveSigningKey_Unknown(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			_, err := reg.ResolveSigningKey("did:trustrail:" + strings.Repeat("ef56", 10))
			assert.ErrorIs(t, err, identity.ErrIdentityUnavailable)
		})
	}
}

func TestResolveVerificationKey_VersionSurvivesRotation(t *testing.T) {
	reg := identity.NewMemoryRegistry("")
	created, err := reg.Create(identity.EntityAgent, "a", "")
	require.NoError(t, err)

	newPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, err = reg.Rotate(created.DID, newPub)
	require.NoError(t, err)

	v1, err := reg.ResolveVerificationKey(created.DID, "1")
	require.NoError(t, err)
	v2, err := reg.ResolveVerificationKey(created.DID, "2")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
	assert.Equal(t, ed25519.PublicKey(newPub), v2)

	_, err = reg.ResolveVerificationKey(created.DID, "3")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestActiveKeyInvariant(t *testing.T) {
	// Exactly one active key while the identity lives, zero once revoked.
	reg := identity.NewMemoryRegistry("")
	created, err := reg.Create(identity.EntityAgent, "a", "")
	require.NoError(t, err)

	countActive := func() int {
		history, err := reg.KeyHistory(created.DID)
		require.NoError(t, err)
		n := 0
		for _, rec := range history {
			if rec.Status == identity.KeyActive {
				n++
			}
		}
		return n
	}

	assert.Equal(t, 1, countActive())

	for i := 0; i < 3; i++ {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		_, err = reg.Rotate(created.DID, pub)
		require.NoError(t, err)
		assert.Equal(t, 1, countActive())
	}

	_, err = reg.Revoke(created.DID, "end of life")
	require.NoError(t, err)
	assert.Equal(t, 0, countActive())
}

func TestFileRegistry_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	reg, err := identity.NewFileRegistry(dir, "")
	require.NoError(t, err)
	reg.Now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	created, err := reg.Create(identity.EntityHuman, "operator", "")
	require.NoError(t, err)

	reopened, err := identity.NewFileRegistry(dir, "")
	require.NoError(t, err)

	res, err := reopened.Resolve(created.DID)
	require.NoError(t, err)
	assert.Equal(t, created.PublicKey, res.PublicKey)

	ident, err := reopened.Get(created.DID)
	require.NoError(t, err)
	assert.Equal(t, identity.EntityHuman, ident.EntityType)
	assert.Equal(t, "operator", ident.Name)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), ident.CreatedAt)
}
