package receipt_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustrail/trustrail-core/pkg/chain"
	"github.com/trustrail/trustrail-core/pkg/identity"
	"github.com/trustrail/trustrail-core/pkg/receipt"
	"github.com/trustrail/trustrail-core/pkg/scoring"
)

// fixture wires a registry, one agent identity, and a generator with a
// frozen clock.
type fixture struct {
	registry  *identity.MemoryRegistry
	generator *receipt.Generator
	agentDID  string
	priv      ed25519.PrivateKey
	pub       ed25519.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	registry := identity.NewMemoryRegistry("")
	created, err := registry.Create(identity.EntityAgent, "test-agent", "")
	require.NoError(t, err)

	privBytes, err := hex.DecodeString(created.PrivateKey)
	require.NoError(t, err)
	pubBytes, err := hex.DecodeString(created.PublicKey)
	require.NoError(t, err)

	gen := receipt.NewGenerator(registry, scoring.NewEngine())
	gen.Now = func() time.Time { return time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC) }

	return &fixture{
		registry:  registry,
		generator: gen,
		agentDID:  created.DID,
		priv:      privBytes,
		pub:       pubBytes,
	}
}

func (f *fixture) input() receipt.GenerateInput {
	return receipt.GenerateInput{
		SessionID:   "s1",
		AgentDID:    f.agentDID,
		Interaction: receipt.NewRawInteraction("What is 2+2?", "4", "gpt-test"),
		PrivateKey:  f.priv,
	}
}

func TestGenerate_Genesis(t *testing.T) {
	f := newFixture(t)

	r, err := f.generator.Generate(f.input())
	require.NoError(t, err)

	assert.Equal(t, receipt.Version, r.Version)
	assert.Equal(t, "2025-03-14T09:26:53.589Z", r.Timestamp)
	assert.Equal(t, "s1", r.SessionID)
	assert.Equal(t, f.agentDID, r.AgentDID)
	assert.Equal(t, receipt.ModeConstitutional, r.Mode)
	assert.Len(t, r.ID, chain.HashLength)

	assert.Equal(t, chain.Genesis, r.Chain.PreviousHash)
	assert.Equal(t, 1, r.Chain.ChainLength)
	assert.Len(t, r.Chain.ChainHash, chain.HashLength)

	assert.Equal(t, chain.SignatureAlgorithm, r.Signature.Algorithm)
	assert.Equal(t, "1", r.Signature.KeyVersion)

	// The signature verifies over the canonical payload
	payload, err := r.CanonicalPayload()
	require.NoError(t, err)
	ok, err := chain.Verify(r.Signature.Value, payload, f.pub)
	require.NoError(t, err)
	assert.True(t, ok)

	// The id is the content hash of the payload
	id, err := r.ComputeID()
	require.NoError(t, err)
	assert.Equal(t, id, r.ID)

	// The chain hash is reproducible from its four components
	assert.Equal(t, chain.ChainHash(chain.Genesis, payload, r.Timestamp, r.Signature.Value), r.Chain.ChainHash)
}

func TestGenerate_ScoresInvokeScoringEngine(t *testing.T) {
	f := newFixture(t)

	in := f.input()
	in.PolicyName = "healthcare"
	in.Scores = scoring.Scores{
		scoring.ConsentArchitecture:  9,
		scoring.InspectionMandate:    7,
		scoring.ContinuousValidation: 8,
		scoring.EthicalOverride:      9,
		scoring.RightToDisconnect:    7,
		scoring.MoralRecognition:     6,
	}

	r, err := f.generator.Generate(in)
	require.NoError(t, err)

	require.NotNil(t, r.Telemetry)
	assert.Equal(t, 82, r.Telemetry.OverallScore)
	assert.Equal(t, scoring.StatusPass, r.Telemetry.Status)
	assert.Equal(t, "healthcare", r.Telemetry.WeightSource)
	assert.Equal(t, 3500, r.Telemetry.Weights[scoring.ConsentArchitecture])
}

func TestGenerate_PreScoredTelemetryEmbeddedVerbatim(t *testing.T) {
	f := newFixture(t)

	in := f.input()
	in.Telemetry = &receipt.Telemetry{
		Scores:       scoring.Scores{scoring.ConsentArchitecture: 9},
		OverallScore: 55,
		Status:       scoring.StatusPartial,
		WeightSource: "upstream",
	}

	r, err := f.generator.Generate(in)
	require.NoError(t, err)
	assert.Equal(t, 55, r.Telemetry.OverallScore)
	assert.Equal(t, "upstream", r.Telemetry.WeightSource)
}

func TestGenerate_ChainedReceipts(t *testing.T) {
	f := newFixture(t)

	first, err := f.generator.Generate(f.input())
	require.NoError(t, err)

	in := f.input()
	in.PreviousHash = first.Chain.ChainHash
	in.ChainLength = 2

	second, err := f.generator.Generate(in)
	require.NoError(t, err)

	assert.Equal(t, first.Chain.ChainHash, second.Chain.PreviousHash)
	assert.Equal(t, 2, second.Chain.ChainLength)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestGenerate_RevokedIdentityCannotSign(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Revoke(f.agentDID, "compromised")
	require.NoError(t, err)

	_, err = f.generator.Generate(f.input())
	assert.ErrorIs(t, err, identity.ErrIdentityUnavailable)
}

func TestGenerate_UnknownIdentity(t *testing.T) {
	f := newFixture(t)

	other := identity.NewMemoryRegistry("")
	created, err := other.Create(identity.EntityAgent, "stranger", "")
	require.NoError(t, err)

	in := f.input()
	in.AgentDID = created.DID

	_, err = f.generator.Generate(in)
	assert.ErrorIs(t, err, identity.ErrIdentityUnavailable)
}

func TestGenerate_KeyMismatchRejected(t *testing.T) {
	f := newFixture(t)

	// A key that is not the registered active key must not sign, even if
	// it is a perfectly good Ed25519 key.
	other := newFixture(t)
	in := f.input()
	in.PrivateKey = other.priv

	_, err := f.generator.Generate(in)
	assert.ErrorIs(t, err, receipt.ErrKeyMismatch)
}

func TestGenerate_KeyVersionTracksRotation(t *testing.T) {
	f := newFixture(t)

	newPub, newPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, err = f.registry.Rotate(f.agentDID, newPub)
	require.NoError(t, err)

	// The old key no longer signs
	_, err = f.generator.Generate(f.input())
	assert.ErrorIs(t, err, receipt.ErrKeyMismatch)

	in := f.input()
	in.PrivateKey = newPriv
	r, err := f.generator.Generate(in)
	require.NoError(t, err)
	assert.Equal(t, "2", r.Signature.KeyVersion)
}

func TestGenerate_PrivateInteraction(t *testing.T) {
	f := newFixture(t)

	interaction, err := receipt.NewPrivateInteraction("secret prompt", "secret response", "gpt-test")
	require.NoError(t, err)
	assert.True(t, interaction.IsPrivate())

	in := f.input()
	in.Interaction = interaction

	r, err := f.generator.Generate(in)
	require.NoError(t, err)
	assert.Empty(t, r.Interaction.Prompt)
	assert.Len(t, r.Interaction.PromptHash, chain.HashLength)
	assert.Len(t, r.Interaction.ResponseHash, chain.HashLength)
}

func TestGenerate_InputValidation(t *testing.T) {
	f := newFixture(t)

	t.Run("missing session", func(t *testing.T) {
		in := f.input()
		in.SessionID = ""
		_, err := f.generator.Generate(in)
		assert.ErrorIs(t, err, receipt.ErrInvalidInput)
	})

	t.Run("malformed agent DID", func(t *testing.T) {
		in := f.input()
		in.AgentDID = "did:bad"
		_, err := f.generator.Generate(in)
		assert.ErrorIs(t, err, receipt.ErrInvalidInput)
	})

	t.Run("interaction mixing raw and hashed", func(t *testing.T) {
		in := f.input()
		in.Interaction.PromptHash = "abc"
		_, err := f.generator.Generate(in)
		assert.ErrorIs(t, err, receipt.ErrInvalidInput)
	})

	t.Run("interaction without model", func(t *testing.T) {
		in := f.input()
		in.Interaction.Model = ""
		_, err := f.generator.Generate(in)
		assert.ErrorIs(t, err, receipt.ErrInvalidInput)
	})

	t.Run("previous hash without chain length", func(t *testing.T) {
		in := f.input()
		in.PreviousHash = "deadbeef"
		_, err := f.generator.Generate(in)
		assert.ErrorIs(t, err, receipt.ErrInvalidInput)
	})

	t.Run("genesis with wrong chain length", func(t *testing.T) {
		in := f.input()
		in.ChainLength = 3
		_, err := f.generator.Generate(in)
		assert.ErrorIs(t, err, receipt.ErrInvalidInput)
	})

	t.Run("scoring failure propagates", func(t *testing.T) {
		in := f.input()
		in.Scores = scoring.Scores{scoring.ConsentArchitecture: 9} // five missing
		_, err := f.generator.Generate(in)
		assert.ErrorIs(t, err, scoring.ErrMissingPrinciple)
	})
}

func TestGenerate_DeterministicID(t *testing.T) {
	// Same payload, same clock → same id and chain hash.
	f := newFixture(t)

	r1, err := f.generator.Generate(f.input())
	require.NoError(t, err)
	r2, err := f.generator.Generate(f.input())
	require.NoError(t, err)

	assert.Equal(t, r1.ID, r2.ID)
	assert.Equal(t, r1.Chain.ChainHash, r2.Chain.ChainHash)
}
