package receipt

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/trustrail/trustrail-core/pkg/chain"
	"github.com/trustrail/trustrail-core/pkg/did"
	"github.com/trustrail/trustrail-core/pkg/identity"
	"github.com/trustrail/trustrail-core/pkg/scoring"
)

// Generator issues signed, chained trust receipts. It resolves the
// agent's active key through the identity registry, so a revoked
// identity can never produce a new receipt. The generator has no
// storage or network side effects; persistence is the caller's
// collaborator.
type Generator struct {
	resolver identity.KeyResolver
	scoring  *scoring.Engine

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// NewGenerator creates a Generator. The scoring engine may be nil if
// callers always supply complete telemetry.
func NewGenerator(resolver identity.KeyResolver, engine *scoring.Engine) *Generator {
	return &Generator{
		resolver: resolver,
		scoring:  engine,
		Now:      time.Now,
	}
}

// GenerateInput carries everything a receipt is built from. The private
// key is used for the duration of the call and not retained.
type GenerateInput struct {
	SessionID     string
	AgentDID      string
	HumanDID      string
	Mode          Mode // default: constitutional
	PolicyVersion string

	Interaction Interaction

	// Telemetry, if set, is embedded as-is (scored upstream). If its
	// Status is empty but principle scores are present, the scoring
	// engine fills in the evaluation.
	Telemetry *Telemetry

	// Scores is a shorthand for Telemetry carrying only principle scores.
	Scores scoring.Scores

	// PolicyName selects the weight policy when scoring runs (default
	// scoring.DefaultPolicy).
	PolicyName string

	PolicyState *PolicyState
	Metadata    map[string]any

	// PreviousHash is the predecessor's chain hash; empty means this is
	// the first receipt of the session (chain.Genesis).
	PreviousHash string

	// ChainLength is the caller-tracked position in the session chain.
	// Zero means "infer": 1 when PreviousHash is empty.
	ChainLength int

	// PrivateKey signs the receipt. It must match the agent's registered
	// active key.
	PrivateKey ed25519.PrivateKey
}

// Generate builds, signs, and chains one receipt. Errors are fatal to
// the call; no partial receipt is ever returned.
func (g *Generator) Generate(in GenerateInput) (*TrustReceipt, error) {
	if in.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	if err := did.Validate(in.AgentDID); err != nil {
		return nil, fmt.Errorf("%w: agent_did: %v", ErrInvalidInput, err)
	}
	if in.HumanDID != "" {
		if err := did.Validate(in.HumanDID); err != nil {
			return nil, fmt.Errorf("%w: human_did: %v", ErrInvalidInput, err)
		}
	}
	if err := in.Interaction.validate(); err != nil {
		return nil, err
	}

	mode := in.Mode
	if mode == "" {
		mode = ModeConstitutional
	}

	previousHash, chainLength, err := resolveChainPosition(in.PreviousHash, in.ChainLength)
	if err != nil {
		return nil, err
	}

	telemetry, err := g.resolveTelemetry(in)
	if err != nil {
		return nil, err
	}

	// 1. Resolve the agent's active key. Revoked and unknown identities
	// fail here with ErrIdentityUnavailable.
	key, err := g.resolver.ResolveSigningKey(in.AgentDID)
	if err != nil {
		return nil, err
	}

	// 2. The supplied private key must be the registered active key.
	if len(in.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes", ErrInvalidInput, ed25519.PrivateKeySize)
	}
	if !key.PublicKey.Equal(in.PrivateKey.Public().(ed25519.PublicKey)) {
		return nil, fmt.Errorf("%w: agent %s key version %s", ErrKeyMismatch, in.AgentDID, key.KeyVersion)
	}

	// 3. Build the payload and derive id, signature, chain hash.
	r := &TrustReceipt{
		Version:       Version,
		Timestamp:     chain.Timestamp(g.Now()),
		SessionID:     in.SessionID,
		AgentDID:      in.AgentDID,
		HumanDID:      in.HumanDID,
		PolicyVersion: in.PolicyVersion,
		Mode:          mode,
		Interaction:   in.Interaction,
		Telemetry:     telemetry,
		PolicyState:   in.PolicyState,
		Metadata:      in.Metadata,
	}

	payload, err := r.CanonicalPayload()
	if err != nil {
		return nil, err
	}
	r.ID = chain.HashBytes(payload)

	sigValue, err := chain.Sign(payload, in.PrivateKey)
	if err != nil {
		return nil, err
	}
	r.Signature = Signature{
		Algorithm:  chain.SignatureAlgorithm,
		Value:      sigValue,
		KeyVersion: key.KeyVersion,
	}

	r.Chain = Chain{
		PreviousHash: previousHash,
		ChainHash:    chain.ChainHash(previousHash, payload, r.Timestamp, sigValue),
		ChainLength:  chainLength,
	}

	return r, nil
}

// resolveChainPosition normalizes the caller-supplied chain coordinates.
func resolveChainPosition(previousHash string, chainLength int) (string, int, error) {
	if previousHash == "" {
		previousHash = chain.Genesis
	}

	genesis := previousHash == chain.Genesis
	switch {
	case chainLength == 0 && genesis:
		chainLength = 1
	case chainLength == 0:
		return "", 0, fmt.Errorf("%w: chain_length is required when previous_hash is set", ErrInvalidInput)
	case genesis && chainLength != 1:
		return "", 0, fmt.Errorf("%w: genesis receipt must have chain_length 1, got %d", ErrInvalidInput, chainLength)
	case !genesis && chainLength < 2:
		return "", 0, fmt.Errorf("%w: chained receipt must have chain_length >= 2, got %d", ErrInvalidInput, chainLength)
	}

	return previousHash, chainLength, nil
}

// resolveTelemetry fills in the evaluation when the caller supplied only
// principle scores.
func (g *Generator) resolveTelemetry(in GenerateInput) (*Telemetry, error) {
	telemetry := in.Telemetry
	if telemetry == nil && in.Scores != nil {
		telemetry = &Telemetry{Scores: in.Scores}
	}
	if telemetry == nil {
		return nil, nil
	}

	// Pre-scored telemetry is embedded verbatim.
	if telemetry.Status != "" {
		return telemetry, nil
	}
	if telemetry.Scores == nil {
		return nil, fmt.Errorf("%w: telemetry needs principle scores or a status", ErrInvalidInput)
	}
	if g.scoring == nil {
		return nil, fmt.Errorf("%w: no scoring engine configured to evaluate principle scores", ErrInvalidInput)
	}

	eval, err := g.scoring.Evaluate(telemetry.Scores, in.PolicyName)
	if err != nil {
		return nil, err
	}

	out := *telemetry
	out.Scores = eval.Scores
	out.OverallScore = eval.OverallScore
	out.Status = eval.Status
	out.Weights = eval.Weights
	out.WeightSource = eval.WeightSource
	return &out, nil
}
