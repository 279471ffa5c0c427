// Package receipt composes, signs, chains, and verifies trust receipts:
// immutable, tamper-evident records of one AI interaction plus its trust
// evaluation. Receipts are created once by the Generator and never
// mutated; a correction is a new receipt referencing the old one through
// previous_hash.
package receipt

import (
	"errors"
	"fmt"

	"github.com/trustrail/trustrail-core/pkg/canonical"
	"github.com/trustrail/trustrail-core/pkg/chain"
	"github.com/trustrail/trustrail-core/pkg/scoring"
)

// Common errors returned by this package.
var (
	ErrInvalidInput = errors.New("invalid receipt input")
	ErrKeyMismatch  = errors.New("private key does not match registered key")
)

// Version is the receipt schema version.
const Version = "1.0"

// Mode describes the governance regime the interaction ran under.
type Mode string

const (
	ModeConstitutional Mode = "constitutional"
	ModeDirective      Mode = "directive"
)

// Interaction is the recorded exchange. Either the raw prompt/response
// pair or their hashes is present, never both: privacy-preserving
// receipts carry hashes only.
type Interaction struct {
	Prompt       string `json:"prompt,omitempty"`
	Response     string `json:"response,omitempty"`
	PromptHash   string `json:"prompt_hash,omitempty"`
	ResponseHash string `json:"response_hash,omitempty"`
	Model        string `json:"model"`
}

// NewRawInteraction builds an interaction carrying plaintext content.
func NewRawInteraction(prompt, response, model string) Interaction {
	return Interaction{Prompt: prompt, Response: response, Model: model}
}

// NewPrivateInteraction builds a privacy-preserving interaction: the
// prompt and response are replaced by their canonical content hashes.
func NewPrivateInteraction(prompt, response, model string) (Interaction, error) {
	promptHash, err := chain.ContentHash(prompt)
	if err != nil {
		return Interaction{}, fmt.Errorf("failed to hash prompt: %w", err)
	}
	responseHash, err := chain.ContentHash(response)
	if err != nil {
		return Interaction{}, fmt.Errorf("failed to hash response: %w", err)
	}
	return Interaction{PromptHash: promptHash, ResponseHash: responseHash, Model: model}, nil
}

// validate enforces the raw-XOR-hashed shape.
func (i Interaction) validate() error {
	if i.Model == "" {
		return fmt.Errorf("%w: interaction model is required", ErrInvalidInput)
	}

	raw := i.Prompt != "" || i.Response != ""
	hashed := i.PromptHash != "" || i.ResponseHash != ""
	switch {
	case raw && hashed:
		return fmt.Errorf("%w: interaction cannot mix raw content and content hashes", ErrInvalidInput)
	case !raw && !hashed:
		return fmt.Errorf("%w: interaction needs either content or content hashes", ErrInvalidInput)
	case hashed && (i.PromptHash == "" || i.ResponseHash == ""):
		return fmt.Errorf("%w: privacy-preserving interaction needs both prompt_hash and response_hash", ErrInvalidInput)
	}
	return nil
}

// IsPrivate reports whether the interaction carries hashes only.
func (i Interaction) IsPrivate() bool {
	return i.PromptHash != "" && i.Prompt == ""
}

// Telemetry is the trust evaluation embedded in a receipt. Weights are
// integer basis points so the hashed bytes are platform-identical.
type Telemetry struct {
	Scores       scoring.Scores `json:"scores"`
	OverallScore int            `json:"overall_score"`
	Status       scoring.Status `json:"status"`
	Weights      map[string]int `json:"weights,omitempty"`
	WeightSource string         `json:"weight_source,omitempty"`

	// TruthDebt is an optional accumulated-divergence metric reported by
	// upstream telemetry; the exporter can filter on it.
	TruthDebt *float64 `json:"truth_debt,omitempty"`
}

// PolicyState records the policy context the interaction ran under.
type PolicyState struct {
	Constraints       []string `json:"constraints,omitempty"`
	Violations        []string `json:"violations,omitempty"`
	ConsentGiven      bool     `json:"consent_given"`
	OverrideAvailable bool     `json:"override_available"`
}

// Chain links a receipt into its session chain.
type Chain struct {
	// PreviousHash is the predecessor's chain hash, or chain.Genesis for
	// the first receipt of a session.
	PreviousHash string `json:"previous_hash"`

	// ChainHash binds (previous_hash, payload, timestamp, signature).
	ChainHash string `json:"chain_hash"`

	// ChainLength is 1 for the genesis receipt and increments by one
	// along the session.
	ChainLength int `json:"chain_length"`
}

// Signature is the Ed25519 signature over the canonical payload.
type Signature struct {
	Algorithm  string `json:"algorithm"`
	Value      string `json:"value"`
	KeyVersion string `json:"key_version"`
}

// TrustReceipt is one immutable, signed, hash-chained interaction record.
// Any field change after issuance flips the id, chain hash, and signature
// checks — the guarantee is detectability, not prevention.
type TrustReceipt struct {
	// ID is the content hash of the canonical payload (all fields except
	// id, chain, and signature).
	ID string `json:"id"`

	Version       string `json:"version"`
	Timestamp     string `json:"timestamp"`
	SessionID     string `json:"session_id"`
	AgentDID      string `json:"agent_did"`
	HumanDID      string `json:"human_did,omitempty"`
	PolicyVersion string `json:"policy_version,omitempty"`
	Mode          Mode   `json:"mode"`

	Interaction Interaction  `json:"interaction"`
	Telemetry   *Telemetry   `json:"telemetry,omitempty"`
	PolicyState *PolicyState `json:"policy_state,omitempty"`

	// Metadata is free-form caller context, canonicalized into the id.
	Metadata map[string]any `json:"metadata,omitempty"`

	Chain     Chain     `json:"chain"`
	Signature Signature `json:"signature"`
}

// CanonicalPayload returns the canonical bytes of the receipt payload:
// every field except id, chain, and signature. These are the bytes that
// are hashed into the id and signed.
func (r *TrustReceipt) CanonicalPayload() ([]byte, error) {
	return canonical.CanonicalizeExcluding(r, "id", "chain", "signature")
}

// ComputeID returns the content hash of the canonical payload.
func (r *TrustReceipt) ComputeID() (string, error) {
	payload, err := r.CanonicalPayload()
	if err != nil {
		return "", err
	}
	return chain.HashBytes(payload), nil
}
