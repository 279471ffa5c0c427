package receipt

import (
	"crypto/ed25519"
	"fmt"

	"github.com/trustrail/trustrail-core/pkg/chain"
	"github.com/trustrail/trustrail-core/pkg/did"
	"github.com/trustrail/trustrail-core/pkg/identity"
)

// Validator independently recomputes every integrity property of a
// receipt. An invalid receipt is a normal outcome reported through
// VerificationResult — never an error. Errors are reserved for
// malformed inputs to the validator itself.
type Validator struct {
	resolver identity.KeyResolver
}

// NewValidator creates a Validator. The resolver may be nil when callers
// always supply the public key explicitly.
func NewValidator(resolver identity.KeyResolver) *Validator {
	return &Validator{resolver: resolver}
}

// VerifyOptions configures one verification.
type VerifyOptions struct {
	// PublicKey, if set, is used for signature verification instead of
	// resolving the agent DID.
	PublicKey ed25519.PublicKey

	// PreviousHash, if set, is the expected predecessor chain hash; the
	// chain-continuity check runs only when it is supplied.
	PreviousHash string
}

// Check is one named verification outcome.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Check names reported in VerificationResult.Checks.
const (
	CheckSchema          = "schema_valid"
	CheckReceiptID       = "receipt_id_valid"
	CheckSignature       = "signature_valid"
	CheckChainHash       = "chain_hash_valid"
	CheckChainContinuity = "chain_continuity_valid"
)

// VerificationResult reports the independent integrity checks. Valid is
// the conjunction of every check that was attempted.
type VerificationResult struct {
	Valid bool `json:"valid"`

	SchemaValid    bool `json:"schema_valid"`
	ReceiptIDValid bool `json:"receipt_id_valid"`
	SignatureValid bool `json:"signature_valid"`
	ChainHashValid bool `json:"chain_hash_valid"`

	// ChainContinuityValid is present only when an expected previous
	// hash was supplied.
	ChainContinuityValid *bool `json:"chain_continuity_valid,omitempty"`

	Checks []Check `json:"checks"`
}

func (r *VerificationResult) add(name string, passed bool, message string) {
	r.Checks = append(r.Checks, Check{Name: name, Passed: passed, Message: message})
	if !passed {
		r.Valid = false
	}
}

// Verify recomputes the receipt's content hash, signature, and chain
// hash from scratch and compares them against the receipt's own claims.
func (v *Validator) Verify(r *TrustReceipt, opts VerifyOptions) (*VerificationResult, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil receipt", ErrInvalidInput)
	}

	result := &VerificationResult{Valid: true}

	// Schema
	schemaErr := validateSchema(r)
	result.SchemaValid = schemaErr == nil
	result.add(CheckSchema, result.SchemaValid, errMessage(schemaErr))

	payload, err := r.CanonicalPayload()
	if err != nil {
		// Unserializable receipts cannot pass any recomputation check.
		result.add(CheckReceiptID, false, "payload not canonicalizable: "+err.Error())
		result.add(CheckChainHash, false, "payload not canonicalizable")
		return result, nil
	}

	// Receipt id: the content hash must match the recomputation
	result.ReceiptIDValid = chain.EqualHash(chain.HashBytes(payload), r.ID)
	result.add(CheckReceiptID, result.ReceiptIDValid, "")

	// Signature
	ok, msg := v.verifySignature(r, payload, opts.PublicKey)
	result.SignatureValid = ok
	result.add(CheckSignature, ok, msg)

	// Chain hash
	recomputed := chain.ChainHash(r.Chain.PreviousHash, payload, r.Timestamp, r.Signature.Value)
	result.ChainHashValid = chain.EqualHash(recomputed, r.Chain.ChainHash)
	result.add(CheckChainHash, result.ChainHashValid, "")

	// Chain continuity, only when the caller knows the predecessor
	if opts.PreviousHash != "" {
		continuity := chain.EqualHash(opts.PreviousHash, r.Chain.PreviousHash)
		result.ChainContinuityValid = &continuity
		result.add(CheckChainContinuity, continuity, "")
	}

	return result, nil
}

// verifySignature resolves a key if needed and checks the signature.
// Failures are soft: they surface as signature_valid=false.
func (v *Validator) verifySignature(r *TrustReceipt, payload []byte, key ed25519.PublicKey) (bool, string) {
	if key == nil {
		if v.resolver == nil {
			return false, "no public key supplied and no resolver configured"
		}
		resolved, err := v.resolver.ResolveVerificationKey(r.AgentDID, r.Signature.KeyVersion)
		if err != nil {
			return false, "key resolution failed: " + err.Error()
		}
		key = resolved
	}

	ok, err := chain.Verify(r.Signature.Value, payload, key)
	if err != nil {
		return false, err.Error()
	}
	return ok, ""
}

// validateSchema checks structural conformance of a receipt.
func validateSchema(r *TrustReceipt) error {
	if r.Version == "" {
		return fmt.Errorf("missing version")
	}
	if len(r.ID) != chain.HashLength {
		return fmt.Errorf("id must be %d hex characters", chain.HashLength)
	}
	if _, err := chain.ParseTimestamp(r.Timestamp); err != nil {
		return fmt.Errorf("malformed timestamp %q", r.Timestamp)
	}
	if r.SessionID == "" {
		return fmt.Errorf("missing session_id")
	}
	if err := did.Validate(r.AgentDID); err != nil {
		return fmt.Errorf("malformed agent_did: %v", err)
	}
	if r.HumanDID != "" {
		if err := did.Validate(r.HumanDID); err != nil {
			return fmt.Errorf("malformed human_did: %v", err)
		}
	}
	if r.Mode != ModeConstitutional && r.Mode != ModeDirective {
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
	if err := r.Interaction.validate(); err != nil {
		return err
	}
	if r.Signature.Algorithm != chain.SignatureAlgorithm {
		return fmt.Errorf("unknown signature algorithm %q", r.Signature.Algorithm)
	}
	if r.Signature.Value == "" || r.Signature.KeyVersion == "" {
		return fmt.Errorf("incomplete signature")
	}
	if r.Chain.PreviousHash == "" || len(r.Chain.ChainHash) != chain.HashLength {
		return fmt.Errorf("incomplete chain")
	}
	if r.Chain.ChainLength < 1 {
		return fmt.Errorf("chain_length must be >= 1, got %d", r.Chain.ChainLength)
	}
	if (r.Chain.PreviousHash == chain.Genesis) != (r.Chain.ChainLength == 1) {
		return fmt.Errorf("chain_length %d inconsistent with previous_hash", r.Chain.ChainLength)
	}
	return nil
}

// ChainResult reports the verification of an ordered session chain.
type ChainResult struct {
	Valid bool `json:"valid"`

	// Results holds the per-receipt verification outcomes, in input order.
	Results []*VerificationResult `json:"results"`

	// BrokenAt is the zero-based index of the first receipt that failed,
	// or -1 when the chain is intact.
	BrokenAt int `json:"broken_at"`
}

// VerifyChain validates an ordered slice of receipts as one session
// chain: the first must be a genesis receipt, every later receipt must
// link to its predecessor's chain hash, and each receipt must pass its
// own integrity checks.
func (v *Validator) VerifyChain(receipts []*TrustReceipt, publicKey ed25519.PublicKey) (*ChainResult, error) {
	if len(receipts) == 0 {
		return nil, fmt.Errorf("%w: empty chain", ErrInvalidInput)
	}

	result := &ChainResult{Valid: true, BrokenAt: -1}

	expectedPrevious := chain.Genesis
	for i, r := range receipts {
		res, err := v.Verify(r, VerifyOptions{
			PublicKey:    publicKey,
			PreviousHash: expectedPrevious,
		})
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, res)

		lengthOK := r.Chain.ChainLength == i+1
		if !res.Valid || !lengthOK {
			if result.BrokenAt == -1 {
				result.BrokenAt = i
			}
			result.Valid = false
		}

		expectedPrevious = r.Chain.ChainHash
	}

	return result, nil
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
