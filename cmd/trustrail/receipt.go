package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/trustrail/trustrail-core/pkg/chain"
	"github.com/trustrail/trustrail-core/pkg/identity"
	"github.com/trustrail/trustrail-core/pkg/receipt"
	"github.com/trustrail/trustrail-core/pkg/scoring"
	"github.com/trustrail/trustrail-core/pkg/store"
)

var (
	genSession       string
	genAgent         string
	genHuman         string
	genPrompt        string
	genResponse      string
	genModel         string
	genPrivacy       bool
	genKeyFile       string
	genScoreFlags    []string
	genPolicy        string
	genPolicyFile    string
	genMode          string
	genPolicyVersion string
	genPreviousHash  string
	genChainLength   int
	genStorePath     string
	genOut           string

	verifyPreviousHash string
	verifyPublicKeyHex string
)

var receiptCmd = &cobra.Command{
	Use:   "receipt",
	Short: "Generate and Verify Trust Receipts",
}

var receiptGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a signed, chained trust receipt",
	Long: `Generate one trust receipt for an AI interaction.

The agent DID must have an active key in the registry; its private JWK
file signs the receipt. Principle scores (0-10) are evaluated under the
selected industry weight policy. With --store, the receipt is appended
to a JSONL file and chained onto the session's previous receipt
automatically.`,
	Example: `  # Genesis receipt for a new session
  trustrail receipt generate --session s1 --agent did:trustrail:... \
    --key agent.key.jwk --prompt "What is 2+2?" --response "4" --model gpt-test \
    --score CONSENT_ARCHITECTURE=9 --score INSPECTION_MANDATE=7 \
    --score CONTINUOUS_VALIDATION=8 --score ETHICAL_OVERRIDE=9 \
    --score RIGHT_TO_DISCONNECT=7 --score MORAL_RECOGNITION=6 \
    --policy healthcare --store receipts.jsonl

  # Privacy-preserving receipt (content hashes only)
  trustrail receipt generate --session s1 --agent did:trustrail:... \
    --key agent.key.jwk --prompt "secret" --response "secret" --model gpt-test --private`,
	RunE: func(_ *cobra.Command, _ []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		priv, err := identity.LoadPrivateKeyJWK(genKeyFile)
		if err != nil {
			return err
		}

		engine := scoring.NewEngine()
		if genPolicyFile != "" {
			data, err := os.ReadFile(genPolicyFile)
			if err != nil {
				return fmt.Errorf("failed to read policy file: %w", err)
			}
			if err := engine.RegisterPoliciesYAML(data); err != nil {
				return err
			}
		}

		session := genSession
		if session == "" {
			session = receipt.NewSessionID()
		}

		interaction := receipt.NewRawInteraction(genPrompt, genResponse, genModel)
		if genPrivacy {
			interaction, err = receipt.NewPrivateInteraction(genPrompt, genResponse, genModel)
			if err != nil {
				return err
			}
		}

		scores, err := parseScoreFlags(genScoreFlags)
		if err != nil {
			return err
		}

		in := receipt.GenerateInput{
			SessionID:     session,
			AgentDID:      genAgent,
			HumanDID:      genHuman,
			Mode:          receipt.Mode(genMode),
			PolicyVersion: genPolicyVersion,
			Interaction:   interaction,
			Scores:        scores,
			PolicyName:    genPolicy,
			PreviousHash:  genPreviousHash,
			ChainLength:   genChainLength,
			PrivateKey:    priv,
		}

		// With a store and no explicit chain position, continue the
		// session's existing chain.
		var receiptStore store.Store
		if genStorePath != "" {
			receiptStore, err = store.NewJSONLStore(genStorePath)
			if err != nil {
				return err
			}
			if in.PreviousHash == "" {
				last, err := receiptStore.Last(session)
				switch {
				case err == nil:
					in.PreviousHash = last.Chain.ChainHash
					in.ChainLength = last.Chain.ChainLength + 1
				case errors.Is(err, store.ErrNotFound):
					// first receipt of the session
				default:
					return err
				}
			}
		}

		generator := receipt.NewGenerator(reg, engine)
		r, err := generator.Generate(in)
		if err != nil {
			return err
		}

		if receiptStore != nil {
			if err := receiptStore.Put(r); err != nil {
				return err
			}
		}

		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		if genOut != "" {
			if err := os.WriteFile(genOut, data, 0644); err != nil {
				return fmt.Errorf("failed to write receipt: %w", err)
			}
		} else {
			fmt.Println(string(data))
		}

		fmt.Fprintf(os.Stderr, "✅ Receipt %s (session %s, chain position %d)\n", r.ID[:12], session, r.Chain.ChainLength)
		return nil
	},
}

var receiptVerifyCmd = &cobra.Command{
	Use:   "verify <receipt.json>",
	Short: "Independently verify a trust receipt",
	Long: `Verify a receipt by recomputing its content hash, signature, and
chain hash from scratch. The signing key is resolved from the identity
registry by DID and key version unless --public-key supplies it
directly. An invalid receipt is reported check by check; the command
exits non-zero only when the receipt fails.`,
	Example: `  # Verify against the local registry
  trustrail receipt verify receipt.json

  # Verify chain continuity against a known predecessor
  trustrail receipt verify receipt.json --previous-hash 3f2a...

  # Verify offline with an explicit public key
  trustrail receipt verify receipt.json --public-key 9d41...`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read receipt: %w", err)
		}

		var r receipt.TrustReceipt
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("failed to parse receipt: %w", err)
		}

		opts := receipt.VerifyOptions{PreviousHash: verifyPreviousHash}

		var resolver identity.KeyResolver
		if verifyPublicKeyHex != "" {
			pub, err := hex.DecodeString(verifyPublicKeyHex)
			if err != nil || len(pub) != ed25519.PublicKeySize {
				return fmt.Errorf("malformed --public-key: want %d hex-encoded bytes", ed25519.PublicKeySize)
			}
			opts.PublicKey = pub
		} else {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			resolver = reg
		}

		validator := receipt.NewValidator(resolver)
		result, err := validator.Verify(&r, opts)
		if err != nil {
			return err
		}

		for _, check := range result.Checks {
			mark := "✅"
			if !check.Passed {
				mark = "❌"
			}
			if check.Message != "" {
				fmt.Printf("%s %s — %s\n", mark, check.Name, check.Message)
			} else {
				fmt.Printf("%s %s\n", mark, check.Name)
			}
		}

		if !result.Valid {
			return fmt.Errorf("receipt %s is INVALID", r.ID[:min(12, len(r.ID))])
		}
		fmt.Printf("✅ Receipt %s is valid\n", r.ID[:12])
		return nil
	},
}

var receiptChainCmd = &cobra.Command{
	Use:   "verify-chain <session-id>",
	Short: "Verify a whole session chain from a receipt store",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if genStorePath == "" {
			return fmt.Errorf("--store is required")
		}

		receiptStore, err := store.NewJSONLStore(genStorePath)
		if err != nil {
			return err
		}
		receipts, err := receiptStore.ListBySession(args[0])
		if err != nil {
			return err
		}
		if len(receipts) == 0 {
			return fmt.Errorf("no receipts for session %s", args[0])
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}

		validator := receipt.NewValidator(reg)
		result, err := validator.VerifyChain(receipts, nil)
		if err != nil {
			return err
		}

		if !result.Valid {
			return fmt.Errorf("❌ chain of %d receipts is broken at position %d", len(receipts), result.BrokenAt+1)
		}
		fmt.Printf("✅ Chain of %d receipts for session %s is intact (%s → %s)\n",
			len(receipts), args[0], chain.Genesis, receipts[len(receipts)-1].Chain.ChainHash[:12])
		return nil
	},
}

// parseScoreFlags parses repeated PRINCIPLE=score flags.
func parseScoreFlags(flags []string) (scoring.Scores, error) {
	if len(flags) == 0 {
		return nil, nil
	}

	scores := make(scoring.Scores, len(flags))
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --score %q, want PRINCIPLE=0..10", f)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("malformed --score %q: %w", f, err)
		}
		scores[name] = n
	}
	return scores, nil
}

func init() {
	rootCmd.AddCommand(receiptCmd)
	receiptCmd.AddCommand(receiptGenerateCmd, receiptVerifyCmd, receiptChainCmd)

	receiptCmd.PersistentFlags().StringVar(&identityDir, "registry", "", "Identity registry directory")
	receiptCmd.PersistentFlags().StringVar(&genStorePath, "store", "", "JSONL receipt store path")

	receiptGenerateCmd.Flags().StringVar(&genSession, "session", "", "Session id (default: a fresh UUID)")
	receiptGenerateCmd.Flags().StringVar(&genAgent, "agent", "", "Agent DID (signer)")
	receiptGenerateCmd.Flags().StringVar(&genHuman, "human", "", "Human DID")
	receiptGenerateCmd.Flags().StringVar(&genPrompt, "prompt", "", "Interaction prompt")
	receiptGenerateCmd.Flags().StringVar(&genResponse, "response", "", "Interaction response")
	receiptGenerateCmd.Flags().StringVar(&genModel, "model", "", "Model identifier")
	receiptGenerateCmd.Flags().BoolVar(&genPrivacy, "private", false, "Store content hashes instead of plaintext")
	receiptGenerateCmd.Flags().StringVar(&genKeyFile, "key", "", "Agent private key JWK file")
	receiptGenerateCmd.Flags().StringArrayVar(&genScoreFlags, "score", nil, "Principle score PRINCIPLE=0..10 (repeatable)")
	receiptGenerateCmd.Flags().StringVar(&genPolicy, "policy", "", "Industry weight policy (default: standard)")
	receiptGenerateCmd.Flags().StringVar(&genPolicyFile, "policy-file", "", "YAML file with additional weight policies")
	receiptGenerateCmd.Flags().StringVar(&genMode, "mode", string(receipt.ModeConstitutional), "Governance mode: constitutional or directive")
	receiptGenerateCmd.Flags().StringVar(&genPolicyVersion, "policy-version", "", "Policy version recorded in the receipt")
	receiptGenerateCmd.Flags().StringVar(&genPreviousHash, "previous-hash", "", "Predecessor chain hash (default: GENESIS or store lookup)")
	receiptGenerateCmd.Flags().IntVar(&genChainLength, "chain-length", 0, "Chain position (default: inferred)")
	receiptGenerateCmd.Flags().StringVar(&genOut, "out", "", "Write the receipt JSON to a file instead of stdout")
	_ = receiptGenerateCmd.MarkFlagRequired("agent")
	_ = receiptGenerateCmd.MarkFlagRequired("key")
	_ = receiptGenerateCmd.MarkFlagRequired("model")

	receiptVerifyCmd.Flags().StringVar(&verifyPreviousHash, "previous-hash", "", "Expected predecessor chain hash (enables the continuity check)")
	receiptVerifyCmd.Flags().StringVar(&verifyPublicKeyHex, "public-key", "", "Hex Ed25519 public key (skips registry resolution)")
}
