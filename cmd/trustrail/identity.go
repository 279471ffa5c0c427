package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/trustrail/trustrail-core/pkg/identity"
)

var (
	identityDir         string
	identityNamespace   string
	identityType        string
	identityName        string
	identityDescription string
	identityKeyOut      string
	identityNewKeyFile  string
	identityRevokeWhy   string
	identityAsJWK       bool
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage Signing Identities (DIDs)",
}

func openRegistry() (*identity.FileRegistry, error) {
	return identity.NewFileRegistry(identityDir, identityNamespace)
}

var identityCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new identity with a fresh Ed25519 key pair",
	Long: `Create a new signing identity.

Generates an Ed25519 key pair, derives the DID from the public key, and
registers the key as version 1. The private key is written to a JWK file
once and never retained by the registry — keep it safe.`,
	Example: `  # Create an agent identity
  trustrail identity create --type agent --name support-bot

  # Create a human identity with a custom key path
  trustrail identity create --type human --name operator --out-key operator.key.jwk`,
	RunE: func(_ *cobra.Command, _ []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		created, err := reg.Create(identity.EntityType(identityType), identityName, identityDescription)
		if err != nil {
			return fmt.Errorf("failed to create identity: %w", err)
		}

		privBytes, err := hex.DecodeString(created.PrivateKey)
		if err != nil {
			return err
		}

		keyPath := identityKeyOut
		if keyPath == "" {
			keyPath = identityName + ".key.jwk"
		}
		if err := identity.SavePrivateKeyJWK(keyPath, created.DID, privBytes); err != nil {
			return err
		}

		fmt.Printf("✅ Identity created: %s\n", created.DID)
		fmt.Printf("🔑 Private key saved to %s (keep it safe — it is not stored)\n", keyPath)
		return nil
	},
}

var identityResolveCmd = &cobra.Command{
	Use:   "resolve <did>",
	Short: "Resolve a DID to its current key and status",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		res, err := reg.Resolve(args[0])
		if err != nil {
			return err
		}

		if identityAsJWK {
			jwk, err := identity.PublicKeyJWK(args[0], res.KeyVersion, res.PublicKey)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(jwk, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("DID:         %s\n", args[0])
		fmt.Printf("Public Key:  %s\n", res.PublicKey)
		fmt.Printf("Key Version: %s\n", res.KeyVersion)
		if res.Status == identity.StatusRevoked {
			fmt.Printf("Status:      ❌ %s (historical receipts remain verifiable)\n", res.Status)
		} else {
			fmt.Printf("Status:      ✅ %s\n", res.Status)
		}
		return nil
	},
}

var identityRotateCmd = &cobra.Command{
	Use:   "rotate <did>",
	Short: "Rotate an identity to a new Ed25519 key",
	Long: `Rotate an identity's signing key.

Without --new-key a fresh key pair is generated and the private key is
written next to the old one. With --new-key the public key of the given
private JWK file is installed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		var newPub ed25519.PublicKey
		if identityNewKeyFile != "" {
			priv, err := identity.LoadPrivateKeyJWK(identityNewKeyFile)
			if err != nil {
				return err
			}
			newPub = priv.Public().(ed25519.PublicKey)
		} else {
			pub, priv, err := ed25519.GenerateKey(nil)
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			newPub = pub

			keyPath := identityKeyOut
			if keyPath == "" {
				keyPath = "rotated.key.jwk"
			}
			if err := identity.SavePrivateKeyJWK(keyPath, args[0], priv); err != nil {
				return err
			}
			fmt.Printf("🔑 New private key saved to %s\n", keyPath)
		}

		rot, err := reg.Rotate(args[0], newPub)
		if err != nil {
			return fmt.Errorf("failed to rotate key: %w", err)
		}

		fmt.Printf("✅ Key rotated: %s is now at key version %s\n", args[0], rot.KeyVersion)
		return nil
	},
}

var identityRevokeCmd = &cobra.Command{
	Use:   "revoke <did>",
	Short: "Terminally revoke an identity",
	Long: `Revoke an identity. Revocation is irreversible: the identity can
never sign new receipts, but its historical keys remain resolvable so
old receipts stay verifiable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if identityRevokeWhy == "" {
			return fmt.Errorf("--reason is required: revocations must be auditable")
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}

		rev, err := reg.Revoke(args[0], identityRevokeWhy)
		if err != nil {
			return fmt.Errorf("failed to revoke: %w", err)
		}

		fmt.Printf("❌ Identity revoked: %s (%s)\n", args[0], rev.RevocationReason)
		return nil
	},
}

var identityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every identity in the registry",
	RunE: func(_ *cobra.Command, _ []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		identities, err := reg.List()
		if err != nil {
			return err
		}

		for _, ident := range identities {
			mark := "✅"
			if ident.Status == identity.StatusRevoked {
				mark = "❌"
			}
			fmt.Printf("%s %s  %-8s  %s (key v%s)\n", mark, ident.ID, ident.EntityType, ident.Name, ident.CurrentKeyVersion)
		}
		return nil
	},
}

var identityHistoryCmd = &cobra.Command{
	Use:   "history <did>",
	Short: "Show an identity's key history (newest first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		history, err := reg.KeyHistory(args[0])
		if err != nil {
			return err
		}

		w := os.Stdout
		for _, rec := range history {
			fmt.Fprintf(w, "v%s  %-8s  created %s", rec.Version, rec.Status, rec.CreatedAt.Format("2006-01-02 15:04:05"))
			if rec.RotatedAt != nil {
				fmt.Fprintf(w, "  retired %s", rec.RotatedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(w, "\n    %s\n", rec.PublicKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(identityCmd)
	identityCmd.AddCommand(identityCreateCmd, identityResolveCmd, identityRotateCmd, identityRevokeCmd, identityHistoryCmd, identityListCmd)

	identityCmd.PersistentFlags().StringVar(&identityDir, "registry", "", "Identity registry directory (default: $TRUSTRAIL_HOME/identities or ~/.trustrail/identities)")
	identityCmd.PersistentFlags().StringVar(&identityNamespace, "namespace", "", "DID namespace for new identities (default: trustrail)")

	identityCreateCmd.Flags().StringVar(&identityType, "type", "agent", "Entity type: agent, human, or service")
	identityCreateCmd.Flags().StringVar(&identityName, "name", "", "Identity name")
	identityCreateCmd.Flags().StringVar(&identityDescription, "description", "", "Identity description")
	identityCreateCmd.Flags().StringVar(&identityKeyOut, "out-key", "", "Output path for the private key JWK (default: <name>.key.jwk)")
	_ = identityCreateCmd.MarkFlagRequired("name")

	identityResolveCmd.Flags().BoolVar(&identityAsJWK, "jwk", false, "Print the current public key as a JWK")

	identityRotateCmd.Flags().StringVar(&identityNewKeyFile, "new-key", "", "Private JWK file whose public key becomes the new signing key")
	identityRotateCmd.Flags().StringVar(&identityKeyOut, "out-key", "", "Output path for a generated private key JWK")

	identityRevokeCmd.Flags().StringVar(&identityRevokeWhy, "reason", "", "Revocation reason (required, recorded for audit)")
}
