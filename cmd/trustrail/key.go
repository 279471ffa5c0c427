package main

import (
	"crypto/ed25519"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trustrail/trustrail-core/pkg/did"
	"github.com/trustrail/trustrail-core/pkg/identity"
)

var (
	keyOutPath    string
	keyPubOutPath string
	keyNamespace  string
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Generate Ed25519 Key Material",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a standalone Ed25519 key pair as JWK files",
	Long: `Generate an Ed25519 key pair without touching the registry.

The JWK files carry the DID the key would derive to as their key id, so
the pair can later be registered via rotation or used for offline
verification.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}

		didStr, err := did.FromPublicKey(keyNamespace, pub)
		if err != nil {
			return err
		}

		if err := identity.SavePrivateKeyJWK(keyOutPath, didStr, priv); err != nil {
			return err
		}
		fmt.Printf("🔑 Private key saved to %s\n", keyOutPath)

		if keyPubOutPath != "" {
			if err := identity.SavePublicKeyJWK(keyPubOutPath, didStr, pub); err != nil {
				return err
			}
			fmt.Printf("🔑 Public key saved to %s\n", keyPubOutPath)
		}

		fmt.Printf("✅ DID for this key: %s\n", didStr)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyGenCmd)

	keyGenCmd.Flags().StringVar(&keyOutPath, "out", "trustrail.key.jwk", "Output path for the private key JWK")
	keyGenCmd.Flags().StringVar(&keyPubOutPath, "pub-out", "", "Optional output path for the public key JWK")
	keyGenCmd.Flags().StringVar(&keyNamespace, "namespace", "", "DID namespace for the derived key id (default: trustrail)")
}
