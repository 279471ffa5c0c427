package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
)

// Key material moves between the CLI and the engine as JWK files. The
// registry itself never touches private keys — it records public keys
// only; the private JWK stays with the caller.

// SavePrivateKeyJWK writes an Ed25519 private key as a JWK file, using
// the owning DID as the key id. Mode 0600: the private key is the
// caller's responsibility from here on.
func SavePrivateKeyJWK(path, didStr string, privateKey ed25519.PrivateKey) error {
	if len(privateKey) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(privateKey))
	}

	jwk := jose.JSONWebKey{
		Key:       privateKey,
		KeyID:     didStr,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}

	data, err := json.MarshalIndent(jwk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal private JWK: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	return nil
}

// SavePublicKeyJWK writes an Ed25519 public key as a JWK file.
func SavePublicKeyJWK(path, didStr string, publicKey ed25519.PublicKey) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(publicKey))
	}

	jwk := jose.JSONWebKey{
		Key:       publicKey,
		KeyID:     didStr,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}

	data, err := json.MarshalIndent(jwk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal public JWK: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

// LoadPrivateKeyJWK reads an Ed25519 private key from a JWK file.
func LoadPrivateKeyJWK(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var jwk jose.JSONWebKey
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("failed to parse JWK: %w", err)
	}

	priv, ok := jwk.Key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: JWK does not contain an Ed25519 private key", ErrInvalidKey)
	}
	return priv, nil
}

// PublicKeyJWK converts a hex-encoded Ed25519 public key (the registry's
// storage form) into a JWK, keyed by DID and version.
func PublicKeyJWK(didStr, version, publicKeyHex string) (*jose.JSONWebKey, error) {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: malformed hex public key", ErrInvalidKey)
	}

	return &jose.JSONWebKey{
		Key:       ed25519.PublicKey(pub),
		KeyID:     didStr + "#" + version,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}, nil
}
