package did_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustrail/trustrail-core/pkg/did"
)

func TestParse(t *testing.T) {
	valid40 := strings.Repeat("a1B2", 10)

	tests := []struct {
		name          string
		input         string
		wantNamespace string
		wantID        string
		wantErr       error
	}{
		{
			name:          "valid DID",
			input:         "did:trustrail:" + valid40,
			wantNamespace: "trustrail",
			wantID:        valid40,
		},
		{
			name:          "valid DID custom namespace",
			input:         "did:acme:" + valid40,
			wantNamespace: "acme",
			wantID:        valid40,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: did.ErrInvalidFormat,
		},
		{
			name:    "missing did prefix",
			input:   "xid:trustrail:" + valid40,
			wantErr: did.ErrInvalidFormat,
		},
		{
			name:    "too few parts",
			input:   "did:trustrail",
			wantErr: did.ErrInvalidFormat,
		},
		{
			name:    "too many parts",
			input:   "did:trustrail:" + valid40 + ":extra",
			wantErr: did.ErrInvalidFormat,
		},
		{
			name:    "identifier too short",
			input:   "did:trustrail:abc123",
			wantErr: did.ErrInvalidFormat,
		},
		{
			name:    "identifier too long",
			input:   "did:trustrail:" + valid40 + "x",
			wantErr: did.ErrInvalidFormat,
		},
		{
			name:    "identifier with punctuation",
			input:   "did:trustrail:" + strings.Repeat("a", 39) + "-",
			wantErr: did.ErrInvalidFormat,
		},
		{
			name:    "uppercase namespace",
			input:   "did:TrustRail:" + valid40,
			wantErr: did.ErrInvalidFormat,
		},
		{
			name:    "not a DID at all",
			input:   "https://example.com",
			wantErr: did.ErrInvalidFormat,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := did.Parse(tc.input)

			if tc.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantNamespace, parsed.Namespace)
			assert.Equal(t, tc.wantID, parsed.Identifier)
			assert.Equal(t, tc.input, parsed.Raw)
			assert.Equal(t, tc.input, parsed.String())
		})
	}
}

func TestFromPublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	s, err := did.FromPublicKey("", pub)
	require.NoError(t, err)

	parsed, err := did.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, did.DefaultNamespace, parsed.Namespace)
	assert.Len(t, parsed.Identifier, did.IdentifierLength)

	// Derivation is stable
	again, err := did.FromPublicKey("", pub)
	require.NoError(t, err)
	assert.Equal(t, s, again)

	// Different keys yield different DIDs
	pub2, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	other, err := did.FromPublicKey("", pub2)
	require.NoError(t, err)
	assert.NotEqual(t, s, other)
}

func TestFromPublicKey_Invalid(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = did.FromPublicKey("", pub[:16])
	assert.ErrorIs(t, err, did.ErrInvalidFormat)

	_, err = did.FromPublicKey("Not-Lower", pub)
	assert.ErrorIs(t, err, did.ErrInvalidFormat)
}
