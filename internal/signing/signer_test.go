package signing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfse-pipeline/internal/domain"
)

func TestEncryptDecryptPassword_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple", "senha123"},
		{"empty", ""},
		{"long", "a-password-much-longer-than-one-aes-block-for-padding-coverage"},
		{"unicode", "senha-çãõ-ü"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := EncryptPassword(tt.password, "test-secret")
			require.NoError(t, err)
			assert.Contains(t, encrypted, ":")

			decrypted, err := decryptPassword(encrypted, "test-secret")
			require.NoError(t, err)
			assert.Equal(t, tt.password, decrypted)
		})
	}
}

func TestEncryptPassword_RequiresSecret(t *testing.T) {
	_, err := EncryptPassword("senha123", "")
	assert.Error(t, err)
}

func TestDecryptPassword_WrongSecret(t *testing.T) {
	encrypted, err := EncryptPassword("senha123", "right-secret")
	require.NoError(t, err)

	decrypted, err := decryptPassword(encrypted, "wrong-secret")
	if err == nil {
		// CBC with a wrong key almost always breaks the padding; if it
		// happens to decode, the plaintext must still differ.
		assert.NotEqual(t, "senha123", decrypted)
	}
}

func TestDecryptPassword_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"no separator", "deadbeef"},
		{"bad iv hex", "zz:deadbeef"},
		{"bad cipher hex", "00112233445566778899aabbccddeeff:zz"},
		{"short iv", "dead:beef"},
		{"empty cipher", "00112233445566778899aabbccddeeff:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decryptPassword(tt.payload, "test-secret")
			assert.Error(t, err)
		})
	}
}

func TestMarkUnsigned(t *testing.T) {
	out := MarkUnsigned("<NFSe/>")
	assert.Equal(t, "<NFSe/><!-- mock-signed -->", out)
}

func TestSigner_Sign_MissingFile(t *testing.T) {
	signer := NewSigner(t.TempDir(), "test-secret")

	encrypted, err := EncryptPassword("senha123", "test-secret")
	require.NoError(t, err)

	_, err = signer.Sign("<NFSe/>", &domain.Certificate{
		Filename:          "missing.pfx",
		EncryptedPassword: encrypted,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate signing failed")
}

func TestSigner_Sign_CorruptPFX(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cert.pfx"), []byte("not a pfx"), 0o644))

	signer := NewSigner(dir, "test-secret")

	encrypted, err := EncryptPassword("senha123", "test-secret")
	require.NoError(t, err)

	_, err = signer.Sign("<NFSe/>", &domain.Certificate{
		Filename:          "cert.pfx",
		EncryptedPassword: encrypted,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate signing failed")
}

func TestSigner_Sign_UndecryptablePassword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cert.pfx"), []byte("placeholder"), 0o644))

	signer := NewSigner(dir, "test-secret")

	_, err := signer.Sign("<NFSe/>", &domain.Certificate{
		Filename:          "cert.pfx",
		EncryptedPassword: "garbage",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate signing failed")
}
