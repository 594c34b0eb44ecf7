// Package signing opens a user's PKCS#12 credential and produces the signed
// invoice document. The stored certificate password is AES-256-CBC encrypted
// with a key derived from the process-wide encryption secret.
package signing

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"

	"nfse-pipeline/internal/domain"
)

// unsignedMarker is appended when the user has no certificate configured.
// Submitting unsigned documents is a deliberate fallback, not an error.
const unsignedMarker = "<!-- mock-signed -->"

type Signer struct {
	uploadsDir string
	secret     string
}

func NewSigner(uploadsDir, secret string) *Signer {
	return &Signer{
		uploadsDir: uploadsDir,
		secret:     secret,
	}
}

// Sign opens the referenced PKCS#12 file and appends the signer trailer to
// the document. Any failure to open the credential is permanent: retrying
// will not fix a wrong password or corrupt file.
func (s *Signer) Sign(xml string, cert *domain.Certificate) (string, error) {
	pfxData, err := os.ReadFile(filepath.Join(s.uploadsDir, cert.Filename))
	if err != nil {
		return "", fmt.Errorf("certificate signing failed: %w", err)
	}

	password, err := decryptPassword(cert.EncryptedPassword, s.secret)
	if err != nil {
		return "", fmt.Errorf("certificate signing failed: %w", err)
	}

	_, x509Cert, err := pkcs12.Decode(pfxData, password)
	if err != nil {
		return "", fmt.Errorf("certificate signing failed: %w", err)
	}

	subjectCN := x509Cert.Subject.CommonName
	if subjectCN == "" {
		subjectCN = "unknown"
	}

	hash := sha256.Sum256([]byte(xml))

	return fmt.Sprintf("%s\n<!-- signed by %s, sha256:%s -->", xml, subjectCN, hex.EncodeToString(hash[:])), nil
}

// MarkUnsigned appends the explicit unsigned trailer.
func MarkUnsigned(xml string) string {
	return xml + unsignedMarker
}

func encryptionKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret is not set")
	}
	key := sha256.Sum256([]byte(secret))
	return key[:], nil
}

// EncryptPassword encrypts a certificate password for storage, producing the
// "ivhex:cipherhex" layout the signer expects back.
func EncryptPassword(password, secret string) (string, error) {
	key, err := encryptionKey(secret)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	plaintext := pkcs7Pad([]byte(password), aes.BlockSize)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

func decryptPassword(encrypted, secret string) (string, error) {
	key, err := encryptionKey(secret)
	if err != nil {
		return "", err
	}

	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed encrypted password")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("malformed encrypted password: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed encrypted password: %w", err)
	}

	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("malformed encrypted password")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padding)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padding)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded data")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
