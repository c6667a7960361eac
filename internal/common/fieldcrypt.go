package common

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// encPrefix marks a column value as encrypted. Values without the prefix are
// passed through untouched so databases written before encryption was enabled
// stay readable.
const encPrefix = "ENC:"

const gcmTagSize = 16

// FieldCrypt encrypts and decrypts individual column values with AES-256-GCM.
// The stored form is "ENC:" + base64(nonce || tag || ciphertext).
type FieldCrypt struct {
	aead cipher.AEAD
}

// NewFieldCrypt derives a 256-bit key from the passphrase and returns a
// ready-to-use cipher. A nil FieldCrypt is valid and performs no encryption.
func NewFieldCrypt(passphrase string) (*FieldCrypt, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption passphrase is empty")
	}

	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &FieldCrypt{aead: aead}, nil
}

// NewFieldCryptFromConfig returns a FieldCrypt when encryption is enabled in
// config, or nil when it is not.
func NewFieldCryptFromConfig(config *Config) (*FieldCrypt, error) {
	if config == nil || !config.Storage.Encryption.Enabled {
		return nil, nil
	}
	return NewFieldCrypt(config.Storage.Encryption.Key)
}

// Encrypt returns the stored form of value. Empty values and already
// encrypted values are returned unchanged.
func (f *FieldCrypt) Encrypt(value string) (string, error) {
	if f == nil || value == "" || strings.HasPrefix(value, encPrefix) {
		return value, nil
	}

	nonce := make([]byte, f.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the tag after the ciphertext; the stored layout wants
	// nonce || tag || ciphertext, so split and reorder.
	sealed := f.aead.Seal(nil, nonce, []byte(value), nil)
	ct, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	blob := make([]byte, 0, len(nonce)+len(tag)+len(ct))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)

	return encPrefix + base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. Values without the "ENC:" prefix are returned
// as-is; a truncated or tampered blob returns an error.
func (f *FieldCrypt) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return value, nil
	}
	if f == nil {
		return "", fmt.Errorf("encrypted value present but encryption is not configured")
	}

	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted value: %w", err)
	}

	nonceSize := f.aead.NonceSize()
	if len(blob) < nonceSize+gcmTagSize {
		return "", fmt.Errorf("encrypted value too short")
	}

	nonce := blob[:nonceSize]
	tag := blob[nonceSize : nonceSize+gcmTagSize]
	ct := blob[nonceSize+gcmTagSize:]

	// Open expects ciphertext || tag.
	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := f.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}

	return string(plain), nil
}
