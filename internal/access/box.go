package access

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealedTooShort is returned when a sealed value cannot hold a nonce.
var ErrSealedTooShort = errors.New("access: sealed secret too short")

// BoxCipher seals secrets with XChaCha20-Poly1305 under a 32-byte key. Sealed
// values are base64(nonce || ciphertext).
type BoxCipher struct {
	key []byte
}

// NewBoxCipher accepts a base64 encoded 32-byte key.
func NewBoxCipher(encodedKey string) (*BoxCipher, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("access: decode box key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("access: box key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &BoxCipher{key: key}, nil
}

// Seal implements Sealer.
func (c *BoxCipher) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("access: init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("access: read nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open implements Opener.
func (c *BoxCipher) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("access: decode sealed secret: %w", err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("access: init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrSealedTooShort
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("access: open sealed secret: %w", err)
	}
	return string(plaintext), nil
}
