package access

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// AgeCipher seals secrets to an X25519 age recipient. Sealed values are the
// base64 encoding of the binary age file.
type AgeCipher struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAgeCipher parses an AGE-SECRET-KEY-1... identity.
func NewAgeCipher(identity string) (*AgeCipher, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return nil, fmt.Errorf("access: parse age identity: %w", err)
	}
	return &AgeCipher{identity: id, recipient: id.Recipient()}, nil
}

// GenerateAgeCipher creates a cipher with a fresh identity.
func GenerateAgeCipher() (*AgeCipher, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("access: generate age identity: %w", err)
	}
	return &AgeCipher{identity: id, recipient: id.Recipient()}, nil
}

// Identity returns the secret key encoding, suitable for configuration.
func (c *AgeCipher) Identity() string {
	return c.identity.String()
}

// Seal implements Sealer.
func (c *AgeCipher) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, c.recipient)
	if err != nil {
		return "", fmt.Errorf("access: age encrypt: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("access: age encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("access: age encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open implements Opener.
func (c *AgeCipher) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("access: decode sealed secret: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), c.identity)
	if err != nil {
		return "", fmt.Errorf("access: age decrypt: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("access: age decrypt: %w", err)
	}
	return string(plaintext), nil
}
