package access

import (
	"fmt"
	"strings"
)

// Cipher kinds accepted by NewCipher.
const (
	CipherAge = "age"
	CipherBox = "box"
)

// NewCipher builds the cipher named by kind from its key material.
func NewCipher(kind, key string) (Cipher, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case CipherAge:
		return NewAgeCipher(key)
	case CipherBox:
		return NewBoxCipher(key)
	default:
		return nil, fmt.Errorf("access: unknown cipher %q", kind)
	}
}
