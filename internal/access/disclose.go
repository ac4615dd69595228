// Package access decides when a property's access secret may be revealed and
// seals those secrets at rest.
package access

import (
	"errors"
	"fmt"
	"time"
)

// Window is how long before an appointment its access secret becomes visible.
const Window = 24 * time.Hour

// ErrNoOpener is returned when a secret must be decrypted but no Opener was supplied.
var ErrNoOpener = errors.New("access: no opener configured")

// Disclosure is the outcome of a disclosure check. Plaintext is only ever
// non-empty when CanView is true.
type Disclosure struct {
	Plaintext   string
	CanView     bool
	AvailableAt *time.Time
}

// Opener decrypts a sealed secret.
type Opener interface {
	Open(sealed string) (string, error)
}

// Sealer encrypts a plaintext secret for storage.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// Cipher both seals and opens secrets.
type Cipher interface {
	Sealer
	Opener
}

// Disclose applies the disclosure window [appointment-Window, appointment] to
// a sealed secret. The secret is decrypted only when now falls inside the
// window; after the appointment it is never revealed again.
func Disclose(now, appointment time.Time, sealed string, opener Opener) (Disclosure, error) {
	if now.After(appointment) {
		return Disclosure{}, nil
	}

	start := appointment.Add(-Window)
	if now.Before(start) {
		return Disclosure{AvailableAt: &start}, nil
	}

	if sealed == "" {
		return Disclosure{CanView: true}, nil
	}
	if opener == nil {
		return Disclosure{}, ErrNoOpener
	}
	plaintext, err := opener.Open(sealed)
	if err != nil {
		return Disclosure{}, fmt.Errorf("access: open secret: %w", err)
	}
	return Disclosure{Plaintext: plaintext, CanView: true}, nil
}
