// Package refcode mints the short reference codes assignees type to name a
// booking.
package refcode

import (
	"context"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/villaclean/bookingcore/internal/persistence"
)

// Alphabet excludes characters that are easily confused when read aloud or
// typed on a phone keypad (0/O, 1/I/L, 5/S, 8/B, 2/Z, U/V).
const Alphabet = "3467ACDEFGHJKMNPQRTWXY"

// Length is the number of characters in a code.
const Length = 4

// DefaultAttempts bounds collision retries.
const DefaultAttempts = 8

// ErrExhausted is returned when every attempt collided with an existing code.
var ErrExhausted = errors.New("refcode: no free reference code")

// Generator produces candidate codes.
type Generator func() (string, error)

// New returns a code drawn uniformly from Alphabet.
func New() (string, error) {
	code, err := gonanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("refcode: generate: %w", err)
	}
	return code, nil
}

// Mint calls insert with fresh codes until one is accepted. insert must return
// an error wrapping persistence.ErrDuplicate when the code is taken; any other
// error stops the retry loop.
func Mint(ctx context.Context, gen Generator, attempts int, insert func(ctx context.Context, code string) error) (string, error) {
	if gen == nil {
		gen = New
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := gen()
		if err != nil {
			return "", err
		}
		err = insert(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, persistence.ErrDuplicate) {
			return "", err
		}
	}
	return "", ErrExhausted
}
