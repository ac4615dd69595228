package refcode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/villaclean/bookingcore/internal/persistence"
)

func TestNewUsesAlphabet(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		code, err := New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if len(code) != Length {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}

func sequence(codes ...string) Generator {
	i := 0
	return func() (string, error) {
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func TestMintRetriesOnDuplicate(t *testing.T) {
	t.Parallel()

	taken := map[string]bool{"AAAA": true, "CCCC": true}
	var tried []string
	code, err := Mint(context.Background(), sequence("AAAA", "CCCC", "DDDD"), 5, func(_ context.Context, code string) error {
		tried = append(tried, code)
		if taken[code] {
			return fmt.Errorf("insert: %w", persistence.ErrDuplicate)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if code != "DDDD" {
		t.Fatalf("expected DDDD, got %s", code)
	}
	if len(tried) != 3 {
		t.Fatalf("expected 3 attempts, got %v", tried)
	}
}

func TestMintStopsOnOtherErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	_, err := Mint(context.Background(), sequence("AAAA"), 5, func(context.Context, string) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single attempt with boom, got %v after %d calls", err, calls)
	}
}

func TestMintExhausted(t *testing.T) {
	t.Parallel()

	_, err := Mint(context.Background(), sequence("AAAA"), 3, func(context.Context, string) error {
		return persistence.ErrDuplicate
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}
