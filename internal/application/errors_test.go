package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/villaclean/bookingcore/internal/persistence"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_Add(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	if base.HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" || !base.HasErrors() {
		t.Fatalf("expected add to populate map, got %q", got)
	}
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	inner := errors.New("connection reset")
	err := fmt.Errorf("notify: %w", &TransportError{Op: "send", Err: inner})
	if !errors.Is(err, inner) {
		t.Fatalf("expected TransportError to unwrap")
	}
	if got := (&TransportError{Op: "verify signature"}).Error(); got != "transport: verify signature" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   error
		want error
	}{
		{fmt.Errorf("get: %w", persistence.ErrNotFound), ErrNotFound},
		{persistence.ErrConflict, ErrConflict},
	}
	for _, tc := range cases {
		if got := mapRepoError(tc.in); !errors.Is(got, tc.want) {
			t.Errorf("mapRepoError(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if mapRepoError(nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
}
