package application

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/villaclean/bookingcore/internal/access"
	"github.com/villaclean/bookingcore/internal/persistence"
)

func newTestBoxCipher(t *testing.T) *access.BoxCipher {
	t.Helper()
	cipher, err := access.NewBoxCipher(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	if err != nil {
		t.Fatalf("NewBoxCipher: %v", err)
	}
	return cipher
}

func newAccessFixture(t *testing.T, status persistence.BookingStatus) (*memoryStore, *AccessService) {
	t.Helper()
	cipher := newTestBoxCipher(t)
	sealed, err := cipher.Seal("Key safe 4821, gate code 0099")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	store := newMemoryStore()
	store.addProperty(persistence.Property{ID: "villa-1", OwnerID: "owner-1", Name: "Casa Azul", AccessSecret: sealed})
	store.addBooking(persistence.Booking{
		ID: "b-1", AssigneeID: "cleaner-1", RequesterID: "owner-1", PropertyID: "villa-1",
		Status: status, ScheduledDate: "2024-06-10", TimeOfDay: "11:00", ReferenceCode: "K7QX",
	})
	return store, NewAccessServiceWithLogger(store, store, cipher, time.UTC, discardLogger())
}

func TestAccessService_Disclose(t *testing.T) {
	t.Parallel()

	appointment := time.Date(2024, time.June, 10, 11, 0, 0, 0, time.UTC)

	t.Run("inside window", func(t *testing.T) {
		t.Parallel()
		_, svc := newAccessFixture(t, persistence.BookingStatusConfirmed)
		view, err := svc.Disclose(context.Background(), "b-1", "cleaner-1", appointment.Add(-2*time.Hour))
		if err != nil {
			t.Fatalf("Disclose: %v", err)
		}
		if !view.CanView || view.Instructions != "Key safe 4821, gate code 0099" {
			t.Fatalf("expected instructions, got %+v", view)
		}
		if view.ReferenceCode != "K7QX" {
			t.Fatalf("unexpected reference code %q", view.ReferenceCode)
		}
	})

	t.Run("before window", func(t *testing.T) {
		t.Parallel()
		_, svc := newAccessFixture(t, persistence.BookingStatusConfirmed)
		view, err := svc.Disclose(context.Background(), "b-1", "cleaner-1", appointment.Add(-48*time.Hour))
		if err != nil {
			t.Fatalf("Disclose: %v", err)
		}
		if view.CanView || view.Instructions != "" {
			t.Fatalf("instructions must stay hidden, got %+v", view)
		}
		if view.AvailableAt == nil || !view.AvailableAt.Equal(appointment.Add(-access.Window)) {
			t.Fatalf("expected availability at window start, got %v", view.AvailableAt)
		}
	})

	t.Run("after appointment", func(t *testing.T) {
		t.Parallel()
		_, svc := newAccessFixture(t, persistence.BookingStatusConfirmed)
		view, err := svc.Disclose(context.Background(), "b-1", "cleaner-1", appointment.Add(time.Minute))
		if err != nil {
			t.Fatalf("Disclose: %v", err)
		}
		if view.CanView || view.AvailableAt != nil {
			t.Fatalf("expected nothing after the appointment, got %+v", view)
		}
	})

	t.Run("other viewer", func(t *testing.T) {
		t.Parallel()
		_, svc := newAccessFixture(t, persistence.BookingStatusConfirmed)
		_, err := svc.Disclose(context.Background(), "b-1", "cleaner-2", appointment.Add(-time.Hour))
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unconfirmed booking", func(t *testing.T) {
		t.Parallel()
		_, svc := newAccessFixture(t, persistence.BookingStatusPending)
		_, err := svc.Disclose(context.Background(), "b-1", "cleaner-1", appointment.Add(-time.Hour))
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("missing booking", func(t *testing.T) {
		t.Parallel()
		_, svc := newAccessFixture(t, persistence.BookingStatusConfirmed)
		_, err := svc.Disclose(context.Background(), "missing", "cleaner-1", appointment)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAccessService_SetAccessSecret(t *testing.T) {
	t.Parallel()

	store, svc := newAccessFixture(t, persistence.BookingStatusConfirmed)
	ctx := context.Background()

	if err := svc.SetAccessSecret(ctx, "owner-2", "villa-1", "new code"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for another owner, got %v", err)
	}

	var vErr *ValidationError
	if err := svc.SetAccessSecret(ctx, "owner-1", "villa-1", "  "); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := svc.SetAccessSecret(ctx, "owner-1", "villa-1", "Lockbox 1234"); err != nil {
		t.Fatalf("SetAccessSecret: %v", err)
	}
	stored := store.properties["villa-1"].AccessSecret
	if stored == "" || strings.Contains(stored, "Lockbox") {
		t.Fatalf("secret must be stored sealed, got %q", stored)
	}

	view, err := svc.Disclose(ctx, "b-1", "cleaner-1", time.Date(2024, time.June, 10, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Disclose: %v", err)
	}
	if view.Instructions != "Lockbox 1234" {
		t.Fatalf("expected updated instructions, got %q", view.Instructions)
	}
}
