package testfixtures

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/villaclean/bookingcore/internal/persistence"
	"github.com/villaclean/bookingcore/internal/persistence/sqlstore"
)

// SQLiteHarness provides a migrated SQL store backed by a temporary SQLite file
// for integration-style tests.
type SQLiteHarness struct {
	Store *sqlstore.Store

	tb      testing.TB
	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a store in a temporary directory. The
// store is closed automatically when the test finishes.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "bookingcore.db")
	store, err := sqlstore.Open(sqlstore.DriverSQLite, path, sqlstore.Options{Logger: DiscardLogger()})
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate store: %v", err)
	}

	harness := &SQLiteHarness{
		Store: store,
		tb:    tb,
		cleanup: func() {
			_ = store.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// SeedAssignee stores the assignee.
func (h *SQLiteHarness) SeedAssignee(f AssigneeFixture) persistence.Assignee {
	h.tb.Helper()
	assignee := f.Persistence()
	if err := h.Store.CreateAssignee(context.Background(), assignee); err != nil {
		h.tb.Fatalf("seed assignee %s: %v", assignee.ID, err)
	}
	return assignee
}

// SeedProperty stores the property and its owner. An owner that already
// exists is reused.
func (h *SQLiteHarness) SeedProperty(f PropertyFixture) persistence.Property {
	h.tb.Helper()
	ctx := context.Background()
	if err := h.Store.CreateRequester(ctx, f.Owner()); err != nil && !errors.Is(err, persistence.ErrDuplicate) {
		h.tb.Fatalf("seed owner %s: %v", f.OwnerID, err)
	}
	property := f.Persistence()
	if err := h.Store.CreateProperty(ctx, property); err != nil {
		h.tb.Fatalf("seed property %s: %v", property.ID, err)
	}
	return property
}

// SeedBooking stores the booking together with its response tracker.
func (h *SQLiteHarness) SeedBooking(f BookingFixture) (persistence.Booking, persistence.ResponseTracker) {
	h.tb.Helper()
	booking, tracker := f.Persistence(), f.Tracker()
	if err := h.Store.CreateBookingWithTracker(context.Background(), booking, tracker); err != nil {
		h.tb.Fatalf("seed booking %s: %v", booking.ID, err)
	}
	return booking, tracker
}

// Booking reloads a booking and fails the test when it cannot be read.
func (h *SQLiteHarness) Booking(id string) persistence.Booking {
	h.tb.Helper()
	booking, err := h.Store.GetBooking(context.Background(), id)
	if err != nil {
		h.tb.Fatalf("load booking %s: %v", id, err)
	}
	return booking
}

// Tracker reloads the tracker attached to bookingID.
func (h *SQLiteHarness) Tracker(bookingID string) persistence.ResponseTracker {
	h.tb.Helper()
	tracker, err := h.Store.GetTrackerByBooking(context.Background(), bookingID)
	if err != nil {
		h.tb.Fatalf("load tracker for %s: %v", bookingID, err)
	}
	return tracker
}
