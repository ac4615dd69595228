package persistence

import (
	"context"
	"time"
)

// BookingFilter narrows booking queries. Zero values do not filter.
type BookingFilter struct {
	AssigneeID    string
	PropertyID    string
	SeriesGroupID string
	Statuses      []BookingStatus
	ReferenceCode string
	SeriesHeads   bool
	SeriesStatus  SeriesStatus
}

// BookingRepository stores bookings.
type BookingRepository interface {
	// CreateBooking inserts a booking. ErrDuplicate reports a colliding id or
	// reference code.
	CreateBooking(ctx context.Context, booking Booking) error
	// CreateBookingWithTracker inserts a booking and its tracker atomically.
	CreateBookingWithTracker(ctx context.Context, booking Booking, tracker ResponseTracker) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// TransitionBooking moves a booking from one status to another. It returns
	// ErrConflict when the booking is not in the from status (or, when
	// assigneeID is set, not routed to that assignee).
	TransitionBooking(ctx context.Context, id, assigneeID string, from, to BookingStatus, at time.Time) error
	UpdateSeriesStatus(ctx context.Context, headID string, status SeriesStatus, at time.Time) error
	MarkSkipped(ctx context.Context, id string, at time.Time) error
}

// TrackerField names one of the tracker's escalation timestamps.
type TrackerField int

const (
	TrackerReminderSent TrackerField = iota + 1
	TrackerEscalated
	TrackerAutoDeclined
	TrackerResponded
)

// TrackerRepository stores booking response trackers.
type TrackerRepository interface {
	// ListLiveTrackers returns trackers with neither responded_at nor
	// auto_declined_at set, joined with their bookings.
	ListLiveTrackers(ctx context.Context) ([]TrackedBooking, error)
	GetTrackerByBooking(ctx context.Context, bookingID string) (ResponseTracker, error)
	// SetTrackerTimestamp sets field only while it is still null. It returns
	// ErrConflict when the field was already set.
	SetTrackerTimestamp(ctx context.Context, trackerID string, field TrackerField, at time.Time) error
}

// DirectoryRepository resolves the parties referenced by bookings.
type DirectoryRepository interface {
	GetAssignee(ctx context.Context, id string) (Assignee, error)
	GetAssigneeByPhone(ctx context.Context, phone string) (Assignee, error)
	ListTeamMembers(ctx context.Context, teamID string) ([]Assignee, error)
	GetRequester(ctx context.Context, id string) (Requester, error)
	GetProperty(ctx context.Context, id string) (Property, error)
	UpdatePropertySecret(ctx context.Context, id, sealed string) error
}

// LedgerRepository is the idempotency ledger for inbound messages.
type LedgerRepository interface {
	// ClaimMessage inserts the message id. ErrDuplicate means another
	// invocation already claimed it.
	ClaimMessage(ctx context.Context, message InboundMessage) error
}
