package persistence

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage layout of a booking's scheduled date.
const DateLayout = "2006-01-02"

// TimeOfDayLayout is the storage layout of a booking's scheduled time of day.
const TimeOfDayLayout = "15:04"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus int

const (
	BookingStatusUnspecified BookingStatus = iota
	BookingStatusPending
	BookingStatusConfirmed
	BookingStatusCancelled
	BookingStatusCompleted
)

var bookingStatusNames = map[BookingStatus]string{
	BookingStatusPending:   "PENDING",
	BookingStatusConfirmed: "CONFIRMED",
	BookingStatusCancelled: "CANCELLED",
	BookingStatusCompleted: "COMPLETED",
}

func (s BookingStatus) String() string {
	if name, ok := bookingStatusNames[s]; ok {
		return name
	}
	return "UNSPECIFIED"
}

// ParseBookingStatus decodes the stored representation of a booking status.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for status, name := range bookingStatusNames {
		if strings.EqualFold(strings.TrimSpace(value), name) {
			return status, nil
		}
	}
	return BookingStatusUnspecified, fmt.Errorf("persistence: unknown booking status %q", value)
}

// SeriesFrequency is the recurrence interval of a booking series.
type SeriesFrequency int

const (
	SeriesFrequencyNone SeriesFrequency = iota
	SeriesFrequencyWeekly
	SeriesFrequencyFortnightly
	SeriesFrequencyMonthly
)

var seriesFrequencyNames = map[SeriesFrequency]string{
	SeriesFrequencyWeekly:      "WEEKLY",
	SeriesFrequencyFortnightly: "FORTNIGHTLY",
	SeriesFrequencyMonthly:     "MONTHLY",
}

func (f SeriesFrequency) String() string {
	if name, ok := seriesFrequencyNames[f]; ok {
		return name
	}
	return ""
}

// ParseSeriesFrequency decodes a stored frequency. The empty string maps to
// SeriesFrequencyNone for non-recurring bookings.
func ParseSeriesFrequency(value string) (SeriesFrequency, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return SeriesFrequencyNone, nil
	}
	for freq, name := range seriesFrequencyNames {
		if strings.EqualFold(value, name) {
			return freq, nil
		}
	}
	return SeriesFrequencyNone, fmt.Errorf("persistence: unknown series frequency %q", value)
}

// SeriesStatus controls whether a series is topped up.
type SeriesStatus int

const (
	SeriesStatusNone SeriesStatus = iota
	SeriesStatusActive
	SeriesStatusPaused
	SeriesStatusCancelled
)

var seriesStatusNames = map[SeriesStatus]string{
	SeriesStatusActive:    "ACTIVE",
	SeriesStatusPaused:    "PAUSED",
	SeriesStatusCancelled: "CANCELLED",
}

func (s SeriesStatus) String() string {
	if name, ok := seriesStatusNames[s]; ok {
		return name
	}
	return ""
}

// ParseSeriesStatus decodes a stored series status. The empty string maps to
// SeriesStatusNone.
func ParseSeriesStatus(value string) (SeriesStatus, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return SeriesStatusNone, nil
	}
	for status, name := range seriesStatusNames {
		if strings.EqualFold(value, name) {
			return status, nil
		}
	}
	return SeriesStatusNone, fmt.Errorf("persistence: unknown series status %q", value)
}

// Booking is a cleaning visit requested for a property.
type Booking struct {
	ID              string
	AssigneeID      string
	RequesterID     string
	PropertyID      string
	Status          BookingStatus
	ScheduledDate   string
	TimeOfDay       string
	ReferenceCode   string
	Service         string
	PriceCents      int64
	DurationMinutes int
	Notes           string
	IsRecurring     bool
	SeriesGroupID   *string
	SeriesParentID  *string
	SeriesFrequency SeriesFrequency
	SeriesStatus    SeriesStatus
	Skipped         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ScheduledAt combines the scheduled date and time of day in loc.
func (b Booking) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(DateLayout+" "+TimeOfDayLayout, b.ScheduledDate+" "+b.TimeOfDay, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("persistence: booking %s has invalid schedule: %w", b.ID, err)
	}
	return at, nil
}

// IsSeriesHead reports whether the booking heads a recurring series.
func (b Booking) IsSeriesHead() bool {
	return b.IsRecurring && b.SeriesGroupID != nil && b.SeriesParentID == nil
}

// ResponseTracker follows an unanswered booking request through escalation.
type ResponseTracker struct {
	ID             string
	BookingID      string
	CreatedAt      time.Time
	ReminderSentAt *time.Time
	EscalatedAt    *time.Time
	AutoDeclinedAt *time.Time
	RespondedAt    *time.Time
}

// Live reports whether the tracker still needs scanning.
func (t ResponseTracker) Live() bool {
	return t.RespondedAt == nil && t.AutoDeclinedAt == nil
}

// TrackedBooking pairs a live tracker with the booking it follows.
type TrackedBooking struct {
	Tracker ResponseTracker
	Booking Booking
}

// Assignee is a cleaner who accepts or declines booking requests.
type Assignee struct {
	ID     string
	Name   string
	Phone  string
	TeamID *string
}

// Requester is the villa owner who requested a booking.
type Requester struct {
	ID    string
	Name  string
	Phone string
}

// Property is the villa a booking takes place at.
type Property struct {
	ID           string
	OwnerID      string
	Name         string
	AccessSecret string
}

// InboundMessage is a claimed entry of the idempotency ledger.
type InboundMessage struct {
	MessageID  string
	Sender     string
	ReceivedAt time.Time
}
