package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/villaclean/bookingcore/internal/application"
	"github.com/villaclean/bookingcore/internal/persistence"
)

var (
	assigneeCounter uint64
	propertyCounter uint64
	bookingCounter  uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Assignee fixtures -----------------------------

// AssigneeFixture is a deterministic cleaner record.
type AssigneeFixture struct {
	ID     string
	Name   string
	Phone  string
	TeamID *string
}

// AssigneeOption configures the generated assignee fixture.
type AssigneeOption func(*AssigneeFixture)

// NewAssigneeFixture returns a deterministic assignee with a unique phone.
func NewAssigneeFixture(opts ...AssigneeOption) AssigneeFixture {
	idx := atomic.AddUint64(&assigneeCounter, 1)
	fixture := AssigneeFixture{
		ID:    fmt.Sprintf("cleaner-%03d", idx),
		Name:  fmt.Sprintf("Cleaner %03d", idx),
		Phone: fmt.Sprintf("+1555%07d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAssigneeID overrides the generated assignee ID.
func WithAssigneeID(id string) AssigneeOption {
	return func(f *AssigneeFixture) {
		f.ID = id
	}
}

// WithAssigneePhone overrides the generated phone. It must be normalized.
func WithAssigneePhone(phone string) AssigneeOption {
	return func(f *AssigneeFixture) {
		f.Phone = phone
	}
}

// WithAssigneeTeam places the assignee on a team.
func WithAssigneeTeam(teamID string) AssigneeOption {
	return func(f *AssigneeFixture) {
		f.TeamID = &teamID
	}
}

// Persistence returns the fixture as a persistence.Assignee value.
func (f AssigneeFixture) Persistence() persistence.Assignee {
	return persistence.Assignee{ID: f.ID, Name: f.Name, Phone: f.Phone, TeamID: copyStringPtr(f.TeamID)}
}

// ----------------------------- Property fixtures -----------------------------

// PropertyFixture is a deterministic villa owned by a requester.
type PropertyFixture struct {
	ID           string
	OwnerID      string
	OwnerName    string
	Name         string
	AccessSecret string
}

// PropertyOption configures the generated property fixture.
type PropertyOption func(*PropertyFixture)

// NewPropertyFixture returns a deterministic property with its own owner.
func NewPropertyFixture(opts ...PropertyOption) PropertyFixture {
	idx := atomic.AddUint64(&propertyCounter, 1)
	fixture := PropertyFixture{
		ID:        fmt.Sprintf("villa-%03d", idx),
		OwnerID:   fmt.Sprintf("owner-%03d", idx),
		OwnerName: fmt.Sprintf("Owner %03d", idx),
		Name:      fmt.Sprintf("Villa %03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPropertyID overrides the generated property ID.
func WithPropertyID(id string) PropertyOption {
	return func(f *PropertyFixture) {
		f.ID = id
	}
}

// WithPropertyOwner overrides the generated owner.
func WithPropertyOwner(ownerID string) PropertyOption {
	return func(f *PropertyFixture) {
		f.OwnerID = ownerID
	}
}

// WithPropertySealedSecret stores an already sealed access secret.
func WithPropertySealedSecret(sealed string) PropertyOption {
	return func(f *PropertyFixture) {
		f.AccessSecret = sealed
	}
}

// Persistence returns the fixture as a persistence.Property value.
func (f PropertyFixture) Persistence() persistence.Property {
	return persistence.Property{ID: f.ID, OwnerID: f.OwnerID, Name: f.Name, AccessSecret: f.AccessSecret}
}

// Owner returns the requester that owns the property.
func (f PropertyFixture) Owner() persistence.Requester {
	return persistence.Requester{ID: f.OwnerID, Name: f.OwnerName}
}

// ----------------------------- Booking fixtures -----------------------------

// BookingFixture is a deterministic pending booking. By default it is
// scheduled three days after ReferenceTime.
type BookingFixture struct {
	Booking persistence.Booking
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a pending one-off booking for assignee at property.
func NewBookingFixture(assignee AssigneeFixture, property PropertyFixture, opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	at := referenceTime.AddDate(0, 0, 3)
	fixture := BookingFixture{Booking: persistence.Booking{
		ID:              fmt.Sprintf("booking-%03d", idx),
		AssigneeID:      assignee.ID,
		RequesterID:     property.OwnerID,
		PropertyID:      property.ID,
		Status:          persistence.BookingStatusPending,
		ScheduledDate:   at.Format(persistence.DateLayout),
		TimeOfDay:       "10:00",
		ReferenceCode:   fmt.Sprintf("F%03d", idx%1000),
		Service:         "Standard clean",
		PriceCents:      9000,
		DurationMinutes: 120,
		CreatedAt:       referenceTime,
		UpdatedAt:       referenceTime,
	}}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingID overrides the generated booking ID.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) {
		f.Booking.ID = id
	}
}

// WithBookingStatus overrides the booking status.
func WithBookingStatus(status persistence.BookingStatus) BookingOption {
	return func(f *BookingFixture) {
		f.Booking.Status = status
	}
}

// WithBookingCode overrides the reference code.
func WithBookingCode(code string) BookingOption {
	return func(f *BookingFixture) {
		f.Booking.ReferenceCode = code
	}
}

// WithBookingSchedule sets the scheduled date and time of day from at.
func WithBookingSchedule(at time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.Booking.ScheduledDate = at.Format(persistence.DateLayout)
		f.Booking.TimeOfDay = at.Format(persistence.TimeOfDayLayout)
	}
}

// WithBookingCreatedAt sets the created and updated timestamps.
func WithBookingCreatedAt(t time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.Booking.CreatedAt = t
		f.Booking.UpdatedAt = t
	}
}

// AsSeriesHead turns the booking into the head of an active series.
func AsSeriesHead(groupID string, frequency persistence.SeriesFrequency) BookingOption {
	return func(f *BookingFixture) {
		f.Booking.IsRecurring = true
		f.Booking.SeriesGroupID = &groupID
		f.Booking.SeriesParentID = nil
		f.Booking.SeriesFrequency = frequency
		f.Booking.SeriesStatus = persistence.SeriesStatusActive
	}
}

// Persistence returns the fixture as a persistence.Booking value.
func (f BookingFixture) Persistence() persistence.Booking {
	b := f.Booking
	b.SeriesGroupID = copyStringPtr(b.SeriesGroupID)
	b.SeriesParentID = copyStringPtr(b.SeriesParentID)
	return b
}

// Tracker returns a fresh tracker for the booking created at its CreatedAt.
func (f BookingFixture) Tracker() persistence.ResponseTracker {
	return persistence.ResponseTracker{
		ID:        "tracker-" + f.Booking.ID,
		BookingID: f.Booking.ID,
		CreatedAt: f.Booking.CreatedAt,
	}
}

// Request returns the fixture as an application.RequestBookingInput.
func (f BookingFixture) Request() application.RequestBookingInput {
	return application.RequestBookingInput{
		RequesterID:     f.Booking.RequesterID,
		AssigneeID:      f.Booking.AssigneeID,
		PropertyID:      f.Booking.PropertyID,
		ScheduledDate:   f.Booking.ScheduledDate,
		TimeOfDay:       f.Booking.TimeOfDay,
		Service:         f.Booking.Service,
		PriceCents:      f.Booking.PriceCents,
		DurationMinutes: f.Booking.DurationMinutes,
		Notes:           f.Booking.Notes,
		Frequency:       f.Booking.SeriesFrequency.String(),
	}
}

func copyStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
