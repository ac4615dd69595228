package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/villaclean/bookingcore/internal/conflict"
	"github.com/villaclean/bookingcore/internal/notify"
	"github.com/villaclean/bookingcore/internal/persistence"
	"github.com/villaclean/bookingcore/internal/refcode"
)

// BookingService creates booking requests and records completed visits.
type BookingService struct {
	bookings    persistence.BookingRepository
	directory   persistence.DirectoryRepository
	notifier    notify.Notifier
	codes       refcode.Generator
	location    *time.Location
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a booking service.
func NewBookingService(bookings persistence.BookingRepository, directory persistence.DirectoryRepository, notifier notify.Notifier, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, directory, notifier, nil, time.UTC, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a reference
// code generator, schedule time zone and logger.
func NewBookingServiceWithLogger(bookings persistence.BookingRepository, directory persistence.DirectoryRepository, notifier notify.Notifier, codes refcode.Generator, loc *time.Location, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if codes == nil {
		codes = refcode.New
	}
	if loc == nil {
		loc = time.UTC
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:    bookings,
		directory:   directory,
		notifier:    notifier,
		codes:       codes,
		location:    loc,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// RequestBooking validates input and stores a pending booking together with
// its response tracker. A recurring request becomes the head of a new series.
func (s *BookingService) RequestBooking(ctx context.Context, input RequestBookingInput) (booking persistence.Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RequestBooking",
		"requester_id", input.RequesterID,
		"assignee_id", input.AssigneeID,
		"property_id", input.PropertyID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to request booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID, "reference_code", booking.ReferenceCode).InfoContext(ctx, "booking requested")
	}()

	now := s.now()
	frequency, vErr := s.validateRequest(input, now)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureParties(ctx, input); err != nil {
		return
	}

	booking = persistence.Booking{
		ID:              s.idGenerator(),
		AssigneeID:      input.AssigneeID,
		RequesterID:     input.RequesterID,
		PropertyID:      input.PropertyID,
		Status:          persistence.BookingStatusPending,
		ScheduledDate:   strings.TrimSpace(input.ScheduledDate),
		TimeOfDay:       strings.TrimSpace(input.TimeOfDay),
		Service:         strings.TrimSpace(input.Service),
		PriceCents:      input.PriceCents,
		DurationMinutes: input.DurationMinutes,
		Notes:           strings.TrimSpace(input.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if frequency != persistence.SeriesFrequencyNone {
		groupID := s.idGenerator()
		booking.IsRecurring = true
		booking.SeriesGroupID = &groupID
		booking.SeriesFrequency = frequency
		booking.SeriesStatus = persistence.SeriesStatusActive
	}
	tracker := persistence.ResponseTracker{ID: s.idGenerator(), BookingID: booking.ID, CreatedAt: now}

	_, err = refcode.Mint(ctx, s.codes, refcode.DefaultAttempts, func(ctx context.Context, code string) error {
		booking.ReferenceCode = code
		return s.bookings.CreateBookingWithTracker(ctx, booking, tracker)
	})
	if err != nil {
		err = fmt.Errorf("store booking: %w", err)
		return
	}

	clashes := s.overlappingVisits(ctx, logger, booking)
	if clashes > 0 {
		logger.WarnContext(ctx, "booking overlaps existing visits", "overlaps", clashes)
	}
	deliver(ctx, logger, s.notifier, bookingMessage(notify.KindRequested, booking.AssigneeID, booking, requestedBody(booking, clashes)))
	return
}

// overlappingVisits counts the active visits on the same day that clash with
// booking, either for its cleaner or at its villa. Lookup failures are logged
// and count as no clash.
func (s *BookingService) overlappingVisits(ctx context.Context, logger *slog.Logger, booking persistence.Booking) int {
	candidate, err := conflict.VisitOf(booking, s.location)
	if err != nil {
		return 0
	}

	active := []persistence.BookingStatus{persistence.BookingStatusPending, persistence.BookingStatusConfirmed}
	seen := make(map[string]struct{})
	var visits []conflict.Visit
	for _, filter := range []persistence.BookingFilter{
		{AssigneeID: booking.AssigneeID, Statuses: active},
		{PropertyID: booking.PropertyID, Statuses: active},
	} {
		others, err := s.bookings.ListBookings(ctx, filter)
		if err != nil {
			logger.WarnContext(ctx, "failed to check overlapping visits", "error", err)
			return 0
		}
		for _, other := range others {
			if _, dup := seen[other.ID]; dup || other.Skipped || other.ScheduledDate != booking.ScheduledDate {
				continue
			}
			seen[other.ID] = struct{}{}
			visit, err := conflict.VisitOf(other, s.location)
			if err != nil {
				continue
			}
			visits = append(visits, visit)
		}
	}

	clashing := make(map[string]struct{})
	for _, c := range conflict.Detect(visits, candidate) {
		clashing[c.WithBookingID] = struct{}{}
	}
	return len(clashing)
}

// CompleteBooking records that the assignee finished a confirmed visit.
func (s *BookingService) CompleteBooking(ctx context.Context, assigneeID, bookingID string) (err error) {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}

	logger := s.loggerWith(ctx, "CompleteBooking", "assignee_id", assigneeID, "booking_id", bookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking completed")
	}()

	var booking persistence.Booking
	booking, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if booking.AssigneeID != assigneeID {
		err = ErrUnauthorized
		return
	}

	err = s.bookings.TransitionBooking(ctx, booking.ID, assigneeID, persistence.BookingStatusConfirmed, persistence.BookingStatusCompleted, s.now())
	if err != nil {
		err = mapRepoError(err)
		return
	}
	booking.Status = persistence.BookingStatusCompleted
	deliver(ctx, logger, s.notifier, bookingMessage(notify.KindCompleted, booking.RequesterID, booking, completedBody(booking)))
	return nil
}

func (s *BookingService) validateRequest(input RequestBookingInput, now time.Time) (persistence.SeriesFrequency, *ValidationError) {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.RequesterID) == "" {
		vErr.add("requesterId", "requester is required")
	}
	if strings.TrimSpace(input.AssigneeID) == "" {
		vErr.add("assigneeId", "assignee is required")
	}
	if strings.TrimSpace(input.PropertyID) == "" {
		vErr.add("propertyId", "property is required")
	}
	if strings.TrimSpace(input.Service) == "" {
		vErr.add("service", "service is required")
	}
	if input.PriceCents < 0 {
		vErr.add("priceCents", "price must not be negative")
	}
	if input.DurationMinutes <= 0 {
		vErr.add("durationMinutes", "duration must be positive")
	}

	_, dateErr := time.Parse(persistence.DateLayout, strings.TrimSpace(input.ScheduledDate))
	if dateErr != nil {
		vErr.add("scheduledDate", "date must be formatted as YYYY-MM-DD")
	}
	_, timeErr := time.Parse(persistence.TimeOfDayLayout, strings.TrimSpace(input.TimeOfDay))
	if timeErr != nil {
		vErr.add("timeOfDay", "time must be formatted as HH:MM")
	}
	if dateErr == nil && timeErr == nil {
		probe := persistence.Booking{ScheduledDate: strings.TrimSpace(input.ScheduledDate), TimeOfDay: strings.TrimSpace(input.TimeOfDay)}
		if at, err := probe.ScheduledAt(s.location); err == nil && !at.After(now) {
			vErr.add("scheduledDate", "booking must be scheduled in the future")
		}
	}

	frequency, err := persistence.ParseSeriesFrequency(input.Frequency)
	if err != nil {
		vErr.add("frequency", "frequency must be WEEKLY, FORTNIGHTLY or MONTHLY")
	}
	return frequency, vErr
}

func (s *BookingService) ensureParties(ctx context.Context, input RequestBookingInput) error {
	if s.directory == nil {
		return nil
	}
	vErr := &ValidationError{}
	if _, err := s.directory.GetAssignee(ctx, input.AssigneeID); err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("load assignee: %w", err)
		}
		vErr.add("assigneeId", "assignee does not exist")
	}
	property, err := s.directory.GetProperty(ctx, input.PropertyID)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		vErr.add("propertyId", "property does not exist")
	case err != nil:
		return fmt.Errorf("load property: %w", err)
	case property.OwnerID != input.RequesterID:
		return ErrUnauthorized
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
