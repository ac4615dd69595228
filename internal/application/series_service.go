package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/villaclean/bookingcore/internal/persistence"
	"github.com/villaclean/bookingcore/internal/recurrence"
	"github.com/villaclean/bookingcore/internal/refcode"
)

// DefaultMinFuture is the number of upcoming occurrences kept per active series.
const DefaultMinFuture = 4

// SeriesService keeps recurring series topped up and applies requester
// changes to a series.
type SeriesService struct {
	bookings    persistence.BookingRepository
	engine      *recurrence.Engine
	minFuture   int
	codes       refcode.Generator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSeriesService constructs a series service.
func NewSeriesService(bookings persistence.BookingRepository, engine *recurrence.Engine, minFuture int, idGenerator func() string, now func() time.Time) *SeriesService {
	return NewSeriesServiceWithLogger(bookings, engine, minFuture, nil, idGenerator, now, nil)
}

// NewSeriesServiceWithLogger constructs a series service with a reference
// code generator and logger. A nil codes uses refcode.New.
func NewSeriesServiceWithLogger(bookings persistence.BookingRepository, engine *recurrence.Engine, minFuture int, codes refcode.Generator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SeriesService {
	if engine == nil {
		engine = recurrence.NewEngine(time.UTC)
	}
	if minFuture <= 0 {
		minFuture = DefaultMinFuture
	}
	if codes == nil {
		codes = refcode.New
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SeriesService{
		bookings:    bookings,
		engine:      engine,
		minFuture:   minFuture,
		codes:       codes,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *SeriesService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SeriesService", operation, attrs...)
}

// TopUp ensures every active series has at least minFuture upcoming pending
// occurrences that are not skipped. A series whose head was cancelled is left
// alone. Failures on one series are logged and counted.
func (s *SeriesService) TopUp(ctx context.Context, now time.Time) (report TopUpReport, err error) {
	if s == nil {
		err = fmt.Errorf("SeriesService is nil")
		return
	}

	logger := s.loggerWith(ctx, "TopUp", "now", now)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "series top-up failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "series top-up completed", "series", report.Series, "created", report.Created, "failed", report.Failed)
	}()

	var heads []persistence.Booking
	heads, err = s.bookings.ListBookings(ctx, persistence.BookingFilter{SeriesHeads: true, SeriesStatus: persistence.SeriesStatusActive})
	if err != nil {
		err = fmt.Errorf("list series heads: %w", err)
		return
	}

	for _, head := range heads {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			return
		}
		if head.Status == persistence.BookingStatusCancelled {
			continue
		}
		report.Series++
		created, topErr := s.topUpSeries(ctx, head, now)
		report.Created += created
		if topErr != nil {
			report.Failed++
			logger.ErrorContext(ctx, "series top-up step failed",
				"series_group_id", derefString(head.SeriesGroupID),
				"head_id", head.ID,
				"created", created,
				"error", topErr,
				"error_kind", ErrorKind(topErr),
			)
		}
	}
	return
}

func (s *SeriesService) topUpSeries(ctx context.Context, head persistence.Booking, now time.Time) (int, error) {
	loc := s.engine.Location()
	group, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{SeriesGroupID: *head.SeriesGroupID})
	if err != nil {
		return 0, fmt.Errorf("list series: %w", err)
	}

	upcoming := 0
	var anchor time.Time
	for _, booking := range group {
		at, err := booking.ScheduledAt(loc)
		if err != nil {
			return 0, err
		}
		if at.After(anchor) {
			anchor = at
		}
		if booking.Status == persistence.BookingStatusPending && !booking.Skipped && at.After(now) {
			upcoming++
		}
	}

	needed := s.minFuture - upcoming
	if needed <= 0 {
		return 0, nil
	}

	dates, err := s.engine.Expand(anchor, head.SeriesFrequency, needed)
	if err != nil {
		return 0, fmt.Errorf("expand series: %w", err)
	}

	created := 0
	for _, date := range dates {
		child := s.occurrence(head, date)
		_, err := refcode.Mint(ctx, s.codes, refcode.DefaultAttempts, func(ctx context.Context, code string) error {
			child.ReferenceCode = code
			return s.bookings.CreateBooking(ctx, child)
		})
		if err != nil {
			return created, fmt.Errorf("create occurrence %s: %w", child.ScheduledDate, err)
		}
		created++
	}
	return created, nil
}

func (s *SeriesService) occurrence(head persistence.Booking, at time.Time) persistence.Booking {
	createdAt := s.now()
	headID := head.ID
	groupID := *head.SeriesGroupID
	return persistence.Booking{
		ID:              s.idGenerator(),
		AssigneeID:      head.AssigneeID,
		RequesterID:     head.RequesterID,
		PropertyID:      head.PropertyID,
		Status:          persistence.BookingStatusPending,
		ScheduledDate:   at.Format(persistence.DateLayout),
		TimeOfDay:       head.TimeOfDay,
		Service:         head.Service,
		PriceCents:      head.PriceCents,
		DurationMinutes: head.DurationMinutes,
		Notes:           head.Notes,
		IsRecurring:     true,
		SeriesGroupID:   &groupID,
		SeriesParentID:  &headID,
		SeriesFrequency: head.SeriesFrequency,
		SeriesStatus:    persistence.SeriesStatusActive,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// PauseSeries stops topping up a series until it is resumed.
func (s *SeriesService) PauseSeries(ctx context.Context, requesterID, headID string) error {
	return s.changeStatus(ctx, "PauseSeries", requesterID, headID, persistence.SeriesStatusActive, persistence.SeriesStatusPaused)
}

// ResumeSeries reactivates a paused series. The next top-up refills it.
func (s *SeriesService) ResumeSeries(ctx context.Context, requesterID, headID string) error {
	return s.changeStatus(ctx, "ResumeSeries", requesterID, headID, persistence.SeriesStatusPaused, persistence.SeriesStatusActive)
}

// CancelSeries ends a series and cancels its upcoming pending occurrences.
func (s *SeriesService) CancelSeries(ctx context.Context, requesterID, headID string) (err error) {
	if s == nil {
		return fmt.Errorf("SeriesService is nil")
	}
	logger := s.loggerWith(ctx, "CancelSeries", "requester_id", requesterID, "head_id", headID)
	cancelled := 0
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel series", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "series cancelled", "cancelled_occurrences", cancelled)
	}()

	var head persistence.Booking
	head, err = s.loadHead(ctx, requesterID, headID)
	if err != nil {
		return err
	}
	if head.SeriesStatus == persistence.SeriesStatusCancelled {
		return ErrConflict
	}

	now := s.now()
	if err = s.bookings.UpdateSeriesStatus(ctx, head.ID, persistence.SeriesStatusCancelled, now); err != nil {
		err = mapRepoError(err)
		return err
	}

	var group []persistence.Booking
	group, err = s.bookings.ListBookings(ctx, persistence.BookingFilter{
		SeriesGroupID: *head.SeriesGroupID,
		Statuses:      []persistence.BookingStatus{persistence.BookingStatusPending},
	})
	if err != nil {
		err = fmt.Errorf("list series: %w", err)
		return err
	}
	loc := s.engine.Location()
	for _, booking := range group {
		at, parseErr := booking.ScheduledAt(loc)
		if parseErr != nil || !at.After(now) {
			continue
		}
		transErr := s.bookings.TransitionBooking(ctx, booking.ID, "", persistence.BookingStatusPending, persistence.BookingStatusCancelled, now)
		if errors.Is(transErr, persistence.ErrConflict) {
			continue
		}
		if transErr != nil {
			err = fmt.Errorf("cancel occurrence %s: %w", booking.ID, transErr)
			return err
		}
		cancelled++
	}
	return nil
}

// SkipOccurrence marks one upcoming occurrence as a deliberate gap. Skipped
// occurrences are not refilled by TopUp.
func (s *SeriesService) SkipOccurrence(ctx context.Context, requesterID, bookingID string) (err error) {
	if s == nil {
		return fmt.Errorf("SeriesService is nil")
	}
	logger := s.loggerWith(ctx, "SkipOccurrence", "requester_id", requesterID, "booking_id", bookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to skip occurrence", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "occurrence skipped")
	}()

	var booking persistence.Booking
	booking, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapRepoError(err)
		return err
	}
	if booking.RequesterID != requesterID {
		return ErrUnauthorized
	}
	if booking.SeriesGroupID == nil {
		vErr := &ValidationError{}
		vErr.add("bookingId", "booking is not part of a series")
		return vErr
	}
	at, err := booking.ScheduledAt(s.engine.Location())
	if err != nil {
		return err
	}
	now := s.now()
	if !at.After(now) {
		return ErrConflict
	}
	err = mapRepoError(s.bookings.MarkSkipped(ctx, booking.ID, now))
	return err
}

func (s *SeriesService) changeStatus(ctx context.Context, operation, requesterID, headID string, from, to persistence.SeriesStatus) (err error) {
	if s == nil {
		return fmt.Errorf("SeriesService is nil")
	}
	logger := s.loggerWith(ctx, operation, "requester_id", requesterID, "head_id", headID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change series status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "series status changed", "status", to.String())
	}()

	var head persistence.Booking
	head, err = s.loadHead(ctx, requesterID, headID)
	if err != nil {
		return err
	}
	if head.SeriesStatus != from {
		return ErrConflict
	}
	err = mapRepoError(s.bookings.UpdateSeriesStatus(ctx, head.ID, to, s.now()))
	return err
}

func (s *SeriesService) loadHead(ctx context.Context, requesterID, headID string) (persistence.Booking, error) {
	head, err := s.bookings.GetBooking(ctx, headID)
	if err != nil {
		return persistence.Booking{}, mapRepoError(err)
	}
	if head.RequesterID != requesterID {
		return persistence.Booking{}, ErrUnauthorized
	}
	if !head.IsSeriesHead() {
		vErr := &ValidationError{}
		vErr.add("seriesId", "booking does not head a series")
		return persistence.Booking{}, vErr
	}
	return head, nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// endDeclinedSeries marks the series headed by head cancelled once the head
// itself has been declined, so TopUp stops extending it. The decline already
// took effect, so a failure here is only logged.
func endDeclinedSeries(ctx context.Context, logger *slog.Logger, bookings persistence.BookingRepository, head persistence.Booking, now time.Time) {
	if !head.IsSeriesHead() || head.SeriesStatus == persistence.SeriesStatusCancelled {
		return
	}
	if err := bookings.UpdateSeriesStatus(ctx, head.ID, persistence.SeriesStatusCancelled, now); err != nil {
		err = mapRepoError(err)
		logger.WarnContext(ctx, "failed to cancel series of declined head", "head_id", head.ID, "error", err, "error_kind", ErrorKind(err))
		return
	}
	logger.InfoContext(ctx, "series cancelled with its head", "head_id", head.ID, "series_group_id", derefString(head.SeriesGroupID))
}
