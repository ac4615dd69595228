package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/villaclean/bookingcore/internal/access"
	"github.com/villaclean/bookingcore/internal/persistence"
)

// AccessService reveals property access instructions to the cleaner of a
// confirmed booking inside the disclosure window.
type AccessService struct {
	bookings  persistence.BookingRepository
	directory persistence.DirectoryRepository
	cipher    access.Cipher
	location  *time.Location
	logger    *slog.Logger
}

// NewAccessService constructs an access service. loc is the time zone booking
// schedules are expressed in.
func NewAccessService(bookings persistence.BookingRepository, directory persistence.DirectoryRepository, cipher access.Cipher, loc *time.Location) *AccessService {
	return NewAccessServiceWithLogger(bookings, directory, cipher, loc, nil)
}

// NewAccessServiceWithLogger constructs an access service with a specified logger.
func NewAccessServiceWithLogger(bookings persistence.BookingRepository, directory persistence.DirectoryRepository, cipher access.Cipher, loc *time.Location, logger *slog.Logger) *AccessService {
	if loc == nil {
		loc = time.UTC
	}
	return &AccessService{bookings: bookings, directory: directory, cipher: cipher, location: loc, logger: defaultLogger(logger)}
}

func (s *AccessService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AccessService", operation, attrs...)
}

// Disclose returns the access instructions for bookingID as seen by viewerID
// at now. Only the booking's assignee may view them, and only once the
// booking is confirmed.
func (s *AccessService) Disclose(ctx context.Context, bookingID, viewerID string, now time.Time) (view AccessView, err error) {
	if s == nil {
		err = fmt.Errorf("AccessService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Disclose", "booking_id", bookingID, "viewer_id", viewerID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "access disclosure refused", "error", err, "error_kind", ErrorKind(err))
			return
		}
		// Never log the instructions themselves.
		logger.InfoContext(ctx, "access disclosure evaluated", "can_view", view.CanView)
	}()

	var booking persistence.Booking
	booking, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if booking.AssigneeID != viewerID {
		err = ErrUnauthorized
		return
	}
	if booking.Status != persistence.BookingStatusConfirmed {
		err = ErrConflict
		return
	}

	var property persistence.Property
	property, err = s.directory.GetProperty(ctx, booking.PropertyID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	var appointment time.Time
	appointment, err = booking.ScheduledAt(s.location)
	if err != nil {
		return
	}

	var disclosure access.Disclosure
	disclosure, err = access.Disclose(now, appointment, property.AccessSecret, s.cipher)
	if err != nil {
		return
	}

	view = AccessView{
		BookingID:     booking.ID,
		ReferenceCode: booking.ReferenceCode,
		CanView:       disclosure.CanView,
		Instructions:  disclosure.Plaintext,
		AvailableAt:   disclosure.AvailableAt,
	}
	return
}

// SetAccessSecret seals plaintext and stores it on the property. Only the
// property owner may change it.
func (s *AccessService) SetAccessSecret(ctx context.Context, ownerID, propertyID, plaintext string) (err error) {
	if s == nil {
		return fmt.Errorf("AccessService is nil")
	}

	logger := s.loggerWith(ctx, "SetAccessSecret", "owner_id", ownerID, "property_id", propertyID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set access secret", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "access secret updated")
	}()

	if strings.TrimSpace(plaintext) == "" {
		vErr := &ValidationError{}
		vErr.add("accessSecret", "access instructions are required")
		err = vErr
		return
	}

	var property persistence.Property
	property, err = s.directory.GetProperty(ctx, propertyID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if property.OwnerID != ownerID {
		err = ErrUnauthorized
		return
	}

	var sealed string
	sealed, err = s.cipher.Seal(plaintext)
	if err != nil {
		return
	}
	err = mapRepoError(s.directory.UpdatePropertySecret(ctx, property.ID, sealed))
	return
}
