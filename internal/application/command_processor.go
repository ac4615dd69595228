package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/villaclean/bookingcore/internal/command"
	"github.com/villaclean/bookingcore/internal/notify"
	"github.com/villaclean/bookingcore/internal/persistence"
	"github.com/villaclean/bookingcore/internal/phone"
)

// CommandProcessor applies accept and decline commands sent by assignees.
// Deliveries are at-least-once; the ledger claim on the message id is what
// makes each message take effect at most once.
type CommandProcessor struct {
	bookings  persistence.BookingRepository
	trackers  persistence.TrackerRepository
	directory persistence.DirectoryRepository
	ledger    persistence.LedgerRepository
	notifier  notify.Notifier
	now       func() time.Time
	logger    *slog.Logger
	region    string
}

// NewCommandProcessor constructs a command processor.
func NewCommandProcessor(bookings persistence.BookingRepository, trackers persistence.TrackerRepository, directory persistence.DirectoryRepository, ledger persistence.LedgerRepository, notifier notify.Notifier, now func() time.Time) *CommandProcessor {
	return NewCommandProcessorWithLogger(bookings, trackers, directory, ledger, notifier, now, nil)
}

// NewCommandProcessorWithLogger constructs a command processor with a specified logger.
func NewCommandProcessorWithLogger(bookings persistence.BookingRepository, trackers persistence.TrackerRepository, directory persistence.DirectoryRepository, ledger persistence.LedgerRepository, notifier notify.Notifier, now func() time.Time, logger *slog.Logger) *CommandProcessor {
	if now == nil {
		now = time.Now
	}
	return &CommandProcessor{
		bookings:  bookings,
		trackers:  trackers,
		directory: directory,
		ledger:    ledger,
		notifier:  notifier,
		now:       now,
		logger:    defaultLogger(logger),
		region:    phone.DefaultRegion,
	}
}

// WithPhoneRegion sets the region used to read sender numbers that carry no
// country code.
func (p *CommandProcessor) WithPhoneRegion(region string) *CommandProcessor {
	if region != "" {
		p.region = region
	}
	return p
}

func (p *CommandProcessor) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, p.logger, "CommandProcessor", operation, attrs...)
}

// Handle processes one inbound message. The returned error is reserved for
// unexpected failures; expected outcomes such as duplicates, unknown senders
// or conflicts are reported through the Outcome.
func (p *CommandProcessor) Handle(ctx context.Context, msg InboundCommand) (outcome Outcome, err error) {
	if p == nil {
		err = fmt.Errorf("CommandProcessor is nil")
		return
	}

	logger := p.loggerWith(ctx, "Handle", "message_id", msg.MessageID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "inbound command failed", "outcome", outcome.String(), "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "inbound command handled", "outcome", outcome.String())
	}()

	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = p.now()
	}
	sender := phone.Normalize(msg.From, p.region)

	err = p.ledger.ClaimMessage(ctx, persistence.InboundMessage{MessageID: msg.MessageID, Sender: sender, ReceivedAt: receivedAt})
	if errors.Is(err, persistence.ErrDuplicate) {
		outcome, err = OutcomeDuplicate, nil
		return
	}
	if err != nil {
		err = fmt.Errorf("claim message: %w", err)
		return
	}

	if sender == "" {
		outcome = OutcomeUnknownSender
		return
	}
	var assignee persistence.Assignee
	assignee, err = p.directory.GetAssigneeByPhone(ctx, sender)
	if errors.Is(err, persistence.ErrNotFound) {
		outcome, err = OutcomeUnknownSender, nil
		return
	}
	if err != nil {
		err = fmt.Errorf("resolve sender: %w", err)
		return
	}
	logger = logger.With("assignee_id", assignee.ID)

	cmd, parseErr := command.Parse(msg.Body)
	if parseErr != nil {
		vErr := &ValidationError{}
		vErr.add("body", parseErr.Error())
		logger.InfoContext(ctx, "inbound command rejected", "error", vErr, "error_kind", ErrorKind(vErr), "reason", parseErr.Error())
		deliver(ctx, logger, p.notifier, notify.Message{RecipientID: assignee.ID, Kind: notify.KindHelp, Body: helpBody()})
		outcome = OutcomeInvalid
		return
	}

	var pending []persistence.Booking
	pending, err = p.bookings.ListBookings(ctx, persistence.BookingFilter{
		AssigneeID:    assignee.ID,
		Statuses:      []persistence.BookingStatus{persistence.BookingStatusPending},
		ReferenceCode: cmd.Code,
	})
	if err != nil {
		err = fmt.Errorf("list pending bookings: %w", err)
		return
	}
	pending = withoutSkipped(pending)

	switch {
	case len(pending) == 0:
		deliver(ctx, logger, p.notifier, notify.Message{RecipientID: assignee.ID, Kind: notify.KindHelp, ReferenceCode: cmd.Code, Body: notFoundBody(cmd.Code)})
		outcome = OutcomeNotFound
		return
	case len(pending) > 1:
		deliver(ctx, logger, p.notifier, notify.Message{RecipientID: assignee.ID, Kind: notify.KindDisambiguation, Body: disambiguationBody(pending)})
		outcome = OutcomeAmbiguous
		return
	}

	target := pending[0]
	logger = logger.With("booking_id", target.ID)
	to, kind, accepted := persistence.BookingStatusCancelled, notify.KindDeclined, false
	if cmd.Verb == command.VerbAccept {
		to, kind, accepted = persistence.BookingStatusConfirmed, notify.KindAccepted, true
	}

	now := p.now()
	err = p.bookings.TransitionBooking(ctx, target.ID, assignee.ID, persistence.BookingStatusPending, to, now)
	if errors.Is(err, persistence.ErrConflict) || errors.Is(err, persistence.ErrNotFound) {
		outcome, err = OutcomeConflict, nil
		return
	}
	if err != nil {
		err = fmt.Errorf("transition booking %s: %w", target.ID, err)
		return
	}
	target.Status = to

	p.markResponded(ctx, logger, target.ID, now)
	if !accepted {
		endDeclinedSeries(ctx, logger, p.bookings, target, now)
	}

	body := outcomeBody(target, accepted)
	deliver(ctx, logger, p.notifier, bookingMessage(kind, assignee.ID, target, body))
	deliver(ctx, logger, p.notifier, bookingMessage(kind, target.RequesterID, target, body))

	outcome = OutcomeDeclined
	if accepted {
		outcome = OutcomeAccepted
	}
	return
}

// markResponded retires the booking's tracker. The tracker scan would do the
// same on its next pass, so failures are only logged.
func (p *CommandProcessor) markResponded(ctx context.Context, logger *slog.Logger, bookingID string, now time.Time) {
	if p.trackers == nil {
		return
	}
	tracker, err := p.trackers.GetTrackerByBooking(ctx, bookingID)
	if errors.Is(err, persistence.ErrNotFound) {
		return
	}
	if err == nil {
		err = p.trackers.SetTrackerTimestamp(ctx, tracker.ID, persistence.TrackerResponded, now)
	}
	if err != nil && !errors.Is(err, persistence.ErrConflict) {
		logger.WarnContext(ctx, "failed to retire response tracker", "booking_id", bookingID, "error", err)
	}
}

func withoutSkipped(bookings []persistence.Booking) []persistence.Booking {
	kept := bookings[:0]
	for _, b := range bookings {
		if !b.Skipped {
			kept = append(kept, b)
		}
	}
	return kept
}
