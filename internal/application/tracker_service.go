package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/villaclean/bookingcore/internal/escalation"
	"github.com/villaclean/bookingcore/internal/notify"
	"github.com/villaclean/bookingcore/internal/persistence"
)

// TrackerService drives unanswered booking requests through reminder,
// escalation and auto-decline.
type TrackerService struct {
	bookings   persistence.BookingRepository
	trackers   persistence.TrackerRepository
	directory  persistence.DirectoryRepository
	notifier   notify.Notifier
	thresholds escalation.Thresholds
	logger     *slog.Logger
}

// NewTrackerService constructs a tracker service with default thresholds.
func NewTrackerService(bookings persistence.BookingRepository, trackers persistence.TrackerRepository, directory persistence.DirectoryRepository, notifier notify.Notifier) *TrackerService {
	return NewTrackerServiceWithLogger(bookings, trackers, directory, notifier, escalation.DefaultThresholds(), nil)
}

// NewTrackerServiceWithLogger constructs a tracker service with explicit
// thresholds and logger. Invalid thresholds fall back to the defaults.
func NewTrackerServiceWithLogger(bookings persistence.BookingRepository, trackers persistence.TrackerRepository, directory persistence.DirectoryRepository, notifier notify.Notifier, thresholds escalation.Thresholds, logger *slog.Logger) *TrackerService {
	if thresholds.Validate() != nil {
		thresholds = escalation.DefaultThresholds()
	}
	return &TrackerService{
		bookings:   bookings,
		trackers:   trackers,
		directory:  directory,
		notifier:   notifier,
		thresholds: thresholds,
		logger:     defaultLogger(logger),
	}
}

func (s *TrackerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TrackerService", operation, attrs...)
}

// Scan evaluates every live tracker at now. A failure on one tracker is
// logged and counted; the remaining trackers are still processed.
func (s *TrackerService) Scan(ctx context.Context, now time.Time) (report ScanReport, err error) {
	if s == nil {
		err = fmt.Errorf("TrackerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Scan", "now", now)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "tracker scan failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "tracker scan completed",
			"scanned", report.Scanned,
			"responded", report.Responded,
			"reminded", report.Reminded,
			"escalated", report.Escalated,
			"auto_declined", report.AutoDeclined,
			"failed", report.Failed,
		)
	}()

	var tracked []persistence.TrackedBooking
	tracked, err = s.trackers.ListLiveTrackers(ctx)
	if err != nil {
		err = fmt.Errorf("list live trackers: %w", err)
		return
	}

	for _, item := range tracked {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			return
		}
		report.Scanned++

		action := escalation.Decide(item.Tracker, item.Booking.Status == persistence.BookingStatusPending, now, s.thresholds)
		applied, stepErr := s.apply(ctx, logger, item, action, now)
		if stepErr != nil {
			report.Failed++
			logger.ErrorContext(ctx, "tracker step failed",
				"tracker_id", item.Tracker.ID,
				"booking_id", item.Booking.ID,
				"action", action.String(),
				"error", stepErr,
				"error_kind", ErrorKind(stepErr),
			)
			continue
		}
		switch applied {
		case escalation.ActionMarkResponded:
			report.Responded++
		case escalation.ActionRemind:
			report.Reminded++
		case escalation.ActionEscalate:
			report.Escalated++
		case escalation.ActionAutoDecline:
			report.AutoDeclined++
		}
	}
	return
}

// apply carries out action and returns the action that actually took effect.
// An auto-decline that loses the race against a response becomes
// MarkResponded.
func (s *TrackerService) apply(ctx context.Context, logger *slog.Logger, item persistence.TrackedBooking, action escalation.Action, now time.Time) (escalation.Action, error) {
	booking := item.Booking
	tracker := item.Tracker

	switch action {
	case escalation.ActionNone:
		return action, nil

	case escalation.ActionMarkResponded:
		return action, s.stamp(ctx, tracker.ID, persistence.TrackerResponded, now)

	case escalation.ActionAutoDecline:
		err := s.bookings.TransitionBooking(ctx, booking.ID, "", persistence.BookingStatusPending, persistence.BookingStatusCancelled, now)
		if errors.Is(err, persistence.ErrConflict) {
			return escalation.ActionMarkResponded, s.stamp(ctx, tracker.ID, persistence.TrackerResponded, now)
		}
		if err != nil {
			return action, fmt.Errorf("cancel booking %s: %w", booking.ID, mapRepoError(err))
		}
		booking.Status = persistence.BookingStatusCancelled
		endDeclinedSeries(ctx, logger, s.bookings, booking, now)
		body := autoDeclinedBody(booking)
		deliver(ctx, logger, s.notifier, bookingMessage(notify.KindAutoDeclined, booking.AssigneeID, booking, body))
		deliver(ctx, logger, s.notifier, bookingMessage(notify.KindAutoDeclined, booking.RequesterID, booking, body))
		return action, s.stamp(ctx, tracker.ID, persistence.TrackerAutoDeclined, now)

	case escalation.ActionEscalate:
		teammates, err := s.teammates(ctx, booking.AssigneeID)
		if err != nil {
			return action, err
		}
		deliver(ctx, logger, s.notifier, bookingMessage(notify.KindEscalated, booking.AssigneeID, booking, escalatedBody(booking)))
		for _, mate := range teammates {
			deliver(ctx, logger, s.notifier, bookingMessage(notify.KindCoverageOffer, mate.ID, booking, coverageBody(booking)))
		}
		return action, s.stamp(ctx, tracker.ID, persistence.TrackerEscalated, now)

	case escalation.ActionRemind:
		deliver(ctx, logger, s.notifier, bookingMessage(notify.KindReminder, booking.AssigneeID, booking, reminderBody(booking)))
		return action, s.stamp(ctx, tracker.ID, persistence.TrackerReminderSent, now)

	default:
		return action, fmt.Errorf("unhandled tracker action %s", action)
	}
}

// teammates returns the other members of the assignee's team.
func (s *TrackerService) teammates(ctx context.Context, assigneeID string) ([]persistence.Assignee, error) {
	if s.directory == nil {
		return nil, nil
	}
	assignee, err := s.directory.GetAssignee(ctx, assigneeID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load assignee %s: %w", assigneeID, err)
	}
	if assignee.TeamID == nil || *assignee.TeamID == "" {
		return nil, nil
	}
	members, err := s.directory.ListTeamMembers(ctx, *assignee.TeamID)
	if err != nil {
		return nil, fmt.Errorf("list team %s: %w", *assignee.TeamID, err)
	}
	others := make([]persistence.Assignee, 0, len(members))
	for _, member := range members {
		if member.ID != assigneeID {
			others = append(others, member)
		}
	}
	return others, nil
}

// stamp records a tracker timestamp. Losing the compare-and-set means a
// concurrent scan already recorded it, which is not an error.
func (s *TrackerService) stamp(ctx context.Context, trackerID string, field persistence.TrackerField, at time.Time) error {
	err := s.trackers.SetTrackerTimestamp(ctx, trackerID, field, at)
	if err == nil || errors.Is(err, persistence.ErrConflict) {
		return nil
	}
	return fmt.Errorf("stamp tracker %s: %w", trackerID, mapRepoError(err))
}
