package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/villaclean/bookingcore/internal/persistence"
)

type trackerRow struct {
	TrackerID      string         `db:"tracker_id"`
	BookingID      string         `db:"tracker_booking_id"`
	CreatedAt      string         `db:"tracker_created_at"`
	ReminderSentAt sql.NullString `db:"reminder_sent_at"`
	EscalatedAt    sql.NullString `db:"escalated_at"`
	AutoDeclinedAt sql.NullString `db:"auto_declined_at"`
	RespondedAt    sql.NullString `db:"responded_at"`
}

const trackerColumns = `t.id AS tracker_id, t.booking_id AS tracker_booking_id,
	t.created_at AS tracker_created_at, t.reminder_sent_at, t.escalated_at,
	t.auto_declined_at, t.responded_at`

func (r trackerRow) toModel() (persistence.ResponseTracker, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return persistence.ResponseTracker{}, err
	}
	tracker := persistence.ResponseTracker{ID: r.TrackerID, BookingID: r.BookingID, CreatedAt: createdAt}
	for _, field := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{r.ReminderSentAt, &tracker.ReminderSentAt},
		{r.EscalatedAt, &tracker.EscalatedAt},
		{r.AutoDeclinedAt, &tracker.AutoDeclinedAt},
		{r.RespondedAt, &tracker.RespondedAt},
	} {
		parsed, err := parseNullTime(field.src)
		if err != nil {
			return persistence.ResponseTracker{}, err
		}
		*field.dst = parsed
	}
	return tracker, nil
}

type trackedBookingRow struct {
	bookingRow
	trackerRow
}

func insertTracker(ctx context.Context, ext sqlx.ExtContext, tracker persistence.ResponseTracker) error {
	query := ext.Rebind(`INSERT INTO response_trackers (
		id, booking_id, created_at, reminder_sent_at, escalated_at, auto_declined_at, responded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := ext.ExecContext(ctx, query,
		tracker.ID,
		tracker.BookingID,
		formatTime(tracker.CreatedAt),
		formatNullTime(tracker.ReminderSentAt),
		formatNullTime(tracker.EscalatedAt),
		formatNullTime(tracker.AutoDeclinedAt),
		formatNullTime(tracker.RespondedAt),
	)
	return mapError(err)
}

// ListLiveTrackers returns trackers still awaiting a response, oldest first.
func (s *Store) ListLiveTrackers(ctx context.Context) ([]persistence.TrackedBooking, error) {
	query := `SELECT ` + trackerColumns + `, ` + bookingColumns + `
		FROM response_trackers t
		JOIN bookings b ON b.id = t.booking_id
		WHERE t.responded_at IS NULL AND t.auto_declined_at IS NULL
		ORDER BY t.created_at ASC, t.id ASC`

	var rows []trackedBookingRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, mapError(err)
	}

	tracked := make([]persistence.TrackedBooking, 0, len(rows))
	for _, row := range rows {
		tracker, err := row.trackerRow.toModel()
		if err != nil {
			return nil, err
		}
		booking, err := row.bookingRow.toModel()
		if err != nil {
			return nil, err
		}
		tracked = append(tracked, persistence.TrackedBooking{Tracker: tracker, Booking: booking})
	}
	return tracked, nil
}

// GetTrackerByBooking loads the tracker attached to a booking.
func (s *Store) GetTrackerByBooking(ctx context.Context, bookingID string) (persistence.ResponseTracker, error) {
	var row trackerRow
	query := s.db.Rebind(`SELECT ` + trackerColumns + ` FROM response_trackers t WHERE t.booking_id = ?`)
	if err := s.db.GetContext(ctx, &row, query, bookingID); err != nil {
		return persistence.ResponseTracker{}, mapError(err)
	}
	return row.toModel()
}

// SetTrackerTimestamp sets one escalation timestamp if it is still null.
func (s *Store) SetTrackerTimestamp(ctx context.Context, trackerID string, field persistence.TrackerField, at time.Time) error {
	column, err := trackerColumn(field)
	if err != nil {
		return err
	}

	query := s.db.Rebind(fmt.Sprintf(`UPDATE response_trackers SET %[1]s = ? WHERE id = ? AND %[1]s IS NULL`, column))
	result, err := s.db.ExecContext(ctx, query, formatTime(at), trackerID)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT 1 FROM response_trackers WHERE id = ?`), trackerID); err != nil {
		return mapError(err)
	}
	return persistence.ErrConflict
}

func trackerColumn(field persistence.TrackerField) (string, error) {
	switch field {
	case persistence.TrackerReminderSent:
		return "reminder_sent_at", nil
	case persistence.TrackerEscalated:
		return "escalated_at", nil
	case persistence.TrackerAutoDeclined:
		return "auto_declined_at", nil
	case persistence.TrackerResponded:
		return "responded_at", nil
	default:
		return "", fmt.Errorf("sqlstore: unknown tracker field %d", field)
	}
}
