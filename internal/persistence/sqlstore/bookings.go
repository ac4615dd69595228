package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/villaclean/bookingcore/internal/persistence"
)

const bookingColumns = `b.id, b.assignee_id, b.requester_id, b.property_id, b.status,
	b.scheduled_date, b.time_of_day, b.reference_code, b.service, b.price_cents,
	b.duration_minutes, b.notes, b.is_recurring, b.series_group_id, b.series_parent_id,
	b.series_frequency, b.series_status, b.skipped, b.created_at, b.updated_at`

type bookingRow struct {
	ID              string         `db:"id"`
	AssigneeID      string         `db:"assignee_id"`
	RequesterID     string         `db:"requester_id"`
	PropertyID      string         `db:"property_id"`
	Status          string         `db:"status"`
	ScheduledDate   string         `db:"scheduled_date"`
	TimeOfDay       string         `db:"time_of_day"`
	ReferenceCode   string         `db:"reference_code"`
	Service         string         `db:"service"`
	PriceCents      int64          `db:"price_cents"`
	DurationMinutes int            `db:"duration_minutes"`
	Notes           string         `db:"notes"`
	IsRecurring     bool           `db:"is_recurring"`
	SeriesGroupID   sql.NullString `db:"series_group_id"`
	SeriesParentID  sql.NullString `db:"series_parent_id"`
	SeriesFrequency string         `db:"series_frequency"`
	SeriesStatus    string         `db:"series_status"`
	Skipped         bool           `db:"skipped"`
	CreatedAt       string         `db:"created_at"`
	UpdatedAt       string         `db:"updated_at"`
}

func (r bookingRow) toModel() (persistence.Booking, error) {
	status, err := persistence.ParseBookingStatus(r.Status)
	if err != nil {
		return persistence.Booking{}, err
	}
	frequency, err := persistence.ParseSeriesFrequency(r.SeriesFrequency)
	if err != nil {
		return persistence.Booking{}, err
	}
	seriesStatus, err := persistence.ParseSeriesStatus(r.SeriesStatus)
	if err != nil {
		return persistence.Booking{}, err
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return persistence.Booking{}, err
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return persistence.Booking{}, err
	}
	return persistence.Booking{
		ID:              r.ID,
		AssigneeID:      r.AssigneeID,
		RequesterID:     r.RequesterID,
		PropertyID:      r.PropertyID,
		Status:          status,
		ScheduledDate:   r.ScheduledDate,
		TimeOfDay:       r.TimeOfDay,
		ReferenceCode:   r.ReferenceCode,
		Service:         r.Service,
		PriceCents:      r.PriceCents,
		DurationMinutes: r.DurationMinutes,
		Notes:           r.Notes,
		IsRecurring:     r.IsRecurring,
		SeriesGroupID:   stringPtr(r.SeriesGroupID),
		SeriesParentID:  stringPtr(r.SeriesParentID),
		SeriesFrequency: frequency,
		SeriesStatus:    seriesStatus,
		Skipped:         r.Skipped,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

func insertBooking(ctx context.Context, ext sqlx.ExtContext, booking persistence.Booking) error {
	query := ext.Rebind(`INSERT INTO bookings (
		id, assignee_id, requester_id, property_id, status, scheduled_date, time_of_day,
		reference_code, service, price_cents, duration_minutes, notes, is_recurring,
		series_group_id, series_parent_id, series_frequency, series_status, skipped,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := ext.ExecContext(ctx, query,
		booking.ID,
		booking.AssigneeID,
		booking.RequesterID,
		booking.PropertyID,
		booking.Status.String(),
		booking.ScheduledDate,
		booking.TimeOfDay,
		booking.ReferenceCode,
		booking.Service,
		booking.PriceCents,
		booking.DurationMinutes,
		booking.Notes,
		booking.IsRecurring,
		nullString(booking.SeriesGroupID),
		nullString(booking.SeriesParentID),
		booking.SeriesFrequency.String(),
		booking.SeriesStatus.String(),
		booking.Skipped,
		formatTime(booking.CreatedAt),
		formatTime(booking.UpdatedAt),
	)
	return mapError(err)
}

// CreateBooking inserts a booking.
func (s *Store) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.ReferenceCode == "" {
		return fmt.Errorf("sqlstore: booking id and reference code are required")
	}
	return insertBooking(ctx, s.db, booking)
}

// CreateBookingWithTracker inserts a booking and its response tracker in one transaction.
func (s *Store) CreateBookingWithTracker(ctx context.Context, booking persistence.Booking, tracker persistence.ResponseTracker) error {
	if booking.ID == "" || booking.ReferenceCode == "" || tracker.ID == "" {
		return fmt.Errorf("sqlstore: booking id, reference code and tracker id are required")
	}
	tracker.BookingID = booking.ID
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertBooking(ctx, tx, booking); err != nil {
			return err
		}
		return insertTracker(ctx, tx, tracker)
	})
}

// GetBooking loads a booking by id.
func (s *Store) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	var row bookingRow
	query := s.db.Rebind(`SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return row.toModel()
}

// ListBookings returns bookings matching filter ordered by schedule.
func (s *Store) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	clauses := make([]string, 0, 6)
	args := make([]any, 0, 6)

	if filter.AssigneeID != "" {
		clauses = append(clauses, "b.assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.PropertyID != "" {
		clauses = append(clauses, "b.property_id = ?")
		args = append(args, filter.PropertyID)
	}
	if filter.SeriesGroupID != "" {
		clauses = append(clauses, "b.series_group_id = ?")
		args = append(args, filter.SeriesGroupID)
	}
	if filter.ReferenceCode != "" {
		clauses = append(clauses, "b.reference_code = ?")
		args = append(args, filter.ReferenceCode)
	}
	if len(filter.Statuses) > 0 {
		names := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			names = append(names, status.String())
		}
		clauses = append(clauses, "b.status IN (?)")
		args = append(args, names)
	}
	if filter.SeriesHeads {
		clauses = append(clauses, "b.is_recurring = ? AND b.series_group_id IS NOT NULL AND b.series_parent_id IS NULL")
		args = append(args, true)
	}
	if filter.SeriesStatus != persistence.SeriesStatusNone {
		clauses = append(clauses, "b.series_status = ?")
		args = append(args, filter.SeriesStatus.String())
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings b`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY b.scheduled_date ASC, b.time_of_day ASC, b.id ASC"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: expand booking filter: %w", err)
	}

	var rows []bookingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}

	bookings := make([]persistence.Booking, 0, len(rows))
	for _, row := range rows {
		booking, err := row.toModel()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

// TransitionBooking performs a compare-and-set on the booking status.
func (s *Store) TransitionBooking(ctx context.Context, id, assigneeID string, from, to persistence.BookingStatus, at time.Time) error {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	args := []any{to.String(), formatTime(at), id, from.String()}
	if assigneeID != "" {
		query += " AND assignee_id = ?"
		args = append(args, assigneeID)
	}
	return s.execExpectingRow(ctx, id, query, args...)
}

// UpdateSeriesStatus changes the series status stored on a series head.
func (s *Store) UpdateSeriesStatus(ctx context.Context, headID string, status persistence.SeriesStatus, at time.Time) error {
	query := `UPDATE bookings SET series_status = ?, updated_at = ?
		WHERE id = ? AND is_recurring = ? AND series_parent_id IS NULL`
	return s.execExpectingRow(ctx, headID, query, status.String(), formatTime(at), headID, true)
}

// MarkSkipped flags a pending booking as a deliberate gap in its series.
func (s *Store) MarkSkipped(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE bookings SET skipped = ?, updated_at = ? WHERE id = ? AND status = ? AND skipped = ?`
	return s.execExpectingRow(ctx, id, query, true, formatTime(at), id, persistence.BookingStatusPending.String(), false)
}

// execExpectingRow runs an update and distinguishes a missing row
// (ErrNotFound) from a row in the wrong state (ErrConflict).
func (s *Store) execExpectingRow(ctx context.Context, id, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
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
	if err := s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT 1 FROM bookings WHERE id = ?`), id); err != nil {
		return mapError(err)
	}
	return persistence.ErrConflict
}
