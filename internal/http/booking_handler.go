package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/villaclean/bookingcore/internal/application"
	"github.com/villaclean/bookingcore/internal/persistence"
)

type bookingService interface {
	RequestBooking(ctx context.Context, input application.RequestBookingInput) (persistence.Booking, error)
	CompleteBooking(ctx context.Context, assigneeID, bookingID string) error
}

type seriesService interface {
	PauseSeries(ctx context.Context, requesterID, headID string) error
	ResumeSeries(ctx context.Context, requesterID, headID string) error
	CancelSeries(ctx context.Context, requesterID, headID string) error
	SkipOccurrence(ctx context.Context, requesterID, bookingID string) error
}

// BookingHandler exposes booking requests, completion and series controls.
type BookingHandler struct {
	bookings  bookingService
	series    seriesService
	responder responder
	logger    *slog.Logger
}

// NewBookingHandler constructs a booking handler.
func NewBookingHandler(bookings bookingService, series seriesService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{bookings: bookings, series: series, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Create handles POST /bookings on behalf of the requesting villa owner.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requesterID, _ := PrincipalFromContext(r.Context())

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "assignee_id", req.AssigneeID, "property_id", req.PropertyID)
	booking, err := h.bookings.RequestBooking(r.Context(), req.toInput(requesterID))
	if err != nil {
		logger.ErrorContext(r.Context(), "booking request failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("booking_id", booking.ID).InfoContext(r.Context(), "booking requested")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: toBookingDTO(booking)})
}

// Complete handles POST /bookings/{id}/complete on behalf of the assignee.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, "Complete", func(ctx context.Context, principalID, bookingID string) error {
		return h.bookings.CompleteBooking(ctx, principalID, bookingID)
	})
}

// Skip handles POST /bookings/{id}/skip on behalf of the series owner.
func (h *BookingHandler) Skip(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, "Skip", func(ctx context.Context, principalID, bookingID string) error {
		if h.series == nil {
			return errSeriesUnavailable
		}
		return h.series.SkipOccurrence(ctx, principalID, bookingID)
	})
}

// SeriesAction handles POST /series/{id}/{pause|resume|cancel}.
func (h *BookingHandler) SeriesAction(w http.ResponseWriter, r *http.Request, action string) {
	if h == nil || h.series == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	headID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.log(r.Context(), "SeriesAction", "error_kind", "bad_request").ErrorContext(r.Context(), "missing series id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSeriesID)
		return
	}

	var op func(context.Context, string, string) error
	switch action {
	case "pause":
		op = h.series.PauseSeries
	case "resume":
		op = h.series.ResumeSeries
	case "cancel":
		op = h.series.CancelSeries
	default:
		http.NotFound(w, r)
		return
	}

	requesterID, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "SeriesAction", "head_id", headID, "action", action)
	if err := op(r.Context(), requesterID, headID); err != nil {
		logger.ErrorContext(r.Context(), "series action failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "series updated")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *BookingHandler) bookingAction(w http.ResponseWriter, r *http.Request, operation string, fn func(ctx context.Context, principalID, bookingID string) error) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing booking id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principalID, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "booking_id", bookingID)
	if err := fn(r.Context(), principalID, bookingID); err != nil {
		logger.ErrorContext(r.Context(), "booking action failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking action applied")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type bookingRequest struct {
	AssigneeID      string `json:"assignee_id"`
	PropertyID      string `json:"property_id"`
	ScheduledDate   string `json:"scheduled_date"`
	TimeOfDay       string `json:"time_of_day"`
	Service         string `json:"service"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes"`
	Frequency       string `json:"frequency"`
}

func (r bookingRequest) toInput(requesterID string) application.RequestBookingInput {
	return application.RequestBookingInput{
		RequesterID:     requesterID,
		AssigneeID:      strings.TrimSpace(r.AssigneeID),
		PropertyID:      strings.TrimSpace(r.PropertyID),
		ScheduledDate:   strings.TrimSpace(r.ScheduledDate),
		TimeOfDay:       strings.TrimSpace(r.TimeOfDay),
		Service:         strings.TrimSpace(r.Service),
		PriceCents:      r.PriceCents,
		DurationMinutes: r.DurationMinutes,
		Notes:           r.Notes,
		Frequency:       strings.TrimSpace(r.Frequency),
	}
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type bookingDTO struct {
	ID              string  `json:"id"`
	ReferenceCode   string  `json:"reference_code"`
	Status          string  `json:"status"`
	AssigneeID      string  `json:"assignee_id"`
	PropertyID      string  `json:"property_id"`
	ScheduledDate   string  `json:"scheduled_date"`
	TimeOfDay       string  `json:"time_of_day"`
	Service         string  `json:"service"`
	PriceCents      int64   `json:"price_cents"`
	DurationMinutes int     `json:"duration_minutes"`
	SeriesGroupID   *string `json:"series_group_id,omitempty"`
	SeriesFrequency string  `json:"series_frequency,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func toBookingDTO(b persistence.Booking) bookingDTO {
	return bookingDTO{
		ID:              b.ID,
		ReferenceCode:   b.ReferenceCode,
		Status:          b.Status.String(),
		AssigneeID:      b.AssigneeID,
		PropertyID:      b.PropertyID,
		ScheduledDate:   b.ScheduledDate,
		TimeOfDay:       b.TimeOfDay,
		Service:         b.Service,
		PriceCents:      b.PriceCents,
		DurationMinutes: b.DurationMinutes,
		SeriesGroupID:   b.SeriesGroupID,
		SeriesFrequency: b.SeriesFrequency.String(),
		CreatedAt:       b.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
