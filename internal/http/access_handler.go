package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/villaclean/bookingcore/internal/application"
)

var errSeriesUnavailable = errors.New("series service is not configured")

type accessService interface {
	Disclose(ctx context.Context, bookingID, viewerID string, now time.Time) (application.AccessView, error)
	SetAccessSecret(ctx context.Context, ownerID, propertyID, plaintext string) error
}

// AccessHandler serves property access instructions.
type AccessHandler struct {
	service   accessService
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

// NewAccessHandler constructs an access handler.
func NewAccessHandler(service accessService, now func() time.Time, logger *slog.Logger) *AccessHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &AccessHandler{service: service, now: now, responder: newResponder(base), logger: base}
}

func (h *AccessHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AccessHandler", operation, attrs...)
}

// Show handles GET /bookings/{id}/access for the booking's cleaner.
func (h *AccessHandler) Show(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.log(r.Context(), "Show", "error_kind", "bad_request").ErrorContext(r.Context(), "missing booking id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	viewerID, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Show", "booking_id", bookingID)
	view, err := h.service.Disclose(r.Context(), bookingID, viewerID, h.now())
	if err != nil {
		logger.WarnContext(r.Context(), "access disclosure failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAccessDTO(view))
}

// Update handles PUT /properties/{id}/access for the property owner.
func (h *AccessHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	propertyID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing property id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidProperty)
		return
	}

	var req accessSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "property_id", propertyID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode access secret", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	ownerID, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "property_id", propertyID)
	if err := h.service.SetAccessSecret(r.Context(), ownerID, propertyID, req.Instructions); err != nil {
		logger.ErrorContext(r.Context(), "access secret update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "access secret updated")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type accessSecretRequest struct {
	Instructions string `json:"instructions"`
}

type accessDTO struct {
	BookingID     string  `json:"booking_id"`
	ReferenceCode string  `json:"reference_code"`
	CanView       bool    `json:"can_view"`
	Instructions  string  `json:"instructions,omitempty"`
	AvailableAt   *string `json:"available_at,omitempty"`
}

func toAccessDTO(view application.AccessView) accessDTO {
	dto := accessDTO{
		BookingID:     view.BookingID,
		ReferenceCode: view.ReferenceCode,
		CanView:       view.CanView,
		Instructions:  view.Instructions,
	}
	if view.AvailableAt != nil {
		at := view.AvailableAt.UTC().Format(time.RFC3339)
		dto.AvailableAt = &at
	}
	return dto
}
