// Package notify delivers outbound messages to assignees and requesters.
//
// Delivery is best effort: callers send after their state change has
// committed and only log a failed Send.
package notify

import (
	"context"
	"log/slog"
)

// Kind classifies an outbound message.
type Kind string

const (
	KindRequested      Kind = "booking.requested"
	KindReminder       Kind = "booking.reminder"
	KindEscalated      Kind = "booking.escalated"
	KindCoverageOffer  Kind = "booking.coverage_offer"
	KindAutoDeclined   Kind = "booking.auto_declined"
	KindAccepted       Kind = "booking.accepted"
	KindDeclined       Kind = "booking.declined"
	KindDisambiguation Kind = "command.disambiguation"
	KindHelp           Kind = "command.help"
	KindCompleted      Kind = "booking.completed"
)

// Message is one outbound notification.
type Message struct {
	RecipientID   string `json:"recipient_id"`
	Kind          Kind   `json:"kind"`
	BookingID     string `json:"booking_id,omitempty"`
	ReferenceCode string `json:"reference_code,omitempty"`
	Body          string `json:"body"`
}

// Notifier sends messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to a logger instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs at info level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// Send implements Notifier.
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "notification",
		"recipient_id", msg.RecipientID,
		"kind", string(msg.Kind),
		"booking_id", msg.BookingID,
		"reference_code", msg.ReferenceCode,
	)
	return nil
}
