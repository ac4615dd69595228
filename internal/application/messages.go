package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/villaclean/bookingcore/internal/command"
	"github.com/villaclean/bookingcore/internal/notify"
	"github.com/villaclean/bookingcore/internal/persistence"
)

func bookingMessage(kind notify.Kind, recipientID string, booking persistence.Booking, body string) notify.Message {
	return notify.Message{
		RecipientID:   recipientID,
		Kind:          kind,
		BookingID:     booking.ID,
		ReferenceCode: booking.ReferenceCode,
		Body:          body,
	}
}

func describe(b persistence.Booking) string {
	return fmt.Sprintf("%s on %s at %s (code %s)", b.Service, b.ScheduledDate, b.TimeOfDay, b.ReferenceCode)
}

func requestedBody(b persistence.Booking, clashes int) string {
	body := fmt.Sprintf("New request: %s. Reply ACCEPT %s or DECLINE %s.", describe(b), b.ReferenceCode, b.ReferenceCode)
	if clashes > 0 {
		body += fmt.Sprintf(" Note: this overlaps %d other visit(s) on your schedule or at this villa.", clashes)
	}
	return body
}

func reminderBody(b persistence.Booking) string {
	return fmt.Sprintf("Reminder: %s is waiting for your reply. Reply ACCEPT %s or DECLINE %s.", describe(b), b.ReferenceCode, b.ReferenceCode)
}

func escalatedBody(b persistence.Booking) string {
	return fmt.Sprintf("Urgent: %s still has no reply and has been escalated to your team. Reply ACCEPT %s or DECLINE %s.", describe(b), b.ReferenceCode, b.ReferenceCode)
}

func coverageBody(b persistence.Booking) string {
	return fmt.Sprintf("A teammate has not answered %s. Contact the office if you can cover it.", describe(b))
}

func autoDeclinedBody(b persistence.Booking) string {
	return fmt.Sprintf("%s was cancelled automatically because nobody replied in time.", describe(b))
}

func outcomeBody(b persistence.Booking, accepted bool) string {
	if accepted {
		return fmt.Sprintf("Confirmed: %s.", describe(b))
	}
	return fmt.Sprintf("Declined: %s.", describe(b))
}

func completedBody(b persistence.Booking) string {
	return fmt.Sprintf("Completed: %s.", describe(b))
}

func disambiguationBody(pending []persistence.Booking) string {
	var sb strings.Builder
	sb.WriteString("You have several pending requests. Reply with the code, e.g. ACCEPT ")
	sb.WriteString(pending[0].ReferenceCode)
	sb.WriteString(":")
	for _, b := range pending {
		sb.WriteString("\n")
		sb.WriteString(describe(b))
	}
	return sb.String()
}

func notFoundBody(code string) string {
	if code == "" {
		return "You have no pending booking requests."
	}
	return fmt.Sprintf("No pending booking with code %s.", code)
}

func helpBody() string {
	return command.Usage()
}

// deliver sends msg and logs a failure. Delivery never affects the state
// change it reports, so the error is not returned.
func deliver(ctx context.Context, logger *slog.Logger, notifier notify.Notifier, msg notify.Message) bool {
	if notifier == nil || msg.RecipientID == "" {
		return false
	}
	if err := notifier.Send(ctx, msg); err != nil {
		err = &TransportError{Op: "send " + string(msg.Kind), Err: err}
		logger.WarnContext(ctx, "notification failed",
			"recipient_id", msg.RecipientID,
			"kind", string(msg.Kind),
			"booking_id", msg.BookingID,
			"error", err,
			"error_kind", ErrorKind(err),
		)
		return false
	}
	return true
}
