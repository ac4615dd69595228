package sqlstore

import (
	"context"
	"fmt"

	"github.com/villaclean/bookingcore/internal/persistence"
)

// ClaimMessage records an inbound message id. The primary key makes the
// insert a compare-and-swap: a second claim fails with ErrDuplicate.
func (s *Store) ClaimMessage(ctx context.Context, message persistence.InboundMessage) error {
	if message.MessageID == "" {
		return fmt.Errorf("sqlstore: message id is required")
	}
	query := s.db.Rebind(`INSERT INTO inbound_messages (message_id, sender, received_at) VALUES (?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, message.MessageID, message.Sender, formatTime(message.ReceivedAt))
	return mapError(err)
}
