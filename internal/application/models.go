package application

import "time"

// ScanReport summarises one pass of the response tracker.
type ScanReport struct {
	Scanned      int
	Responded    int
	Reminded     int
	Escalated    int
	AutoDeclined int
	Failed       int
}

// TopUpReport summarises one pass of the series generator.
type TopUpReport struct {
	Series  int
	Created int
	Failed  int
}

// Outcome classifies how an inbound command was handled. Every outcome is
// acknowledged to the transport.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeDuplicate
	OutcomeUnknownSender
	OutcomeInvalid
	OutcomeNotFound
	OutcomeAmbiguous
	OutcomeConflict
	OutcomeAccepted
	OutcomeDeclined
)

var outcomeNames = map[Outcome]string{
	OutcomeDuplicate:     "duplicate",
	OutcomeUnknownSender: "unknown_sender",
	OutcomeInvalid:       "invalid",
	OutcomeNotFound:      "not_found",
	OutcomeAmbiguous:     "ambiguous",
	OutcomeConflict:      "conflict",
	OutcomeAccepted:      "accepted",
	OutcomeDeclined:      "declined",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// InboundCommand is a text message delivered by the messaging transport.
type InboundCommand struct {
	MessageID  string
	From       string
	Body       string
	ReceivedAt time.Time
}

// RequestBookingInput captures a requester's booking request.
type RequestBookingInput struct {
	RequesterID     string
	AssigneeID      string
	PropertyID      string
	ScheduledDate   string
	TimeOfDay       string
	Service         string
	PriceCents      int64
	DurationMinutes int
	Notes           string
	// Frequency is WEEKLY, FORTNIGHTLY or MONTHLY for a recurring series and
	// empty for a one-off booking.
	Frequency string
}

// AccessView is what a cleaner sees for a booking's access instructions.
type AccessView struct {
	BookingID     string
	ReferenceCode string
	CanView       bool
	Instructions  string
	AvailableAt   *time.Time
}
