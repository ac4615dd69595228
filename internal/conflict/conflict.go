// Package conflict detects cleaning visits that overlap in time.
package conflict

import (
	"sort"
	"time"

	"github.com/villaclean/bookingcore/internal/persistence"
)

// Visit is the time range a booking occupies.
type Visit struct {
	BookingID  string
	AssigneeID string
	PropertyID string
	Start      time.Time
	End        time.Time
}

// Type describes which resource two visits compete for.
type Type string

const (
	// TypeAssignee indicates the cleaner is double-booked.
	TypeAssignee Type = "assignee"
	// TypeProperty indicates two visits are booked at the same villa.
	TypeProperty Type = "property"
)

// Conflict is one overlap between the candidate and an existing visit.
type Conflict struct {
	WithBookingID string
	Type          Type
}

// minimumVisit is the length assumed for bookings without a duration.
const minimumVisit = time.Minute

// VisitOf converts a booking into the range it occupies in loc.
func VisitOf(b persistence.Booking, loc *time.Location) (Visit, error) {
	start, err := b.ScheduledAt(loc)
	if err != nil {
		return Visit{}, err
	}
	length := time.Duration(b.DurationMinutes) * time.Minute
	if length < minimumVisit {
		length = minimumVisit
	}
	return Visit{
		BookingID:  b.ID,
		AssigneeID: b.AssigneeID,
		PropertyID: b.PropertyID,
		Start:      start,
		End:        start.Add(length),
	}, nil
}

// Detect returns the conflicts between candidate and existing, ordered by
// booking id then type. Ranges are half-open, so back-to-back visits do not
// conflict.
func Detect(existing []Visit, candidate Visit) []Conflict {
	var conflicts []Conflict
	for _, visit := range existing {
		if visit.BookingID == candidate.BookingID || !overlaps(visit, candidate) {
			continue
		}
		if visit.AssigneeID != "" && visit.AssigneeID == candidate.AssigneeID {
			conflicts = append(conflicts, Conflict{WithBookingID: visit.BookingID, Type: TypeAssignee})
		}
		if visit.PropertyID != "" && visit.PropertyID == candidate.PropertyID {
			conflicts = append(conflicts, Conflict{WithBookingID: visit.BookingID, Type: TypeProperty})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].WithBookingID != conflicts[j].WithBookingID {
			return conflicts[i].WithBookingID < conflicts[j].WithBookingID
		}
		return conflicts[i].Type < conflicts[j].Type
	})
	return conflicts
}

func overlaps(a, b Visit) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}
