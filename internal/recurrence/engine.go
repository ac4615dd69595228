package recurrence

import (
	"errors"
	"time"

	"github.com/villaclean/bookingcore/internal/persistence"
)

// ErrInvalidFrequency indicates the series frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidCount indicates a negative number of occurrences was requested.
var ErrInvalidCount = errors.New("recurrence: occurrence count must not be negative")

// Engine advances series anchors by their frequency step.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates calendar arithmetic in loc.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Location returns the time zone occurrences are generated in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// Step returns the instant n frequency steps after anchor. The time of day is
// preserved in the engine's location.
//
// Monthly steps are computed from the anchor rather than chained, and clamp
// to the last day of shorter months: Jan 31 steps to Feb 28/29, Mar 31, Apr 30.
func (e *Engine) Step(anchor time.Time, freq persistence.SeriesFrequency, n int) (time.Time, error) {
	anchor = anchor.In(e.Location())
	switch freq {
	case persistence.SeriesFrequencyWeekly:
		return anchor.AddDate(0, 0, 7*n), nil
	case persistence.SeriesFrequencyFortnightly:
		return anchor.AddDate(0, 0, 14*n), nil
	case persistence.SeriesFrequencyMonthly:
		return addMonthsClamped(anchor, n), nil
	case persistence.SeriesFrequencyNone:
		fallthrough
	default:
		return time.Time{}, ErrInvalidFrequency
	}
}

// Expand returns the count instants following anchor, i.e. Step(anchor, freq, i)
// for i = 1..count, in chronological order.
func (e *Engine) Expand(anchor time.Time, freq persistence.SeriesFrequency, count int) ([]time.Time, error) {
	if count < 0 {
		return nil, ErrInvalidCount
	}
	occurrences := make([]time.Time, 0, count)
	for i := 1; i <= count; i++ {
		next, err := e.Step(anchor, freq, i)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, next)
	}
	return occurrences, nil
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(firstOfTarget); d > last {
		d = last
	}
	return firstOfTarget.AddDate(0, 0, d-1)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
