package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/villaclean/bookingcore/internal/persistence"
)

// memoryStore is an in-memory implementation of the persistence repositories
// with the same compare-and-set semantics as the SQL store.
type memoryStore struct {
	mu         sync.Mutex
	bookings   map[string]persistence.Booking
	trackers   map[string]persistence.ResponseTracker
	assignees  map[string]persistence.Assignee
	properties map[string]persistence.Property
	ledger     map[string]persistence.InboundMessage

	transitions      int
	transitionErr    map[string]error
	beforeTransition func(id string)
	stampErr         map[string]error
	listErr          error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		bookings:      make(map[string]persistence.Booking),
		trackers:      make(map[string]persistence.ResponseTracker),
		assignees:     make(map[string]persistence.Assignee),
		properties:    make(map[string]persistence.Property),
		ledger:        make(map[string]persistence.InboundMessage),
		transitionErr: make(map[string]error),
		stampErr:      make(map[string]error),
	}
}

func (m *memoryStore) addAssignee(a persistence.Assignee) { m.assignees[a.ID] = a }

func (m *memoryStore) addProperty(p persistence.Property) { m.properties[p.ID] = p }

func (m *memoryStore) addBooking(b persistence.Booking) { m.bookings[b.ID] = b }

func (m *memoryStore) addTracker(t persistence.ResponseTracker) { m.trackers[t.ID] = t }

func (m *memoryStore) booking(id string) persistence.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memoryStore) trackerFor(bookingID string) persistence.ResponseTracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trackers {
		if t.BookingID == bookingID {
			return t
		}
	}
	return persistence.ResponseTracker{}
}

func (m *memoryStore) CreateBooking(_ context.Context, b persistence.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertBookingLocked(b)
}

func (m *memoryStore) insertBookingLocked(b persistence.Booking) error {
	if _, ok := m.bookings[b.ID]; ok {
		return fmt.Errorf("booking id: %w", persistence.ErrDuplicate)
	}
	for _, existing := range m.bookings {
		if existing.ReferenceCode == b.ReferenceCode {
			return fmt.Errorf("reference code: %w", persistence.ErrDuplicate)
		}
	}
	m.bookings[b.ID] = b
	return nil
}

func (m *memoryStore) CreateBookingWithTracker(_ context.Context, b persistence.Booking, t persistence.ResponseTracker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertBookingLocked(b); err != nil {
		return err
	}
	t.BookingID = b.ID
	m.trackers[t.ID] = t
	return nil
}

func (m *memoryStore) GetBooking(_ context.Context, id string) (persistence.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

func (m *memoryStore) ListBookings(_ context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []persistence.Booking
	for _, b := range m.bookings {
		if filter.AssigneeID != "" && b.AssigneeID != filter.AssigneeID {
			continue
		}
		if filter.PropertyID != "" && b.PropertyID != filter.PropertyID {
			continue
		}
		if filter.SeriesGroupID != "" && (b.SeriesGroupID == nil || *b.SeriesGroupID != filter.SeriesGroupID) {
			continue
		}
		if filter.ReferenceCode != "" && b.ReferenceCode != filter.ReferenceCode {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, b.Status) {
			continue
		}
		if filter.SeriesHeads && !b.IsSeriesHead() {
			continue
		}
		if filter.SeriesStatus != persistence.SeriesStatusNone && b.SeriesStatus != filter.SeriesStatus {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledDate != out[j].ScheduledDate {
			return out[i].ScheduledDate < out[j].ScheduledDate
		}
		if out[i].TimeOfDay != out[j].TimeOfDay {
			return out[i].TimeOfDay < out[j].TimeOfDay
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func containsStatus(statuses []persistence.BookingStatus, status persistence.BookingStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (m *memoryStore) TransitionBooking(_ context.Context, id, assigneeID string, from, to persistence.BookingStatus, at time.Time) error {
	if m.beforeTransition != nil {
		m.beforeTransition(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transitionErr[id]; err != nil {
		return err
	}
	b, ok := m.bookings[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if b.Status != from || (assigneeID != "" && b.AssigneeID != assigneeID) {
		return persistence.ErrConflict
	}
	b.Status = to
	b.UpdatedAt = at
	m.bookings[id] = b
	m.transitions++
	return nil
}

func (m *memoryStore) UpdateSeriesStatus(_ context.Context, headID string, status persistence.SeriesStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[headID]
	if !ok {
		return persistence.ErrNotFound
	}
	if !b.IsSeriesHead() {
		return persistence.ErrConflict
	}
	b.SeriesStatus = status
	b.UpdatedAt = at
	m.bookings[headID] = b
	return nil
}

func (m *memoryStore) MarkSkipped(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if b.Status != persistence.BookingStatusPending || b.Skipped {
		return persistence.ErrConflict
	}
	b.Skipped = true
	b.UpdatedAt = at
	m.bookings[id] = b
	return nil
}

func (m *memoryStore) ListLiveTrackers(_ context.Context) ([]persistence.TrackedBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []persistence.TrackedBooking
	for _, t := range m.trackers {
		if !t.Live() {
			continue
		}
		out = append(out, persistence.TrackedBooking{Tracker: t, Booking: m.bookings[t.BookingID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Tracker.CreatedAt.Equal(out[j].Tracker.CreatedAt) {
			return out[i].Tracker.CreatedAt.Before(out[j].Tracker.CreatedAt)
		}
		return out[i].Tracker.ID < out[j].Tracker.ID
	})
	return out, nil
}

func (m *memoryStore) GetTrackerByBooking(_ context.Context, bookingID string) (persistence.ResponseTracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trackers {
		if t.BookingID == bookingID {
			return t, nil
		}
	}
	return persistence.ResponseTracker{}, persistence.ErrNotFound
}

func (m *memoryStore) SetTrackerTimestamp(_ context.Context, trackerID string, field persistence.TrackerField, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stampErr[trackerID]; err != nil {
		return err
	}
	t, ok := m.trackers[trackerID]
	if !ok {
		return persistence.ErrNotFound
	}
	var slot **time.Time
	switch field {
	case persistence.TrackerReminderSent:
		slot = &t.ReminderSentAt
	case persistence.TrackerEscalated:
		slot = &t.EscalatedAt
	case persistence.TrackerAutoDeclined:
		slot = &t.AutoDeclinedAt
	case persistence.TrackerResponded:
		slot = &t.RespondedAt
	default:
		return fmt.Errorf("unknown field %d", field)
	}
	if *slot != nil {
		return persistence.ErrConflict
	}
	stamped := at
	*slot = &stamped
	m.trackers[trackerID] = t
	return nil
}

func (m *memoryStore) GetAssignee(_ context.Context, id string) (persistence.Assignee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignees[id]
	if !ok {
		return persistence.Assignee{}, persistence.ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) GetAssigneeByPhone(_ context.Context, phone string) (persistence.Assignee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignees {
		if a.Phone == phone {
			return a, nil
		}
	}
	return persistence.Assignee{}, persistence.ErrNotFound
}

func (m *memoryStore) ListTeamMembers(_ context.Context, teamID string) ([]persistence.Assignee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []persistence.Assignee
	for _, a := range m.assignees {
		if a.TeamID != nil && *a.TeamID == teamID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) GetRequester(_ context.Context, id string) (persistence.Requester, error) {
	return persistence.Requester{ID: id}, nil
}

func (m *memoryStore) GetProperty(_ context.Context, id string) (persistence.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return persistence.Property{}, persistence.ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) UpdatePropertySecret(_ context.Context, id, sealed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return persistence.ErrNotFound
	}
	p.AccessSecret = sealed
	m.properties[id] = p
	return nil
}

func (m *memoryStore) ClaimMessage(_ context.Context, msg persistence.InboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ledger[msg.MessageID]; ok {
		return fmt.Errorf("claim: %w", persistence.ErrDuplicate)
	}
	m.ledger[msg.MessageID] = msg
	return nil
}

// sequentialIDs returns an id generator yielding prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// sequentialCodes returns a reference code generator yielding distinct codes.
func sequentialCodes() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("C%03d", n), nil
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }
