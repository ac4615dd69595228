package escalation

import (
	"testing"
	"time"

	"github.com/villaclean/bookingcore/internal/persistence"
)

func ptr(t time.Time) *time.Time { return &t }

func TestDecide(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	thresholds := DefaultThresholds()

	cases := []struct {
		name    string
		tracker persistence.ResponseTracker
		pending bool
		age     time.Duration
		want    Action
	}{
		{name: "fresh request waits", age: 59 * time.Minute, pending: true, want: ActionNone},
		{name: "reminder due at one hour", age: time.Hour, pending: true, want: ActionRemind},
		{
			name:    "reminder not repeated",
			tracker: persistence.ResponseTracker{ReminderSentAt: ptr(created.Add(time.Hour))},
			age:     90 * time.Minute, pending: true, want: ActionNone,
		},
		{
			name:    "escalation due at two hours",
			tracker: persistence.ResponseTracker{ReminderSentAt: ptr(created.Add(time.Hour))},
			age:     121 * time.Minute, pending: true, want: ActionEscalate,
		},
		{name: "late discovery skips reminder", age: 150 * time.Minute, pending: true, want: ActionEscalate},
		{
			name:    "no reminder after escalation",
			tracker: persistence.ResponseTracker{EscalatedAt: ptr(created.Add(150 * time.Minute))},
			age:     3 * time.Hour, pending: true, want: ActionNone,
		},
		{name: "auto decline at six hours", age: 6 * time.Hour, pending: true, want: ActionAutoDecline},
		{name: "seven hours jumps straight to auto decline", age: 7 * time.Hour, pending: true, want: ActionAutoDecline},
		{name: "booking left pending", age: 3 * time.Hour, pending: false, want: ActionMarkResponded},
		{
			name:    "responded tracker is absorbing",
			tracker: persistence.ResponseTracker{RespondedAt: ptr(created.Add(time.Minute))},
			age:     7 * time.Hour, pending: true, want: ActionNone,
		},
		{
			name:    "auto declined tracker is finished",
			tracker: persistence.ResponseTracker{AutoDeclinedAt: ptr(created.Add(6 * time.Hour))},
			age:     8 * time.Hour, pending: false, want: ActionNone,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tracker := tc.tracker
			tracker.CreatedAt = created
			if got := Decide(tracker, tc.pending, created.Add(tc.age), thresholds); got != tc.want {
				t.Fatalf("Decide = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestStageOf(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		tracker persistence.ResponseTracker
		want    Stage
	}{
		{persistence.ResponseTracker{}, StageCreated},
		{persistence.ResponseTracker{ReminderSentAt: &at}, StageReminded},
		{persistence.ResponseTracker{ReminderSentAt: &at, EscalatedAt: &at}, StageEscalated},
		{persistence.ResponseTracker{AutoDeclinedAt: &at}, StageAutoDeclined},
		{persistence.ResponseTracker{EscalatedAt: &at, RespondedAt: &at}, StageResponded},
	}
	for _, tc := range cases {
		if got := StageOf(tc.tracker); got != tc.want {
			t.Errorf("StageOf(%+v) = %s, want %s", tc.tracker, got, tc.want)
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	t.Parallel()

	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds invalid: %v", err)
	}
	bad := Thresholds{Remind: 2 * time.Hour, Escalate: time.Hour, AutoDecline: 6 * time.Hour}
	if err := bad.Validate(); err != ErrInvalidThresholds {
		t.Fatalf("expected ErrInvalidThresholds, got %v", err)
	}
}
