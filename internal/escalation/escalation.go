// Package escalation decides how an unanswered booking request escalates.
//
// A tracker moves strictly forward through CREATED, REMINDED, ESCALATED and
// AUTO_DECLINED as its age crosses the configured thresholds. RESPONDED is
// absorbing and is reached from any stage once the booking leaves PENDING.
// Decide only looks at the most severe threshold the tracker has reached, so a
// tracker first seen late jumps straight to that stage and never moves back to
// a milder one.
package escalation

import (
	"errors"
	"time"

	"github.com/villaclean/bookingcore/internal/persistence"
)

// Stage is the escalation stage of a tracker.
type Stage int

const (
	StageCreated Stage = iota
	StageReminded
	StageEscalated
	StageAutoDeclined
	StageResponded
)

func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "CREATED"
	case StageReminded:
		return "REMINDED"
	case StageEscalated:
		return "ESCALATED"
	case StageAutoDeclined:
		return "AUTO_DECLINED"
	case StageResponded:
		return "RESPONDED"
	default:
		return "UNKNOWN"
	}
}

// StageOf derives the stage from the tracker's timestamps.
func StageOf(tracker persistence.ResponseTracker) Stage {
	switch {
	case tracker.RespondedAt != nil:
		return StageResponded
	case tracker.AutoDeclinedAt != nil:
		return StageAutoDeclined
	case tracker.EscalatedAt != nil:
		return StageEscalated
	case tracker.ReminderSentAt != nil:
		return StageReminded
	default:
		return StageCreated
	}
}

// Action is the work a scan performs for one tracker.
type Action int

const (
	ActionNone Action = iota
	ActionMarkResponded
	ActionRemind
	ActionEscalate
	ActionAutoDecline
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionMarkResponded:
		return "mark_responded"
	case ActionRemind:
		return "remind"
	case ActionEscalate:
		return "escalate"
	case ActionAutoDecline:
		return "auto_decline"
	default:
		return "unknown"
	}
}

// ErrInvalidThresholds reports thresholds that are not strictly increasing.
var ErrInvalidThresholds = errors.New("escalation: thresholds must satisfy 0 < remind < escalate < auto-decline")

// Thresholds are the tracker ages at which each stage becomes due.
type Thresholds struct {
	Remind      time.Duration
	Escalate    time.Duration
	AutoDecline time.Duration
}

// DefaultThresholds returns the 1h / 2h / 6h escalation ladder.
func DefaultThresholds() Thresholds {
	return Thresholds{Remind: time.Hour, Escalate: 2 * time.Hour, AutoDecline: 6 * time.Hour}
}

// Validate checks the thresholds are strictly increasing and positive.
func (t Thresholds) Validate() error {
	if t.Remind <= 0 || t.Escalate <= t.Remind || t.AutoDecline <= t.Escalate {
		return ErrInvalidThresholds
	}
	return nil
}

// Decide returns the action a scan at now should take for tracker.
func Decide(tracker persistence.ResponseTracker, bookingPending bool, now time.Time, thresholds Thresholds) Action {
	if !tracker.Live() {
		return ActionNone
	}
	if !bookingPending {
		return ActionMarkResponded
	}

	age := now.Sub(tracker.CreatedAt)
	stage := StageOf(tracker)
	switch {
	case age >= thresholds.AutoDecline:
		return ActionAutoDecline
	case age >= thresholds.Escalate:
		if stage < StageEscalated {
			return ActionEscalate
		}
	case age >= thresholds.Remind:
		if stage < StageReminded {
			return ActionRemind
		}
	}
	return ActionNone
}
