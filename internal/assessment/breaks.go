package assessment

import (
	"fmt"
	"time"
)

// Urgency ranks how strongly a break is suggested.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Minutes returns the suggested break length range for u.
func (u Urgency) Minutes() (lo, hi int) {
	switch u {
	case UrgencyHigh:
		return 10, 15
	case UrgencyMedium:
		return 5, 10
	default:
		return 3, 5
	}
}

// BreakSignals are the inputs to the break detector. They are extracted from
// a TopicState by SignalsAt but may be built directly in tests.
type BreakSignals struct {
	ConsecutiveErrors int
	Trajectory        Trajectory

	// SinceLastBreak is meaningful only when HadBreak is true.
	HadBreak       bool
	SinceLastBreak time.Duration

	// SinceActive is the time since the later of session start and the last
	// break. Zero when no session is running.
	SinceActive time.Duration
}

// SignalsAt extracts the break detector inputs from ts at time now.
func SignalsAt(ts *TopicState, now time.Time) BreakSignals {
	s := BreakSignals{
		ConsecutiveErrors: ts.ConsecutiveErrors,
		Trajectory:        ts.Trajectory,
	}

	active := ts.SessionStartedAt
	if last, ok := ts.LastBreak(); ok {
		s.HadBreak = true
		s.SinceLastBreak = now.Sub(last)
		if last.After(active) {
			active = last
		}
	}
	if !ts.SessionStartedAt.IsZero() && now.After(active) {
		s.SinceActive = now.Sub(active)
	}
	return s
}

// BreakSignal is the detector's verdict.
type BreakSignal struct {
	Needed  bool    `json:"needed"`
	Reason  string  `json:"reason,omitempty"`
	Urgency Urgency `json:"urgency,omitempty"`
}

// DetectBreak applies the break rules in priority order; the first match wins.
// A break inside the cooldown is never suggested.
func DetectBreak(s BreakSignals, p Policy) BreakSignal {
	if s.HadBreak && s.SinceLastBreak < p.BreakCooldown {
		return BreakSignal{}
	}

	if s.Trajectory == TrajectoryDeclining && s.ConsecutiveErrors >= p.DecliningErrorStreak {
		return BreakSignal{
			Needed:  true,
			Reason:  fmt.Sprintf("errors growing more fundamental (%d wrong in a row)", s.ConsecutiveErrors),
			Urgency: UrgencyHigh,
		}
	}
	if s.ConsecutiveErrors >= p.ErrorStreakLimit {
		return BreakSignal{
			Needed:  true,
			Reason:  fmt.Sprintf("error streak without recovery (%d wrong in a row)", s.ConsecutiveErrors),
			Urgency: UrgencyMedium,
		}
	}
	if s.SinceActive > p.FatigueAfter {
		return BreakSignal{
			Needed:  true,
			Reason:  fmt.Sprintf("extended session without rest (%d minutes)", int(s.SinceActive.Minutes())),
			Urgency: UrgencyMedium,
		}
	}
	return BreakSignal{}
}
