package assessment

import (
	"fmt"
	"strings"
	"time"
)

// Action names a recommendation variant on the wire.
type Action string

const (
	ActionKeepGrinding        Action = "keep_grinding"
	ActionBriefTip            Action = "brief_tip"
	ActionTargetedInstruction Action = "targeted_instruction"
	ActionGoBack              Action = "go_back"
	ActionTakeBreak           Action = "take_break"
	ActionWarmup              Action = "warmup"
)

// Recommendation is the single next action for the tutor. The set of variants
// is closed; switch on the concrete type and treat anything else as a bug.
type Recommendation interface {
	Action() Action
	// Detail is a one-line human readable explanation.
	Detail() string
	recommendation()
}

// KeepGrinding means stay on the topic.
type KeepGrinding struct {
	// ProductiveFailure is set when the learner is working through a small
	// number of computational slips and should retry without help.
	ProductiveFailure bool  `json:"productive_failure,omitempty"`
	RaiseDifficulty   bool  `json:"raise_difficulty"`
	StretchLevel      Level `json:"stretch_level"`
}

// BriefTip means repeated computational slips; give a short hint.
type BriefTip struct {
	ErrorType ErrorType `json:"error_type"`
	Streak    int       `json:"streak"`
}

// TargetedInstruction means a structural or conceptual gap needs teaching.
type TargetedInstruction struct {
	ErrorType      ErrorType `json:"error_type"`
	Misconceptions []string  `json:"misconceptions,omitempty"`
}

// GoBack means a prerequisite should be reviewed first.
type GoBack struct {
	Prerequisite string  `json:"prerequisite"`
	Mastery      float64 `json:"prerequisite_mastery"`
}

// TakeBreak means the learner should rest.
type TakeBreak struct {
	Reason     string  `json:"reason"`
	Urgency    Urgency `json:"urgency"`
	MinMinutes int     `json:"min_minutes"`
	MaxMinutes int     `json:"max_minutes"`
}

// Warmup means the learner is back from a break; start below the current
// level.
type Warmup struct {
	Level Level `json:"level"`
}

func (KeepGrinding) Action() Action        { return ActionKeepGrinding }
func (BriefTip) Action() Action            { return ActionBriefTip }
func (TargetedInstruction) Action() Action { return ActionTargetedInstruction }
func (GoBack) Action() Action              { return ActionGoBack }
func (TakeBreak) Action() Action           { return ActionTakeBreak }
func (Warmup) Action() Action              { return ActionWarmup }

func (KeepGrinding) recommendation()        {}
func (BriefTip) recommendation()            {}
func (TargetedInstruction) recommendation() {}
func (GoBack) recommendation()              {}
func (TakeBreak) recommendation()           {}
func (Warmup) recommendation()              {}

func (r KeepGrinding) Detail() string {
	switch {
	case r.ProductiveFailure:
		return "Small slip. Let the learner try again without a hint."
	case r.RaiseDifficulty:
		return fmt.Sprintf("Strong mastery. Move up to %s-level questions.", r.StretchLevel)
	default:
		return "Keep practicing at the current level."
	}
}

func (r BriefTip) Detail() string {
	return fmt.Sprintf("%d computational slips in a row. Offer a short tip on the step that keeps going wrong.", r.Streak)
}

func (r TargetedInstruction) Detail() string {
	d := fmt.Sprintf("A %s error. Re-teach the idea before more practice.", r.ErrorType)
	if len(r.Misconceptions) > 0 {
		d += " Open misconceptions: " + strings.Join(r.Misconceptions, "; ") + "."
	}
	return d
}

func (r GoBack) Detail() string {
	return fmt.Sprintf("Review prerequisite %q (mastery %.0f%%) before continuing.", r.Prerequisite, r.Mastery*100)
}

func (r TakeBreak) Detail() string {
	return fmt.Sprintf("Take a %d-%d minute break: %s.", r.MinMinutes, r.MaxMinutes, r.Reason)
}

func (r Warmup) Detail() string {
	return fmt.Sprintf("Back from a break. Start with an easy %s-level question.", r.Level)
}

// Envelope is the wire form of a recommendation.
type Envelope struct {
	Action Action         `json:"action"`
	Detail string         `json:"detail"`
	Params Recommendation `json:"params"`
}

// Wrap returns the wire form of r.
func Wrap(r Recommendation) Envelope {
	return Envelope{Action: r.Action(), Detail: r.Detail(), Params: r}
}

// Candidate is a prerequisite topic and the learner's mastery of it.
type Candidate struct {
	Topic   string  `json:"topic"`
	Mastery float64 `json:"mastery"`
}

// Context carries what Recommend needs beyond the topic state.
type Context struct {
	Now time.Time
	// Prerequisites lists the topic's prerequisites by distance in the
	// unified graph: layer 0 holds the direct prerequisites, layer 1 their
	// prerequisites, and so on. Order within a layer is the graph's order.
	Prerequisites [][]Candidate
}

// Recommend returns the one next action for ts. It does not modify ts.
func Recommend(ts *TopicState, c Context, p Policy) Recommendation {
	if ts.WarmupPending {
		return Warmup{Level: warmupLevel(ts.Level)}
	}

	if sig := DetectBreak(SignalsAt(ts, c.Now), p); sig.Needed {
		lo, hi := sig.Urgency.Minutes()
		return TakeBreak{Reason: sig.Reason, Urgency: sig.Urgency, MinMinutes: lo, MaxMinutes: hi}
	}

	last, ok := ts.LastAttempt()
	if ok && !last.Correct {
		// Computational slips within the tolerance are left alone, even when
		// a weak prerequisite exists.
		if ProductiveFailure(ts, p) {
			return KeepGrinding{ProductiveFailure: true, StretchLevel: ts.Level.Up(1)}
		}

		if ts.Mastery < p.MasteryFloor && ts.ConsecutiveErrors >= p.GoBackMinErrors {
			if cand, found := weakestPrerequisite(c.Prerequisites, p.AdvanceMastery); found {
				return GoBack{Prerequisite: cand.Topic, Mastery: cand.Mastery}
			}
		}

		if last.ErrorType == ErrorComputational {
			return BriefTip{ErrorType: ErrorComputational, Streak: ts.SameError.Count}
		}
		return TargetedInstruction{
			ErrorType:      last.ErrorType,
			Misconceptions: ts.UnresolvedMisconceptions(),
		}
	}

	return KeepGrinding{
		RaiseDifficulty: ts.Mastery >= p.AdvanceMastery,
		StretchLevel:    ts.Level.Up(1),
	}
}

// ProductiveFailure reports whether the latest attempt is a computational
// slip still inside the productive-failure threshold.
func ProductiveFailure(ts *TopicState, p Policy) bool {
	last, ok := ts.LastAttempt()
	return ok && !last.Correct &&
		last.ErrorType == ErrorComputational &&
		ts.SameError.Type == ErrorComputational &&
		ts.SameError.Count <= p.ProductiveFailureThreshold
}

// weakestPrerequisite picks the lowest-mastery unresolved prerequisite from
// the nearest layer that has one. Ties go to the first listed.
func weakestPrerequisite(layers [][]Candidate, resolved float64) (Candidate, bool) {
	for _, layer := range layers {
		var best Candidate
		found := false
		for _, cand := range layer {
			if cand.Mastery >= resolved {
				continue
			}
			if !found || cand.Mastery < best.Mastery {
				best, found = cand, true
			}
		}
		if found {
			return best, true
		}
	}
	return Candidate{}, false
}

func warmupLevel(l Level) Level {
	if l == Remember {
		return Remember
	}
	return l.Up(-1)
}

// Advance returns the tracked level after attempt a. A correct answer above
// the current level raises it; nothing lowers it.
func Advance(current Level, a Attempt) Level {
	if a.Correct && a.BloomLevel > current {
		return a.BloomLevel
	}
	return current
}
