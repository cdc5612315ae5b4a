package assessment

import (
	"strings"
	"time"

	"github.com/abhisek/tutord/internal/errs"
)

// RecordAttempt appends a to ts and recomputes every derived field. Severity
// is always derived here. A wrong answer with no error type is recorded as
// structural; a correct answer never carries an error type.
func RecordAttempt(ts *TopicState, a Attempt, p Policy) {
	if a.Correct {
		a.ErrorType = ErrorNone
	} else if a.ErrorType == "" || a.ErrorType == ErrorNone {
		a.ErrorType = ErrorStructural
	}
	a.Severity = Severity(a.ErrorType, a.Correct)

	ts.Attempts = append(ts.Attempts, a)
	if over := len(ts.Attempts) - p.RetentionWindow; over > 0 {
		ts.Attempts = append([]Attempt(nil), ts.Attempts[over:]...)
	}

	if a.Correct {
		ts.ConsecutiveErrors = 0
		ts.SameError = ErrorStreak{}
		ts.WarmupPending = false
	} else {
		ts.ConsecutiveErrors++
		if ts.SameError.Type == a.ErrorType {
			ts.SameError.Count++
		} else {
			ts.SameError = ErrorStreak{Type: a.ErrorType, Count: 1}
		}
		if a.ErrorType == ErrorComputational {
			ts.ProductiveFailures++
		}
	}

	ts.Level = Advance(ts.Level, a)
	ts.Mastery = Mastery(ts.Attempts, p)
	ts.Trajectory = ComputeTrajectory(ts.Severities(), p)
}

// RecordBreak appends now to the break log and arms the post-break warmup.
// It reports false and changes nothing when now falls inside the cooldown of
// the previous break or precedes it.
func RecordBreak(ts *TopicState, now time.Time, p Policy) bool {
	if last, ok := ts.LastBreak(); ok {
		if now.Before(last) || now.Sub(last) < p.BreakCooldown {
			return false
		}
	}
	ts.BreakLog = append(ts.BreakLog, now)
	ts.WarmupPending = true
	ts.ConsecutiveErrors = 0
	return true
}

// StartSession marks the start of a practice session on the topic. The error
// streak from a previous session does not carry over.
func StartSession(ts *TopicState, now time.Time) {
	ts.SessionStartedAt = now
	ts.ConsecutiveErrors = 0
}

// EndSession marks the practice session on the topic as over. Fatigue is
// not tracked again until the next StartSession.
func EndSession(ts *TopicState) {
	ts.SessionStartedAt = time.Time{}
}

func sameDescription(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// RecordMisconception notes that the learner showed the confusion described.
// An open entry with the same description is bumped; a resolved one is left
// alone and a fresh open entry is added. It returns the entry's observation
// count.
func RecordMisconception(ts *TopicState, description string, now time.Time) (int, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return 0, errs.InvalidInput("misconception description is empty")
	}
	for i := range ts.Misconceptions {
		m := &ts.Misconceptions[i]
		if !m.Resolved && sameDescription(m.Description, description) {
			m.TimesObserved++
			m.LastSeen = now
			return m.TimesObserved, nil
		}
	}
	ts.Misconceptions = append(ts.Misconceptions, Misconception{
		Description:   description,
		TimesObserved: 1,
		FirstSeen:     now,
		LastSeen:      now,
	})
	return 1, nil
}

// ResolveMisconception closes the open entry matching description. It
// reports false when the only matches are already resolved, and fails with
// not-found when nothing matches at all.
func ResolveMisconception(ts *TopicState, description string, now time.Time) (bool, error) {
	seen := false
	for i := range ts.Misconceptions {
		m := &ts.Misconceptions[i]
		if !sameDescription(m.Description, description) {
			continue
		}
		seen = true
		if !m.Resolved {
			m.Resolved = true
			at := now
			m.ResolvedAt = &at
			return true, nil
		}
	}
	if !seen {
		return false, errs.NotFound("misconception %q", description)
	}
	return false, nil
}
