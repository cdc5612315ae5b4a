// Package assessment is the decision core of a tutoring session. It turns a
// topic's attempt history into a mastery estimate, a trajectory, a ZPD window,
// a break signal, and one recommended next action. Nothing in this package
// performs I/O or reads the wall clock; callers pass "now" explicitly.
package assessment

import (
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/tutord/internal/errs"
)

// Level is a stage of Bloom's taxonomy. Levels are ordered; a higher value is
// a harder cognitive task.
type Level int

const (
	Remember Level = iota
	Understand
	Apply
	Analyze
	Evaluate
	Create
)

var levelNames = [...]string{"remember", "understand", "apply", "analyze", "evaluate", "create"}

// AllLevels returns every level in ascending order.
func AllLevels() []Level {
	return []Level{Remember, Understand, Apply, Analyze, Evaluate, Create}
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is one of the six taxonomy stages.
func (l Level) Valid() bool {
	return l >= Remember && l <= Create
}

// Up returns the level n stages above l, clamped at Create.
func (l Level) Up(n int) Level {
	next := l + Level(n)
	if next > Create {
		return Create
	}
	if next < Remember {
		return Remember
	}
	return next
}

// ParseLevel parses a level name, ignoring case and surrounding whitespace.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return 0, errs.InvalidInput("unknown bloom level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, errs.InvalidInput("bloom level %d out of range", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ErrorType classifies a wrong answer by how fundamental the mistake was.
type ErrorType string

const (
	ErrorNone          ErrorType = "none"
	ErrorComputational ErrorType = "computational" // right method, slip in execution
	ErrorStructural    ErrorType = "structural"    // wrong method or setup
	ErrorConceptual    ErrorType = "conceptual"    // misunderstood the idea itself
)

// ParseErrorType parses an error type name. The empty string parses as
// ErrorNone.
func ParseErrorType(s string) (ErrorType, error) {
	switch et := ErrorType(strings.ToLower(strings.TrimSpace(s))); et {
	case "", ErrorNone:
		return ErrorNone, nil
	case ErrorComputational, ErrorStructural, ErrorConceptual:
		return et, nil
	default:
		return "", errs.InvalidInput("unknown error type %q", s)
	}
}

func (e *ErrorType) UnmarshalText(b []byte) error {
	parsed, err := ParseErrorType(string(b))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Trajectory is the short-term trend in error severity.
type Trajectory string

const (
	TrajectoryUnknown   Trajectory = "unknown"
	TrajectoryImproving Trajectory = "improving"
	TrajectoryFlat      Trajectory = "flat"
	TrajectoryDeclining Trajectory = "declining"
)

// Attempt is one answered question.
type Attempt struct {
	Timestamp  time.Time `json:"timestamp"`
	Correct    bool      `json:"correct"`
	ErrorType  ErrorType `json:"error_type"`
	BloomLevel Level     `json:"bloom_level"`
	// Severity is derived from ErrorType by RecordAttempt; any value supplied
	// by the caller is overwritten.
	Severity float64 `json:"severity"`

	QuestionID    string `json:"question_id,omitempty"`
	LearnerAnswer string `json:"learner_answer,omitempty"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
	ErrorStep     string `json:"error_step,omitempty"`
}

// Misconception is a topic-scoped confusion flagged by the caller.
type Misconception struct {
	Description   string     `json:"description"`
	TimesObserved int        `json:"times_observed"`
	Resolved      bool       `json:"resolved"`
	FirstSeen     time.Time  `json:"first_seen"`
	LastSeen      time.Time  `json:"last_seen"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// ErrorStreak counts consecutive wrong answers of a single error type.
type ErrorStreak struct {
	Type  ErrorType `json:"type"`
	Count int       `json:"count"`
}

// TopicState is everything the engine knows about one learner on one topic.
type TopicState struct {
	Attempts           []Attempt       `json:"attempts"`
	Mastery            float64         `json:"mastery"`
	Trajectory         Trajectory      `json:"trajectory"`
	Level              Level           `json:"bloom_level"`
	SameError          ErrorStreak     `json:"consecutive_same_error"`
	ConsecutiveErrors  int             `json:"consecutive_errors"`
	ProductiveFailures int             `json:"productive_failures"`
	Misconceptions     []Misconception `json:"misconceptions"`
	BreakLog           []time.Time     `json:"break_log"`
	WarmupPending      bool            `json:"post_break_warmup_pending"`
	SessionStartedAt   time.Time       `json:"session_started_at"`
}

// NewTopicState returns the state of a topic that has never been practiced.
func NewTopicState() *TopicState {
	return &TopicState{
		Level:      Remember,
		Trajectory: TrajectoryUnknown,
	}
}

// Clone returns a deep copy of ts.
func (ts *TopicState) Clone() *TopicState {
	c := *ts
	c.Attempts = append([]Attempt(nil), ts.Attempts...)
	c.BreakLog = append([]time.Time(nil), ts.BreakLog...)
	c.Misconceptions = make([]Misconception, len(ts.Misconceptions))
	for i, m := range ts.Misconceptions {
		if m.ResolvedAt != nil {
			at := *m.ResolvedAt
			m.ResolvedAt = &at
		}
		c.Misconceptions[i] = m
	}
	return &c
}

// LastAttempt returns the most recent attempt, if any.
func (ts *TopicState) LastAttempt() (Attempt, bool) {
	if len(ts.Attempts) == 0 {
		return Attempt{}, false
	}
	return ts.Attempts[len(ts.Attempts)-1], true
}

// LastBreak returns the most recently recorded break, if any.
func (ts *TopicState) LastBreak() (time.Time, bool) {
	if len(ts.BreakLog) == 0 {
		return time.Time{}, false
	}
	return ts.BreakLog[len(ts.BreakLog)-1], true
}

// UnresolvedMisconceptions returns descriptions of open misconceptions in
// the order they were first observed.
func (ts *TopicState) UnresolvedMisconceptions() []string {
	out := []string{}
	for _, m := range ts.Misconceptions {
		if !m.Resolved {
			out = append(out, m.Description)
		}
	}
	return out
}

// Severities returns the severity of every retained attempt, oldest first.
func (ts *TopicState) Severities() []float64 {
	out := make([]float64, len(ts.Attempts))
	for i, a := range ts.Attempts {
		out[i] = a.Severity
	}
	return out
}
