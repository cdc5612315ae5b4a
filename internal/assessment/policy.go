package assessment

import (
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/tutord/internal/errs"
)

// Policy holds the numeric knobs of the engine. The zero value is not usable;
// start from DefaultPolicy.
type Policy struct {
	// RetentionWindow is how many attempts a topic keeps. Older attempts are
	// trimmed from the front.
	RetentionWindow int `mapstructure:"retention_window" json:"retention_window"`

	// MasteryWindow is how many recent attempts feed the mastery estimate.
	MasteryWindow int `mapstructure:"mastery_window" json:"mastery_window"`
	// MasteryDecay is the per-step weight multiplier going back in time.
	MasteryDecay float64 `mapstructure:"mastery_decay" json:"mastery_decay"`
	// ConfidenceAttempts is k in min(1, n/k).
	ConfidenceAttempts int `mapstructure:"confidence_attempts" json:"confidence_attempts"`

	TrajectoryWindow      int     `mapstructure:"trajectory_window" json:"trajectory_window"`
	TrajectoryMinAttempts int     `mapstructure:"trajectory_min_attempts" json:"trajectory_min_attempts"`
	TrajectoryThreshold   float64 `mapstructure:"trajectory_threshold" json:"trajectory_threshold"`

	BreakCooldown        time.Duration `mapstructure:"break_cooldown" json:"break_cooldown"`
	FatigueAfter         time.Duration `mapstructure:"fatigue_after" json:"fatigue_after"`
	DecliningErrorStreak int           `mapstructure:"declining_error_streak" json:"declining_error_streak"`
	ErrorStreakLimit     int           `mapstructure:"error_streak_limit" json:"error_streak_limit"`

	// ProductiveFailureThreshold is how many consecutive computational errors
	// are tolerated before a tip is offered.
	ProductiveFailureThreshold int `mapstructure:"productive_failure_threshold" json:"productive_failure_threshold"`

	MasteryFloor    float64 `mapstructure:"mastery_floor" json:"mastery_floor"`
	GoBackMinErrors int     `mapstructure:"go_back_min_errors" json:"go_back_min_errors"`
	// AdvanceMastery is the mastery at which difficulty should rise. A
	// prerequisite below it counts as unresolved.
	AdvanceMastery float64 `mapstructure:"advance_mastery" json:"advance_mastery"`
}

// DefaultPolicy returns the default engine policy.
func DefaultPolicy() Policy {
	return Policy{
		RetentionWindow:            50,
		MasteryWindow:              10,
		MasteryDecay:               0.8,
		ConfidenceAttempts:         5,
		TrajectoryWindow:           6,
		TrajectoryMinAttempts:      4,
		TrajectoryThreshold:        0.1,
		BreakCooldown:              10 * time.Minute,
		FatigueAfter:               25 * time.Minute,
		DecliningErrorStreak:       3,
		ErrorStreakLimit:           5,
		ProductiveFailureThreshold: 2,
		MasteryFloor:               0.3,
		GoBackMinErrors:            2,
		AdvanceMastery:             0.85,
	}
}

// Validate reports every out-of-range knob in one error.
func (p Policy) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(p.RetentionWindow > 0, "retention_window must be > 0, got %d", p.RetentionWindow)
	check(p.MasteryWindow > 0, "mastery_window must be > 0, got %d", p.MasteryWindow)
	check(p.MasteryWindow <= p.RetentionWindow, "mastery_window (%d) must not exceed retention_window (%d)", p.MasteryWindow, p.RetentionWindow)
	check(p.MasteryDecay > 0 && p.MasteryDecay <= 1, "mastery_decay must be in (0, 1], got %g", p.MasteryDecay)
	check(p.ConfidenceAttempts > 0, "confidence_attempts must be > 0, got %d", p.ConfidenceAttempts)
	check(p.TrajectoryMinAttempts >= 2, "trajectory_min_attempts must be >= 2, got %d", p.TrajectoryMinAttempts)
	check(p.TrajectoryWindow >= p.TrajectoryMinAttempts, "trajectory_window (%d) must be >= trajectory_min_attempts (%d)", p.TrajectoryWindow, p.TrajectoryMinAttempts)
	check(p.TrajectoryThreshold >= 0 && p.TrajectoryThreshold < 1, "trajectory_threshold must be in [0, 1), got %g", p.TrajectoryThreshold)
	check(p.BreakCooldown >= 0, "break_cooldown must be >= 0, got %s", p.BreakCooldown)
	check(p.FatigueAfter > 0, "fatigue_after must be > 0, got %s", p.FatigueAfter)
	check(p.DecliningErrorStreak > 0, "declining_error_streak must be > 0, got %d", p.DecliningErrorStreak)
	check(p.ErrorStreakLimit > 0, "error_streak_limit must be > 0, got %d", p.ErrorStreakLimit)
	check(p.ProductiveFailureThreshold >= 0, "productive_failure_threshold must be >= 0, got %d", p.ProductiveFailureThreshold)
	check(p.MasteryFloor >= 0 && p.MasteryFloor <= 1, "mastery_floor must be in [0, 1], got %g", p.MasteryFloor)
	check(p.GoBackMinErrors > 0, "go_back_min_errors must be > 0, got %d", p.GoBackMinErrors)
	check(p.AdvanceMastery > 0 && p.AdvanceMastery <= 1, "advance_mastery must be in (0, 1], got %g", p.AdvanceMastery)
	check(p.MasteryFloor < p.AdvanceMastery, "mastery_floor (%g) must be below advance_mastery (%g)", p.MasteryFloor, p.AdvanceMastery)

	if len(problems) > 0 {
		return errs.InvalidInput("policy validation failed:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
