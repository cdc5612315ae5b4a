package assessment

// Severity of each error type on a [0,1] scale. Not learner-specific.
const (
	SeverityComputational = 0.2
	SeverityStructural    = 0.5
	SeverityConceptual    = 0.8
)

// credit is the partial score an attempt contributes to mastery.
var credit = map[ErrorType]float64{
	ErrorComputational: 0.5,
	ErrorStructural:    0.25,
	ErrorConceptual:    0.0,
}

// Severity returns how fundamental a mistake was. Correct answers score 0.
// A wrong answer with no error type is treated as structural.
func Severity(et ErrorType, correct bool) float64 {
	if correct {
		return 0
	}
	switch et {
	case ErrorComputational:
		return SeverityComputational
	case ErrorConceptual:
		return SeverityConceptual
	default:
		return SeverityStructural
	}
}

func attemptCredit(a Attempt) float64 {
	if a.Correct {
		return 1
	}
	c, ok := credit[a.ErrorType]
	if !ok {
		return credit[ErrorStructural]
	}
	return c
}

// Mastery computes a [0,1] score from the most recent MasteryWindow attempts.
// Weights decay geometrically with age so the newest attempt counts most, and
// the result is scaled by min(1, n/ConfidenceAttempts) so a short history
// cannot claim full mastery. The result depends only on the attempts given.
func Mastery(attempts []Attempt, p Policy) float64 {
	window := attempts
	if len(window) > p.MasteryWindow {
		window = window[len(window)-p.MasteryWindow:]
	}
	if len(window) == 0 {
		return 0
	}

	var sum, total float64
	weight := 1.0
	for i := len(window) - 1; i >= 0; i-- {
		sum += weight * attemptCredit(window[i])
		total += weight
		weight *= p.MasteryDecay
	}

	confidence := float64(len(window)) / float64(p.ConfidenceAttempts)
	if confidence > 1 {
		confidence = 1
	}
	return clamp(sum/total*confidence, 0, 1)
}

// ComputeTrajectory compares the mean severity of the later half of the
// recent window against the earlier half. Odd windows put the extra attempt
// in the later half. Below TrajectoryMinAttempts the trend is unknown.
func ComputeTrajectory(severities []float64, p Policy) Trajectory {
	recent := severities
	if len(recent) > p.TrajectoryWindow {
		recent = recent[len(recent)-p.TrajectoryWindow:]
	}
	if len(recent) < p.TrajectoryMinAttempts {
		return TrajectoryUnknown
	}

	mid := len(recent) / 2
	delta := mean(recent[mid:]) - mean(recent[:mid])
	switch {
	case delta < -p.TrajectoryThreshold:
		return TrajectoryImproving
	case delta > p.TrajectoryThreshold:
		return TrajectoryDeclining
	default:
		return TrajectoryFlat
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
