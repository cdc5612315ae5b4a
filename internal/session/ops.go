package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/tutord/internal/assessment"
	"github.com/abhisek/tutord/internal/errs"
	"github.com/abhisek/tutord/internal/learner"
	"github.com/abhisek/tutord/internal/store"
)

// Event kinds written to the learner's audit log.
const (
	EventSessionStarted        = "session_started"
	EventSessionEnded          = "session_ended"
	EventAttemptRecorded       = "attempt_recorded"
	EventBreakRecorded         = "break_recorded"
	EventMisconceptionRecorded = "misconception_recorded"
	EventMisconceptionResolved = "misconception_resolved"
	EventTopicsAdded           = "topics_added"
	EventTopicDeleted          = "topic_deleted"
	EventTopicGraphStored      = "topic_graph_stored"
)

func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrNotFound)
}

// SessionStart is the result of StartSession.
type SessionStart struct {
	LearnerID         string                `json:"learner_id"`
	Topic             string                `json:"topic"`
	SessionID         string                `json:"session_id"`
	Mastery           float64               `json:"mastery"`
	Trajectory        assessment.Trajectory `json:"trajectory"`
	ZPD               assessment.ZPD        `json:"zpd"`
	Unresolved        []string              `json:"unresolved_misconceptions"`
	NeedsTopicGraph   bool                  `json:"needs_topic_graph"`
	PostBreakWarmup   bool                  `json:"post_break_warmup"`
	TotalAttempts     int                   `json:"total_attempts"`
	ConsecutiveErrors int                   `json:"consecutive_errors"`
}

// StartSession opens a practice session on topic, creating the learner and
// the topic on first use.
func (s *Service) StartSession(ctx context.Context, learnerID, topic string) (*SessionStart, error) {
	id, topic, err := ids(learnerID, topic)
	if err != nil {
		return nil, err
	}

	var sessionID string
	p, err := s.mutate(ctx, id, true, func(p *learner.Profile, now time.Time) ([]store.Event, error) {
		ts, _ := p.EnsureTopic(topic)
		assessment.StartSession(ts, now)
		sessionID = p.StartSession(topic, ts.Mastery, now)
		return s.event(EventSessionStarted, topic, map[string]any{
			"session_id": sessionID,
			"mastery":    ts.Mastery,
		}), nil
	})
	if err != nil {
		return nil, err
	}

	ts := p.Topics[topic]
	s.logger.Debug("session started",
		zap.String("learner", id),
		zap.String("topic", topic),
		zap.String("session", sessionID),
	)
	return &SessionStart{
		LearnerID:         id,
		Topic:             topic,
		SessionID:         sessionID,
		Mastery:           ts.Mastery,
		Trajectory:        ts.Trajectory,
		ZPD:               assessment.ComputeZPD(ts.Level),
		Unresolved:        ts.UnresolvedMisconceptions(),
		NeedsTopicGraph:   p.NeedsGraph(topic),
		PostBreakWarmup:   ts.WarmupPending,
		TotalAttempts:     len(ts.Attempts),
		ConsecutiveErrors: ts.ConsecutiveErrors,
	}, nil
}

// AttemptInput is one answered question as reported by the caller.
type AttemptInput struct {
	Correct bool `json:"correct"`
	// ErrorType is ignored when Correct is set. Empty on a wrong answer
	// means structural.
	ErrorType string `json:"error_type,omitempty"`
	// BloomLevel defaults to the topic's current level when empty.
	BloomLevel    string `json:"bloom_level,omitempty"`
	QuestionID    string `json:"question_id,omitempty"`
	LearnerAnswer string `json:"learner_answer,omitempty"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
	ErrorStep     string `json:"error_step,omitempty"`
}

// AttemptResult is the result of RecordAttempt.
type AttemptResult struct {
	Topic             string                `json:"topic"`
	Mastery           float64               `json:"mastery"`
	Trajectory        assessment.Trajectory `json:"trajectory"`
	Level             assessment.Level      `json:"bloom_level"`
	ProductiveFailure bool                  `json:"productive_failure"`
	ConsecutiveErrors int                   `json:"consecutive_errors"`
	TotalAttempts     int                   `json:"total_attempts"`
}

// RecordAttempt adds an answered question to topic and recomputes mastery
// and trajectory.
func (s *Service) RecordAttempt(ctx context.Context, learnerID, topic string, in AttemptInput) (*AttemptResult, error) {
	id, topic, err := ids(learnerID, topic)
	if err != nil {
		return nil, err
	}
	et, err := assessment.ParseErrorType(in.ErrorType)
	if err != nil {
		return nil, err
	}
	var (
		level    assessment.Level
		hasLevel = strings.TrimSpace(in.BloomLevel) != ""
	)
	if hasLevel {
		if level, err = assessment.ParseLevel(in.BloomLevel); err != nil {
			return nil, err
		}
	}

	p, err := s.mutate(ctx, id, false, func(p *learner.Profile, now time.Time) ([]store.Event, error) {
		ts, err := p.Topic(topic)
		if err != nil {
			return nil, err
		}
		a := assessment.Attempt{
			Timestamp:     now,
			Correct:       in.Correct,
			ErrorType:     et,
			BloomLevel:    ts.Level,
			QuestionID:    in.QuestionID,
			LearnerAnswer: in.LearnerAnswer,
			CorrectAnswer: in.CorrectAnswer,
			ErrorStep:     in.ErrorStep,
		}
		if hasLevel {
			a.BloomLevel = level
		}
		assessment.RecordAttempt(ts, a, s.policy)

		if rec := p.OpenSession(topic); rec != nil {
			rec.Attempts++
			if in.Correct {
				rec.Correct++
			}
			rec.MasteryEnd = ts.Mastery
		}

		recorded, _ := ts.LastAttempt()
		return s.event(EventAttemptRecorded, topic, map[string]any{
			"correct":     recorded.Correct,
			"error_type":  recorded.ErrorType,
			"bloom_level": recorded.BloomLevel,
			"severity":    recorded.Severity,
			"mastery":     ts.Mastery,
			"trajectory":  ts.Trajectory,
		}), nil
	})
	if err != nil {
		return nil, err
	}

	ts := p.Topics[topic]
	productive := assessment.ProductiveFailure(ts, s.policy)
	return &AttemptResult{
		Topic:             topic,
		Mastery:           ts.Mastery,
		Trajectory:        ts.Trajectory,
		Level:             ts.Level,
		ProductiveFailure: productive,
		ConsecutiveErrors: ts.ConsecutiveErrors,
		TotalAttempts:     len(ts.Attempts),
	}, nil
}

// Assessment is the result of GetAssessment.
type Assessment struct {
	Topic          string                `json:"topic"`
	Recommendation assessment.Envelope   `json:"recommendation"`
	Unresolved     []string              `json:"unresolved_misconceptions"`
	Mastery        float64               `json:"mastery"`
	Trajectory     assessment.Trajectory `json:"trajectory"`
	ZPD            assessment.ZPD        `json:"zpd"`
	// Recommended is the typed recommendation. Callers switch on its
	// concrete type; it is omitted from the wire form.
	Recommended assessment.Recommendation `json:"-"`
}

// GetAssessment returns the next recommended action for topic. It only reads.
func (s *Service) GetAssessment(ctx context.Context, learnerID, topic string) (*Assessment, error) {
	id, topic, err := ids(learnerID, topic)
	if err != nil {
		return nil, err
	}
	p, now, err := s.view(ctx, id)
	if err != nil {
		return nil, err
	}
	ts, err := p.Topic(topic)
	if err != nil {
		return nil, err
	}

	rec := assessment.Recommend(ts, assessment.Context{
		Now:           now,
		Prerequisites: p.PrerequisiteLayers(topic),
	}, s.policy)
	return &Assessment{
		Topic:          topic,
		Recommendation: assessment.Wrap(rec),
		Unresolved:     ts.UnresolvedMisconceptions(),
		Mastery:        ts.Mastery,
		Trajectory:     ts.Trajectory,
		ZPD:            assessment.ComputeZPD(ts.Level),
		Recommended:    rec,
	}, nil
}

// BreakResult is the result of RecordBreak.
type BreakResult struct {
	Topic string `json:"topic"`
	// Recorded is false when the call fell inside the cooldown of the
	// previous break and nothing changed.
	Recorded        bool      `json:"recorded"`
	At              time.Time `json:"at"`
	PostBreakWarmup bool      `json:"post_break_warmup"`
}

// RecordBreak logs that the learner took a break from topic and arms the
// warmup for the next question.
func (s *Service) RecordBreak(ctx context.Context, learnerID, topic string) (*BreakResult, error) {
	id, topic, err := ids(learnerID, topic)
	if err != nil {
		return nil, err
	}

	var recorded bool
	p, err := s.mutate(ctx, id, false, func(p *learner.Profile, now time.Time) ([]store.Event, error) {
		ts, err := p.Topic(topic)
		if err != nil {
			return nil, err
		}
		if recorded = assessment.RecordBreak(ts, now, s.policy); !recorded {
			return nil, errNoChange
		}
		if rec := p.OpenSession(topic); rec != nil {
			rec.BreaksTaken++
		}
		return s.event(EventBreakRecorded, topic, nil), nil
	})
	if err != nil {
		return nil, err
	}

	ts := p.Topics[topic]
	last, _ := ts.LastBreak()
	if !recorded {
		s.logger.Warn("break inside cooldown ignored",
			zap.String("learner", id),
			zap.String("topic", topic),
			zap.Time("last_break", last),
		)
	}
	return &BreakResult{
		Topic:           topic,
		Recorded:        recorded,
		At:              last,
		PostBreakWarmup: ts.WarmupPending,
	}, nil
}

// MisconceptionResult is the result of the misconception operations.
type MisconceptionResult struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
	// TimesObserved is set by RecordMisconception.
	TimesObserved int `json:"times_observed,omitempty"`
	// Changed is false when resolving an entry that was already resolved.
	Changed    bool     `json:"changed"`
	Unresolved []string `json:"unresolved_misconceptions"`
}

// RecordMisconception notes a confusion the learner showed on topic.
func (s *Service) RecordMisconception(ctx context.Context, learnerID, topic, description string) (*MisconceptionResult, error) {
	id, topic, err := ids(learnerID, topic)
	if err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)

	var count int
	p, err := s.mutate(ctx, id, false, func(p *learner.Profile, now time.Time) ([]store.Event, error) {
		ts, err := p.Topic(topic)
		if err != nil {
			return nil, err
		}
		if count, err = assessment.RecordMisconception(ts, description, now); err != nil {
			return nil, err
		}
		return s.event(EventMisconceptionRecorded, topic, map[string]any{
			"description":    description,
			"times_observed": count,
		}), nil
	})
	if err != nil {
		return nil, err
	}
	return &MisconceptionResult{
		Topic:         topic,
		Description:   description,
		TimesObserved: count,
		Changed:       true,
		Unresolved:    p.Topics[topic].UnresolvedMisconceptions(),
	}, nil
}

// ResolveMisconception marks a confusion on topic as resolved. Resolving one
// that is already resolved succeeds without changing anything.
func (s *Service) ResolveMisconception(ctx context.Context, learnerID, topic, description string) (*MisconceptionResult, error) {
	id, topic, err := ids(learnerID, topic)
	if err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)

	var changed bool
	p, err := s.mutate(ctx, id, false, func(p *learner.Profile, now time.Time) ([]store.Event, error) {
		ts, err := p.Topic(topic)
		if err != nil {
			return nil, err
		}
		changed, err = assessment.ResolveMisconception(ts, description, now)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, errNoChange
		}
		return s.event(EventMisconceptionResolved, topic, map[string]any{
			"description": description,
		}), nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		s.logger.Warn("misconception already resolved",
			zap.String("learner", id),
			zap.String("topic", topic),
			zap.String("description", description),
		)
	}
	return &MisconceptionResult{
		Topic:       topic,
		Description: description,
		Changed:     changed,
		Unresolved:  p.Topics[topic].UnresolvedMisconceptions(),
	}, nil
}

// TopicsResult is the result of AddTopics.
type TopicsResult struct {
	Added          []string `json:"added"`
	AlreadyExisted []string `json:"already_existed"`
	// NeedsTopicGraph lists the requested topics that have no prerequisite
	// graph yet.
	NeedsTopicGraph []string `json:"needs_topic_graph"`
}

// AddTopics starts tracking topics for the learner. Topics that are already
// tracked are left alone.
func (s *Service) AddTopics(ctx context.Context, learnerID string, topics []string) (*TopicsResult, error) {
	id, err := learner.ValidateLearnerID(learnerID)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, errs.InvalidInput("no topics given")
	}
	names, err := learner.NormalizeTopics(topics)
	if err != nil {
		return nil, err
	}

	var res TopicsResult
	p, err := s.mutate(ctx, id, true, func(p *learner.Profile, now time.Time) ([]store.Event, error) {
		res = TopicsResult{Added: []string{}, AlreadyExisted: []string{}, NeedsTopicGraph: []string{}}
		for _, name := range names {
			if _, created := p.EnsureTopic(name); created {
				res.Added = append(res.Added, name)
			} else {
				res.AlreadyExisted = append(res.AlreadyExisted, name)
			}
		}
		if len(res.Added) == 0 {
			return nil, errNoChange
		}
		return s.event(EventTopicsAdded, "", map[string]any{"topics": res.Added}), nil
	})
	if err != nil {
		return nil, err
	}

	for _, name := range res.AlreadyExisted {
		s.logger.Warn("topic already tracked",
			zap.String("learner", id),
			zap.String("topic", name),
			zap.Error(errs.Conflict("topic %q already exists", name)),
		)
	}
	for _, name := range names {
		if p.NeedsGraph(name) {
			res.NeedsTopicGraph = append(res.NeedsTopicGraph, name)
		}
	}
	return &res, nil
}

// DeleteTopic stops tracking topic and drops its prerequisite graph.
func (s *Service) DeleteTopic(ctx context.Context, learnerID, topic string) error {
	id, topic, err := ids(learnerID, topic)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, id, false, func(p *learner.Profile, now time.Time) ([]store.Event, error) {
		if err := p.DeleteTopic(topic); err != nil {
			return nil, err
		}
		for i := range p.Sessions {
			if rec := &p.Sessions[i]; rec.Topic == topic && rec.Open() {
				at := now
				rec.EndedAt = &at
			}
		}
		return s.event(EventTopicDeleted, topic, nil), nil
	})
	return err
}

// GraphResult is the result of StoreTopicGraph.
type GraphResult struct {
	Topic string        `json:"topic"`
	Graph learner.Graph `json:"graph"`
	Nodes []string      `json:"nodes"`
}

// StoreTopicGraph records the prerequisite graph for a tracked topic. Every
// name in edges is canonicalized, and the graph is rejected if merging it
// with the learner's other graphs would create a cycle.
func (s *Service) StoreTopicGraph(ctx context.Context, learnerID, topic string, edges map[string][]string) (*GraphResult, error) {
	id, topic, err := ids(learnerID, topic)
	if err != nil {
		return nil, err
	}
	g, err := learner.NormalizeGraph(edges)
	if err != nil {
		return nil, err
	}

	_, err = s.mutate(ctx, id, false, func(p *learner.Profile, now time.Time) ([]store.Event, error) {
		if _, err := p.Topic(topic); err != nil {
			return nil, err
		}
		if err := p.SetTopicGraph(topic, g); err != nil {
			return nil, err
		}
		return s.event(EventTopicGraphStored, topic, map[string]any{
			"nodes": len(g.Nodes()),
		}), nil
	})
	if err != nil {
		return nil, err
	}
	return &GraphResult{Topic: topic, Graph: g, Nodes: g.Nodes()}, nil
}

// SessionSummary describes one session closed by EndSession.
type SessionSummary struct {
	ID            string        `json:"id"`
	Topic         string        `json:"topic"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at"`
	Duration      time.Duration `json:"duration_ns"`
	Attempts      int           `json:"attempts"`
	Correct       int           `json:"correct"`
	Accuracy      float64       `json:"accuracy"`
	MasteryStart  float64       `json:"mastery_start"`
	MasteryEnd    float64       `json:"mastery_end"`
	MasteryChange float64       `json:"mastery_change"`
	BreaksTaken   int           `json:"breaks_taken"`
}

// Summary is the result of EndSession.
type Summary struct {
	LearnerID string             `json:"learner_id"`
	Sessions  []SessionSummary   `json:"sessions"`
	Attempts  int                `json:"attempts"`
	Correct   int                `json:"correct"`
	Mastery   map[string]float64 `json:"mastery"`
}

// EndSession closes the learner's open sessions and summarizes them along
// with the current mastery of every tracked topic.
func (s *Service) EndSession(ctx context.Context, learnerID string) (*Summary, error) {
	id, err := learner.ValidateLearnerID(learnerID)
	if err != nil {
		return nil, err
	}

	var closed []learner.SessionRecord
	p, err := s.mutate(ctx, id, false, func(p *learner.Profile, now time.Time) ([]store.Event, error) {
		closed = p.CloseSessions(now)
		if len(closed) == 0 {
			return nil, errNoChange
		}
		var events []store.Event
		for _, rec := range closed {
			events = append(events, s.event(EventSessionEnded, rec.Topic, map[string]any{
				"session_id": rec.ID,
				"attempts":   rec.Attempts,
				"correct":    rec.Correct,
				"mastery":    rec.MasteryEnd,
			})...)
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		LearnerID: id,
		Sessions:  []SessionSummary{},
		Mastery:   make(map[string]float64, len(p.Topics)),
	}
	for _, rec := range closed {
		ss := SessionSummary{
			ID:            rec.ID,
			Topic:         rec.Topic,
			StartedAt:     rec.StartedAt,
			EndedAt:       *rec.EndedAt,
			Duration:      rec.EndedAt.Sub(rec.StartedAt),
			Attempts:      rec.Attempts,
			Correct:       rec.Correct,
			MasteryStart:  rec.MasteryStart,
			MasteryEnd:    rec.MasteryEnd,
			MasteryChange: rec.MasteryEnd - rec.MasteryStart,
			BreaksTaken:   rec.BreaksTaken,
		}
		if rec.Attempts > 0 {
			ss.Accuracy = float64(rec.Correct) / float64(rec.Attempts)
		}
		sum.Sessions = append(sum.Sessions, ss)
		sum.Attempts += rec.Attempts
		sum.Correct += rec.Correct
	}
	for name, ts := range p.Topics {
		sum.Mastery[name] = ts.Mastery
	}

	s.logger.Info("session ended",
		zap.String("learner", id),
		zap.Int("sessions", len(closed)),
		zap.Int("attempts", sum.Attempts),
	)
	return sum, nil
}

// Profile returns the learner's full stored profile.
func (s *Service) Profile(ctx context.Context, learnerID string) (*learner.Profile, error) {
	id, err := learner.ValidateLearnerID(learnerID)
	if err != nil {
		return nil, err
	}
	p, _, err := s.view(ctx, id)
	return p, err
}

// Events returns the learner's audit log, newest first. A limit of zero
// returns everything.
func (s *Service) Events(ctx context.Context, learnerID string, limit int) ([]store.Event, error) {
	id, err := learner.ValidateLearnerID(learnerID)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, errs.InvalidInput("limit must be >= 0, got %d", limit)
	}
	release, err := s.locks.acquire(ctx, id, false)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.store.Load(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Events(ctx, id, store.QueryOpts{Limit: limit})
}

// Learners returns the IDs of every stored learner, sorted.
func (s *Service) Learners(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}
