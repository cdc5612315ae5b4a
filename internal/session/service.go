// Package session sequences engine operations for callers. Every call takes
// the learner's lock, loads the profile, applies one change to a copy, saves
// it, and only then releases the lock, so no caller ever sees a half-applied
// update and a failed save leaves nothing behind.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/tutord/internal/assessment"
	"github.com/abhisek/tutord/internal/learner"
	"github.com/abhisek/tutord/internal/store"
)

// DefaultMaxRetries is how many times a mutation is re-applied after losing
// a revision race to another writer.
const DefaultMaxRetries = 3

// errNoChange lets a mutation report that it is a no-op and nothing should
// be written.
var errNoChange = errors.New("no change")

// Service runs the tutoring operations against a profile store.
type Service struct {
	store      store.ProfileStore
	policy     assessment.Policy
	logger     *zap.Logger
	now        func() time.Time
	maxRetries int
	locks      *learnerLocks
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy overrides the engine policy.
func WithPolicy(p assessment.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxRetries sets how many stale-revision retries a mutation gets.
func WithMaxRetries(n int) Option {
	return func(s *Service) { s.maxRetries = n }
}

// NewService returns a Service backed by st.
func NewService(st store.ProfileStore, opts ...Option) (*Service, error) {
	s := &Service{
		store:      st,
		policy:     assessment.DefaultPolicy(),
		logger:     zap.NewNop(),
		now:        time.Now,
		maxRetries: DefaultMaxRetries,
		locks:      newLearnerLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	if s.maxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0, got %d", s.maxRetries)
	}
	return s, nil
}

// Policy returns the engine policy in use.
func (s *Service) Policy() assessment.Policy {
	return s.policy
}

// mutation applies one change to p. It returns the events describing the
// change, or errNoChange when there is nothing to write.
type mutation func(p *learner.Profile, now time.Time) ([]store.Event, error)

// mutate runs fn under the learner's write lock. fn always sees a private
// copy of the stored profile; if the save fails the copy is discarded. When
// create is set, a learner that does not exist yet starts from an empty
// profile.
func (s *Service) mutate(ctx context.Context, learnerID string, create bool, fn mutation) (*learner.Profile, error) {
	release, err := s.locks.acquire(ctx, learnerID, true)
	if err != nil {
		return nil, fmt.Errorf("lock learner %q: %w", learnerID, err)
	}
	defer release()

	for attempt := 0; ; attempt++ {
		now := s.now().UTC()

		loaded, err := s.store.Load(ctx, learnerID)
		switch {
		case err == nil:
		case create && isNotFound(err):
			loaded = learner.New(learnerID, now)
		default:
			return nil, err
		}

		work := loaded.Clone()
		events, err := fn(work, now)
		if errors.Is(err, errNoChange) {
			return loaded, nil
		}
		if err != nil {
			return nil, err
		}

		work.UpdatedAt = now
		for i := range events {
			events[i].LearnerID = learnerID
			if events[i].Timestamp.IsZero() {
				events[i].Timestamp = now
			}
		}

		err = s.store.Save(ctx, work, events...)
		if err == nil {
			return work, nil
		}
		if errors.Is(err, store.ErrStale) && attempt < s.maxRetries {
			s.logger.Warn("profile changed underneath, retrying",
				zap.String("learner", learnerID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return nil, fmt.Errorf("save learner %q: %w", learnerID, err)
	}
}

// view loads the learner under a shared lock.
func (s *Service) view(ctx context.Context, learnerID string) (*learner.Profile, time.Time, error) {
	release, err := s.locks.acquire(ctx, learnerID, false)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("lock learner %q: %w", learnerID, err)
	}
	defer release()

	p, err := s.store.Load(ctx, learnerID)
	if err != nil {
		return nil, time.Time{}, err
	}
	return p, s.now().UTC(), nil
}

// event builds a store event, logging rather than failing when the payload
// cannot be encoded.
func (s *Service) event(kind, topic string, data any) []store.Event {
	e, err := store.NewEvent(kind, topic, data)
	if err != nil {
		s.logger.Error("drop event", zap.String("kind", kind), zap.Error(err))
		return []store.Event{{Kind: kind, Topic: topic}}
	}
	return []store.Event{e}
}

// ids validates a learner ID and canonicalizes a topic name.
func ids(learnerID, topic string) (string, string, error) {
	id, err := learner.ValidateLearnerID(learnerID)
	if err != nil {
		return "", "", err
	}
	t, err := learner.NormalizeTopic(topic)
	if err != nil {
		return "", "", err
	}
	return id, t, nil
}
