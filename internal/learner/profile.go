// Package learner holds the per-learner profile: topic states keyed by
// canonical topic name, the prerequisite graphs authored for those topics, and
// the history of practice sessions.
package learner

import (
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/tutord/internal/assessment"
	"github.com/abhisek/tutord/internal/errs"
)

// SessionRecord is one practice session on one topic.
type SessionRecord struct {
	ID           string     `json:"id"`
	Topic        string     `json:"topic"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Attempts     int        `json:"attempts"`
	Correct      int        `json:"correct"`
	MasteryStart float64    `json:"mastery_start"`
	MasteryEnd   float64    `json:"mastery_end"`
	BreaksTaken  int        `json:"breaks_taken"`
}

// Open reports whether the session has not been ended.
func (r *SessionRecord) Open() bool {
	return r.EndedAt == nil
}

// Profile is everything known about one learner.
type Profile struct {
	LearnerID string `json:"learner_id"`
	// Revision is owned by the store and bumped on every successful save.
	Revision int64 `json:"-"`

	Topics      map[string]*assessment.TopicState `json:"topics"`
	TopicGraphs map[string]Graph                  `json:"topic_graphs"`
	Sessions    []SessionRecord                   `json:"sessions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty profile for learnerID.
func New(learnerID string, now time.Time) *Profile {
	return &Profile{
		LearnerID:   learnerID,
		Topics:      make(map[string]*assessment.TopicState),
		TopicGraphs: make(map[string]Graph),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy of p. Mutations are applied to a clone so the
// loaded profile stays untouched when a save fails.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Topics = make(map[string]*assessment.TopicState, len(p.Topics))
	for k, ts := range p.Topics {
		c.Topics[k] = ts.Clone()
	}
	c.TopicGraphs = make(map[string]Graph, len(p.TopicGraphs))
	for k, g := range p.TopicGraphs {
		c.TopicGraphs[k] = g.Clone()
	}
	c.Sessions = make([]SessionRecord, len(p.Sessions))
	for i, s := range p.Sessions {
		if s.EndedAt != nil {
			at := *s.EndedAt
			s.EndedAt = &at
		}
		c.Sessions[i] = s
	}
	return &c
}

// Fill replaces nil maps left by decoding an older or partial document.
func (p *Profile) Fill() {
	if p.Topics == nil {
		p.Topics = make(map[string]*assessment.TopicState)
	}
	if p.TopicGraphs == nil {
		p.TopicGraphs = make(map[string]Graph)
	}
	for k, ts := range p.Topics {
		if ts == nil {
			p.Topics[k] = assessment.NewTopicState()
		}
	}
}

// Topic returns the state for a canonical topic name.
func (p *Profile) Topic(topic string) (*assessment.TopicState, error) {
	ts, ok := p.Topics[topic]
	if !ok {
		return nil, errs.NotFound("topic %q for learner %q", topic, p.LearnerID)
	}
	return ts, nil
}

// EnsureTopic returns the state for topic, creating it if needed.
func (p *Profile) EnsureTopic(topic string) (ts *assessment.TopicState, created bool) {
	if ts, ok := p.Topics[topic]; ok {
		return ts, false
	}
	ts = assessment.NewTopicState()
	p.Topics[topic] = ts
	return ts, true
}

// TopicNames returns the tracked topics, sorted.
func (p *Profile) TopicNames() []string {
	names := make([]string, 0, len(p.Topics))
	for k := range p.Topics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NeedsGraph reports whether topic has no prerequisite graph yet.
func (p *Profile) NeedsGraph(topic string) bool {
	_, ok := p.TopicGraphs[topic]
	return !ok
}

// DeleteTopic discards the topic's state and its graph.
func (p *Profile) DeleteTopic(topic string) error {
	if _, ok := p.Topics[topic]; !ok {
		return errs.NotFound("topic %q for learner %q", topic, p.LearnerID)
	}
	delete(p.Topics, topic)
	delete(p.TopicGraphs, topic)
	return nil
}

// SetTopicGraph stores g as topic's prerequisite graph after checking that
// the merged graph across all topics stays acyclic.
func (p *Profile) SetTopicGraph(topic string, g Graph) error {
	candidate := make(map[string]Graph, len(p.TopicGraphs)+1)
	for k, v := range p.TopicGraphs {
		candidate[k] = v
	}
	candidate[topic] = g
	if err := Merge(candidate).Validate(); err != nil {
		return err
	}
	p.TopicGraphs[topic] = g.Clone()
	return nil
}

// UnifiedGraph merges every stored topic graph.
func (p *Profile) UnifiedGraph() Graph {
	return Merge(p.TopicGraphs)
}

// directPrerequisites returns what topic depends on. Entries for topic in the
// unified graph come first. A topic's own graph also makes it depend on the
// subtopics at the top of that graph.
func (p *Profile) directPrerequisites(topic string, unified Graph) []string {
	direct := slices.Clone(unified[topic])
	if own, ok := p.TopicGraphs[topic]; ok {
		if _, listed := own[topic]; !listed {
			for _, s := range own.Sinks() {
				if s != topic && !slices.Contains(direct, s) {
					direct = append(direct, s)
				}
			}
		}
	}
	return direct
}

// PrerequisiteLayers returns topic's prerequisites grouped by distance with
// the learner's mastery of each. Untracked prerequisites have mastery 0.
func (p *Profile) PrerequisiteLayers(topic string) [][]assessment.Candidate {
	unified := p.UnifiedGraph()
	layers := unified.Layers(topic, p.directPrerequisites(topic, unified))

	out := make([][]assessment.Candidate, len(layers))
	for i, layer := range layers {
		out[i] = make([]assessment.Candidate, len(layer))
		for j, name := range layer {
			c := assessment.Candidate{Topic: name}
			if ts, ok := p.Topics[name]; ok {
				c.Mastery = ts.Mastery
			}
			out[i][j] = c
		}
	}
	return out
}

// StartSession opens a session record for topic and returns its ID. An
// already open record for the same topic is reused.
func (p *Profile) StartSession(topic string, mastery float64, now time.Time) string {
	if rec := p.OpenSession(topic); rec != nil {
		return rec.ID
	}
	id := uuid.New().String()
	p.Sessions = append(p.Sessions, SessionRecord{
		ID:           id,
		Topic:        topic,
		StartedAt:    now,
		MasteryStart: mastery,
		MasteryEnd:   mastery,
	})
	return id
}

// OpenSession returns the open session record for topic, or nil.
func (p *Profile) OpenSession(topic string) *SessionRecord {
	for i := len(p.Sessions) - 1; i >= 0; i-- {
		if s := &p.Sessions[i]; s.Topic == topic && s.Open() {
			return s
		}
	}
	return nil
}

// CloseSessions ends every open session record at now and returns copies of
// the records it closed. The topics of closed records stop accruing fatigue.
func (p *Profile) CloseSessions(now time.Time) []SessionRecord {
	var closed []SessionRecord
	for i := range p.Sessions {
		s := &p.Sessions[i]
		if !s.Open() {
			continue
		}
		at := now
		s.EndedAt = &at
		if ts, ok := p.Topics[s.Topic]; ok {
			s.MasteryEnd = ts.Mastery
			assessment.EndSession(ts)
		}
		closed = append(closed, *s)
	}
	return closed
}
