package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/abhisek/tutord/internal/errs"
	"github.com/abhisek/tutord/internal/learner"
)

// Memory is a process-local store. Profiles are kept encoded so callers never
// share state with the store.
type Memory struct {
	mu       sync.Mutex
	profiles map[string]memRecord
	events   map[string][]Event
	seq      int64
}

type memRecord struct {
	revision int64
	data     []byte
}

var _ ProfileStore = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]memRecord),
		events:   make(map[string][]Event),
	}
}

func (m *Memory) Load(_ context.Context, learnerID string) (*learner.Profile, error) {
	m.mu.Lock()
	rec, ok := m.profiles[learnerID]
	m.mu.Unlock()
	if !ok {
		return nil, errs.NotFound("learner %q", learnerID)
	}
	return decodeProfile(rec.data, rec.revision)
}

func (m *Memory) Save(_ context.Context, p *learner.Profile, events ...Event) error {
	data, err := encodeProfile(p)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.profiles[p.LearnerID]
	switch {
	case p.Revision == 0 && ok:
		return fmt.Errorf("create profile %q: %w", p.LearnerID, ErrStale)
	case p.Revision != 0 && (!ok || rec.revision != p.Revision):
		return fmt.Errorf("update profile %q at revision %d: %w", p.LearnerID, p.Revision, ErrStale)
	}

	m.profiles[p.LearnerID] = memRecord{revision: p.Revision + 1, data: data}
	now := time.Now().UTC()
	for _, e := range events {
		m.seq++
		e.Sequence = m.seq
		e.LearnerID = p.LearnerID
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		m.events[p.LearnerID] = append(m.events[p.LearnerID], e)
	}
	p.Revision++
	return nil
}

func (m *Memory) Events(_ context.Context, learnerID string, opts QueryOpts) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.events[learnerID]
	var out []Event
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Sequence <= opts.After {
			break
		}
		out = append(out, all[i])
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
