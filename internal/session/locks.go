package session

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds concurrent readers of one learner. A writer takes every
// slot, so it waits for readers to drain and excludes new ones.
const maxReaders = 64

type learnerLock struct {
	sem  *semaphore.Weighted
	refs int
}

// learnerLocks hands out one reader/writer lock per learner. An entry is
// dropped once nobody holds or waits on it.
type learnerLocks struct {
	mu    sync.Mutex
	locks map[string]*learnerLock
}

func newLearnerLocks() *learnerLocks {
	return &learnerLocks{locks: make(map[string]*learnerLock)}
}

// acquire blocks until the learner's lock is held in the requested mode or
// ctx is done. The returned func releases it and must be called exactly once.
func (l *learnerLocks) acquire(ctx context.Context, learnerID string, write bool) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[learnerID]
	if !ok {
		lk = &learnerLock{sem: semaphore.NewWeighted(maxReaders)}
		l.locks[learnerID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	weight := int64(1)
	if write {
		weight = maxReaders
	}
	if err := lk.sem.Acquire(ctx, weight); err != nil {
		l.unref(learnerID, lk)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lk.sem.Release(weight)
			l.unref(learnerID, lk)
		})
	}, nil
}

func (l *learnerLocks) unref(learnerID string, lk *learnerLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, learnerID)
	}
}

// size reports how many learners currently have a lock entry.
func (l *learnerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
