package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/tutord/internal/learner"
	"github.com/abhisek/tutord/internal/store"
)

func TestConcurrentAttemptsAreSerialized(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory())
	ctx := context.Background()

	_, err := svc.StartSession(ctx, "ada", "fractions")
	require.NoError(t, err)

	const n = 20
	var g errgroup.Group
	for i := 0; i < n; i++ {
		correct := i%2 == 0
		g.Go(func() error {
			in := wrong("computational")
			if correct {
				in = right("remember")
			}
			if _, err := svc.RecordAttempt(ctx, "ada", "fractions", in); err != nil {
				return err
			}
			_, err := svc.GetAssessment(ctx, "ada", "fractions")
			return err
		})
	}
	require.NoError(t, g.Wait())

	p, err := svc.Profile(ctx, "ada")
	require.NoError(t, err)
	assert.Len(t, p.Topics["fractions"].Attempts, n)
	rec := p.OpenSession("fractions")
	assert.Equal(t, n, rec.Attempts)
	assert.Equal(t, n/2, rec.Correct)

	events, err := svc.Events(ctx, "ada", 0)
	require.NoError(t, err)
	assert.Len(t, events, n+1)
	assert.Equal(t, 0, svc.locks.size())
}

func TestConcurrentLearnersDoNotBlockEachOther(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory())
	ctx := context.Background()

	learners := []string{"ada", "grace", "alan", "edsger"}
	var g errgroup.Group
	for _, id := range learners {
		g.Go(func() error {
			if _, err := svc.StartSession(ctx, id, "fractions"); err != nil {
				return err
			}
			for i := 0; i < 5; i++ {
				if _, err := svc.RecordAttempt(ctx, id, "fractions", right("apply")); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	ids, err := svc.Learners(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, learners, ids)
	for _, id := range learners {
		a, err := svc.GetAssessment(ctx, id, "fractions")
		require.NoError(t, err)
		assert.Equal(t, 1.0, a.Mastery, id)
	}
}

// racingStore lets another writer win the first save it sees.
type racingStore struct {
	*store.Memory
	raced bool
}

func (r *racingStore) Save(ctx context.Context, p *learner.Profile, events ...store.Event) error {
	if !r.raced {
		r.raced = true
		rival, err := r.Memory.Load(ctx, p.LearnerID)
		if err != nil {
			return err
		}
		rival.EnsureTopic("decimals")
		if err := r.Memory.Save(ctx, rival); err != nil {
			return err
		}
	}
	return r.Memory.Save(ctx, p, events...)
}

func TestStaleRevisionIsRetried(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	setup, _ := newTestService(t, mem)
	_, err := setup.StartSession(ctx, "ada", "fractions")
	require.NoError(t, err)

	logger, logs := observedLogger()
	svc, _ := newTestService(t, &racingStore{Memory: mem}, WithLogger(logger))
	res, err := svc.RecordAttempt(ctx, "ada", "fractions", right("remember"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalAttempts)

	p, err := svc.Profile(ctx, "ada")
	require.NoError(t, err)
	assert.Contains(t, p.Topics, "decimals", "rival write survives")
	assert.Len(t, p.Topics["fractions"].Attempts, 1, "attempt applied once")
	assert.Equal(t, 1, logs.FilterMessage("profile changed underneath, retrying").Len())
}

func TestStaleRevisionGivesUp(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	setup, _ := newTestService(t, mem)
	_, err := setup.StartSession(ctx, "ada", "fractions")
	require.NoError(t, err)

	svc, _ := newTestService(t, &racingStore{Memory: mem}, WithMaxRetries(0))
	_, err = svc.RecordAttempt(ctx, "ada", "fractions", right("remember"))
	require.ErrorIs(t, err, store.ErrStale)

	p, err := setup.Profile(ctx, "ada")
	require.NoError(t, err)
	assert.Empty(t, p.Topics["fractions"].Attempts)
}

// Two services over separate connections to one database file behave like
// two processes: their locks are independent and only the revision check
// keeps them from losing each other's writes.
func TestTwoServicesShareSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	stA, err := store.OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { stA.Close() })
	stB, err := store.OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { stB.Close() })

	a, _ := newTestService(t, stA, WithMaxRetries(50))
	b, _ := newTestService(t, stB, WithMaxRetries(50))

	_, err = a.StartSession(ctx, "ada", "fractions")
	require.NoError(t, err)

	const perService = 5
	var g errgroup.Group
	for _, svc := range []*Service{a, b} {
		for i := 0; i < perService; i++ {
			g.Go(func() error {
				_, err := svc.RecordAttempt(ctx, "ada", "fractions", right("remember"))
				return err
			})
		}
	}
	require.NoError(t, g.Wait())

	p, err := b.Profile(ctx, "ada")
	require.NoError(t, err)
	assert.Len(t, p.Topics["fractions"].Attempts, 2*perService)
	assert.Equal(t, 2*perService, p.OpenSession("fractions").Attempts)
}

func TestSQLiteRoundTripKeepsAssessment(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tutord.db")

	st, err := store.OpenSQLite(ctx, path)
	require.NoError(t, err)
	svc, clock := newTestService(t, st)

	_, err = svc.StartSession(ctx, "ada", "fractions")
	require.NoError(t, err)
	for _, in := range []AttemptInput{
		right("apply"), right("apply"),
		wrong("conceptual"), wrong("conceptual"),
	} {
		_, err = svc.RecordAttempt(ctx, "ada", "fractions", in)
		require.NoError(t, err)
	}
	_, err = svc.RecordMisconception(ctx, "ada", "fractions", "adds denominators")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	before, err := svc.GetAssessment(ctx, "ada", "fractions")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	reopened, err := store.OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	svc2, err := NewService(reopened, WithClock(clock.Now))
	require.NoError(t, err)

	after, err := svc2.GetAssessment(ctx, "ada", "fractions")
	require.NoError(t, err)

	assert.Equal(t, before.Mastery, after.Mastery)
	assert.Equal(t, before.Trajectory, after.Trajectory)
	assert.Equal(t, before.ZPD, after.ZPD)
	assert.Equal(t, before.Unresolved, after.Unresolved)
	assert.Equal(t, before.Recommended, after.Recommended)
}
