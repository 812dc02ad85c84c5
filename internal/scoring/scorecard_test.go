package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ashureev/secretlab/internal/domain"
	"github.com/ashureev/secretlab/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChallenge(id int, points int) *domain.Challenge {
	c := domain.NewChallenge(id, fmt.Sprintf("challenge-%d", id), nil)
	c.Points = points
	return c
}

func threeChallenges() []*domain.Challenge {
	return []*domain.Challenge{newChallenge(0, 100), newChallenge(1, 200), newChallenge(2, 300)}
}

type failingRepo struct {
	*store.MemoryStore
}

func (f failingRepo) SaveScore(context.Context, string, domain.ScoreEntry) error {
	return errors.New("disk full")
}

func TestCompleteAwardsPointsOnce(t *testing.T) {
	ctx := context.Background()
	cs := threeChallenges()
	sc, err := New(ctx, store.NewMemory(), cs)
	require.NoError(t, err)

	first, err := sc.Complete(ctx, cs[1])
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, 200, sc.TotalReceivedPoints())

	again, err := sc.Complete(ctx, cs[1])
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, 200, sc.TotalReceivedPoints())

	assert.True(t, sc.Completed(cs[1]))
	assert.False(t, sc.Completed(cs[0]))
	assert.Equal(t, "1/3", sc.Progress().String())
}

func TestResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cs := threeChallenges()
	repo := store.NewMemory()
	sc, err := New(ctx, repo, cs)
	require.NoError(t, err)

	_, err = sc.Complete(ctx, cs[0])
	require.NoError(t, err)

	require.NoError(t, sc.Reset(ctx, cs[0]))
	once := sc.Snapshot()
	require.NoError(t, sc.Reset(ctx, cs[0]))
	assert.Equal(t, once, sc.Snapshot())

	assert.False(t, sc.Completed(cs[0]))
	assert.Equal(t, 0, sc.TotalReceivedPoints())

	persisted, err := repo.LoadScores(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)

	// Never started.
	require.NoError(t, sc.Reset(ctx, cs[2]))
}

func TestProgressIgnoresDisabledChallenges(t *testing.T) {
	ctx := context.Background()
	cs := threeChallenges()
	cs[2].Enabled = false
	sc, err := New(ctx, store.NewMemory(), cs)
	require.NoError(t, err)

	_, err = sc.Complete(ctx, cs[0])
	require.NoError(t, err)
	_, err = sc.Complete(ctx, cs[1])
	require.NoError(t, err)

	p := sc.Progress()
	assert.Equal(t, Progress{Completed: 2, Total: 2}, p)
	assert.InDelta(t, 100.0, p.Percent(), 0.001)
	assert.True(t, sc.Snapshot().AllCompleted)
}

func TestLoadsPersistedEntries(t *testing.T) {
	ctx := context.Background()
	cs := threeChallenges()
	repo := store.NewMemory()
	require.NoError(t, repo.SaveScore(ctx, cs[2].Name, domain.ScoreEntry{Completed: true, Points: 300}))

	sc, err := New(ctx, repo, cs)
	require.NoError(t, err)
	assert.True(t, sc.Completed(cs[2]))
	assert.Equal(t, 300, sc.TotalReceivedPoints())
}

func TestCompleteDoesNotMutateOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	cs := threeChallenges()
	sc, err := New(ctx, failingRepo{store.NewMemory()}, cs)
	require.NoError(t, err)

	_, err = sc.Complete(ctx, cs[0])
	require.Error(t, err)
	assert.False(t, sc.Completed(cs[0]))
	assert.Equal(t, 0, sc.TotalReceivedPoints())
}

func TestListenerReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	cs := threeChallenges()
	sc, err := New(ctx, store.NewMemory(), cs)
	require.NoError(t, err)

	var got []Snapshot
	sc.OnChange(func(s Snapshot) { got = append(got, s) })

	_, err = sc.Complete(ctx, cs[0])
	require.NoError(t, err)
	_, err = sc.Complete(ctx, cs[0])
	require.NoError(t, err)
	require.NoError(t, sc.Reset(ctx, cs[0]))

	require.Len(t, got, 2)
	assert.Equal(t, EventCompleted, got[0].Event)
	assert.Equal(t, 100, got[0].TotalPoints)
	assert.Equal(t, EventReset, got[1].Event)
	assert.Equal(t, cs[0].Name, got[1].Challenge)
}

func TestSnapshotSequenceIncreases(t *testing.T) {
	ctx := context.Background()
	cs := threeChallenges()
	sc, err := New(ctx, store.NewMemory(), cs)
	require.NoError(t, err)

	var got []Snapshot
	sc.OnChange(func(s Snapshot) { got = append(got, s) })

	_, err = sc.Complete(ctx, cs[0])
	require.NoError(t, err)
	_, err = sc.Complete(ctx, cs[1])
	require.NoError(t, err)
	require.NoError(t, sc.Reset(ctx, cs[0]))

	require.Len(t, got, 3)
	assert.Less(t, got[0].Seq, got[1].Seq)
	assert.Less(t, got[1].Seq, got[2].Seq)
	assert.Equal(t, got[2].Seq, sc.Snapshot().Seq)
}

func TestConcurrentCompletionsCountOnce(t *testing.T) {
	ctx := context.Background()
	cs := threeChallenges()
	sc, err := New(ctx, store.NewMemory(), cs)
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		awards int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := sc.Complete(ctx, cs[0])
			if err == nil && first {
				mu.Lock()
				awards++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, awards)
	assert.Equal(t, 100, sc.TotalReceivedPoints())
}

func TestProgressEmpty(t *testing.T) {
	assert.Equal(t, float64(0), Progress{}.Percent())
	assert.Equal(t, "0/0", Progress{}.String())
}
