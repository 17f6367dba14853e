package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenachess/backend/internal/domain"
	redisrepo "github.com/arenachess/backend/internal/repository/redis"
)

type fakeRepo struct {
	mu     sync.Mutex
	saved  []domain.GameRecord
	recent []domain.GameRecord
	err    error
}

func (r *fakeRepo) SaveGame(ctx context.Context, rec domain.GameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, rec)
	return nil
}

func (r *fakeRepo) RecentGames(ctx context.Context, limit int) ([]domain.GameRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recent, nil
}

func (r *fakeRepo) savedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func record(sessionID string) domain.GameRecord {
	return domain.GameRecord{
		SessionID:   sessionID,
		WhiteID:     1,
		BlackID:     2,
		Outcome:     domain.OutcomeWhiteWon,
		Reason:      domain.ReasonNormal,
		TimeControl: domain.TimeControl{InitialSeconds: 300, IncrementSeconds: 5},
		CreatedAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2025, 3, 1, 12, 9, 0, 0, time.UTC),
	}
}

func newCache(t *testing.T, capacity int) *redisrepo.RecentResults {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisrepo.NewRecentResults(client, capacity)
}

func TestSaveWritesRepoAndCache(t *testing.T) {
	repo := &fakeRepo{}
	cache := newCache(t, 10)
	svc := NewService(repo, cache)

	svc.Save(record("sess-1"))
	svc.Flush()

	assert.Equal(t, 1, repo.savedCount())

	cached, err := cache.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "sess-1", cached[0].SessionID)
}

func TestSaveSurvivesRepoFailure(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection refused")}
	cache := newCache(t, 10)
	svc := NewService(repo, cache)

	svc.Save(record("sess-1"))
	svc.Flush()

	// The cache still gets the record even when the database write fails.
	cached, err := cache.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestCacheKeepsNewestWithinCapacity(t *testing.T) {
	repo := &fakeRepo{}
	cache := newCache(t, 2)
	svc := NewService(repo, cache)

	ctx := context.Background()
	svc.saveNow(ctx, record("sess-1"))
	svc.saveNow(ctx, record("sess-2"))
	svc.saveNow(ctx, record("sess-3"))

	cached, err := cache.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, "sess-3", cached[0].SessionID)
	assert.Equal(t, "sess-2", cached[1].SessionID)
}

func TestRecentGamesFallsBackToRepo(t *testing.T) {
	repo := &fakeRepo{recent: []domain.GameRecord{record("from-db")}}

	t.Run("no cache configured", func(t *testing.T) {
		svc := NewService(repo, nil)
		records, err := svc.RecentGames(context.Background(), 5)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "from-db", records[0].SessionID)
	})

	t.Run("cache empty", func(t *testing.T) {
		svc := NewService(repo, newCache(t, 10))
		records, err := svc.RecentGames(context.Background(), 5)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "from-db", records[0].SessionID)
	})
}

func TestRecentGamesPrefersCache(t *testing.T) {
	repo := &fakeRepo{recent: []domain.GameRecord{record("from-db")}}
	cache := newCache(t, 10)
	svc := NewService(repo, cache)

	require.NoError(t, cache.Push(context.Background(), record("from-cache")))

	records, err := svc.RecentGames(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "from-cache", records[0].SessionID)
}
