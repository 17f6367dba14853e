package matchmaking

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenachess/backend/internal/dependencies/mocks"
	"github.com/arenachess/backend/internal/domain"
)

type fakeActive struct {
	busy map[domain.UserID]bool
}

func (f *fakeActive) HasActiveSession(userID domain.UserID) bool {
	return f.busy[userID]
}

func newTestQueue(t *testing.T, tolerance int) (*Queue, *fakeActive, *mocks.MockClock) {
	t.Helper()
	active := &fakeActive{busy: make(map[domain.UserID]bool)}
	clk := mocks.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewQueue(active, clk, tolerance), active, clk
}

func tc(initial, increment int) domain.TimeControl {
	return domain.TimeControl{InitialSeconds: initial, IncrementSeconds: increment}
}

func popMatch(t *testing.T, q *Queue) Match {
	t.Helper()
	select {
	case m := <-q.Matches():
		return m
	default:
		t.Fatal("expected a match to have been emitted")
		return Match{}
	}
}

func assertNoMatch(t *testing.T, q *Queue) {
	t.Helper()
	select {
	case m := <-q.Matches():
		t.Fatalf("unexpected match: %+v", m)
	default:
	}
}

func TestLonePlayerWaits(t *testing.T) {
	q, _, _ := newTestQueue(t, 0)

	require.NoError(t, q.Enqueue(1, tc(300, 5)))
	assert.True(t, q.IsWaiting(1))
	assert.Equal(t, 1, q.Len())
	assertNoMatch(t, q)
}

func TestCompatiblePlayersArePaired(t *testing.T) {
	q, _, clk := newTestQueue(t, 0)

	require.NoError(t, q.Enqueue(1, tc(300, 5)))
	clk.Advance(time.Second)
	require.NoError(t, q.Enqueue(2, tc(300, 5)))

	m := popMatch(t, q)
	assert.Equal(t, domain.UserID(1), m.PlayerA.UserID, "the longer-waiting player comes first")
	assert.Equal(t, domain.UserID(2), m.PlayerB.UserID)
	assert.Equal(t, tc(300, 5), m.Criteria)

	// Both entries left the pool atomically with the pairing.
	assert.False(t, q.IsWaiting(1))
	assert.False(t, q.IsWaiting(2))
	assert.Equal(t, 0, q.Len())
}

func TestIncompatibleCriteriaDoNotPair(t *testing.T) {
	q, _, _ := newTestQueue(t, 0)

	require.NoError(t, q.Enqueue(1, tc(300, 5)))
	require.NoError(t, q.Enqueue(2, tc(600, 0)))

	assertNoMatch(t, q)
	assert.Equal(t, 2, q.Len())
}

func TestClosestCriteriaWins(t *testing.T) {
	q, _, clk := newTestQueue(t, 600)

	require.NoError(t, q.Enqueue(1, tc(600, 0)))
	clk.Advance(time.Second)
	require.NoError(t, q.Enqueue(2, tc(320, 5)))
	clk.Advance(time.Second)
	require.NoError(t, q.Enqueue(3, tc(300, 5)))

	// User 1 has waited longest, but user 2's criteria are far closer.
	m := popMatch(t, q)
	assert.Equal(t, domain.UserID(2), m.PlayerA.UserID)
	assert.Equal(t, domain.UserID(3), m.PlayerB.UserID)
	assert.True(t, q.IsWaiting(1))
}

func TestEqualGapFallsBackToFIFO(t *testing.T) {
	q, _, clk := newTestQueue(t, 0)

	require.NoError(t, q.Enqueue(1, tc(300, 5)))
	clk.Advance(time.Second)
	require.NoError(t, q.Enqueue(2, tc(180, 2)))
	clk.Advance(time.Second)
	require.NoError(t, q.Enqueue(3, tc(300, 5)))

	m := popMatch(t, q)
	assert.Equal(t, domain.UserID(1), m.PlayerA.UserID)
	assert.Equal(t, domain.UserID(3), m.PlayerB.UserID)
}

func TestLongerWaitingPlayersCriteriaWin(t *testing.T) {
	q, _, clk := newTestQueue(t, 600)

	require.NoError(t, q.Enqueue(1, tc(300, 5)))
	clk.Advance(time.Second)
	require.NoError(t, q.Enqueue(2, tc(310, 5)))

	m := popMatch(t, q)
	assert.Equal(t, domain.UserID(1), m.PlayerA.UserID)
	assert.Equal(t, tc(300, 5), m.Criteria)
}

func TestReEnqueueReplacesEntry(t *testing.T) {
	q, _, _ := newTestQueue(t, 0)

	require.NoError(t, q.Enqueue(1, tc(300, 5)))
	require.NoError(t, q.Enqueue(1, tc(600, 0)))
	assert.Equal(t, 1, q.Len(), "re-enqueueing must not duplicate the entry")

	// The replacement carries the new criteria.
	require.NoError(t, q.Enqueue(2, tc(600, 0)))
	m := popMatch(t, q)
	assert.Equal(t, tc(600, 0), m.Criteria)
}

func TestActivePlayerCannotWait(t *testing.T) {
	q, active, _ := newTestQueue(t, 0)
	active.busy[1] = true

	assert.ErrorIs(t, q.Enqueue(1, tc(300, 5)), domain.ErrAlreadyInGame)
	assert.False(t, q.IsWaiting(1))
}

func TestDequeue(t *testing.T) {
	q, _, _ := newTestQueue(t, 0)

	require.NoError(t, q.Enqueue(1, tc(300, 5)))
	q.Dequeue(1)
	assert.False(t, q.IsWaiting(1))

	// Dequeueing an absent user is harmless.
	q.Dequeue(42)

	// And the departed player can no longer be paired.
	require.NoError(t, q.Enqueue(2, tc(300, 5)))
	assertNoMatch(t, q)
}

func TestFullMatchBufferDoesNotStallTheQueue(t *testing.T) {
	q, _, _ := newTestQueue(t, 0)

	// Fill the match buffer with no listener draining it.
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Enqueue(domain.UserID(1000+2*i), tc(300, 5)))
		require.NoError(t, q.Enqueue(domain.UserID(1001+2*i), tc(300, 5)))
	}

	// The next pairing blocks on the emit, but only that caller: other queue
	// operations must still get through.
	go func() {
		q.Enqueue(1, tc(300, 5))
		q.Enqueue(2, tc(300, 5))
	}()
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		q.Dequeue(42)
		q.Len()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue operations stalled behind a full match buffer")
	}

	// Unblock the emitting goroutine before the test exits.
	<-q.Matches()
}

type fakeStarter struct {
	mu        sync.Mutex
	failFirst bool
	started   [][2]domain.UserID
	done      chan struct{}
}

func newFakeStarter(failFirst bool) *fakeStarter {
	return &fakeStarter{failFirst: failFirst, done: make(chan struct{}, 1)}
}

func (s *fakeStarter) StartMatch(a, b domain.UserID, tc domain.TimeControl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFirst {
		s.failFirst = false
		return domain.ErrAlreadyInGame
	}
	s.started = append(s.started, [2]domain.UserID{a, b})
	s.done <- struct{}{}
	return nil
}

func (s *fakeStarter) pairs() [][2]domain.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]domain.UserID(nil), s.started...)
}

func waitForStart(t *testing.T, s *fakeStarter) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a session to start")
	}
}

func TestListenStartsSessions(t *testing.T) {
	q, _, _ := newTestQueue(t, 0)
	starter := newFakeStarter(false)
	go Listen(q, starter)

	require.NoError(t, q.Enqueue(1, tc(300, 5)))
	require.NoError(t, q.Enqueue(2, tc(300, 5)))

	waitForStart(t, starter)
	pairs := starter.pairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, [2]domain.UserID{1, 2}, pairs[0])
}

func TestListenRequeuesPairOnStartFailure(t *testing.T) {
	q, _, _ := newTestQueue(t, 0)
	starter := newFakeStarter(true)
	go Listen(q, starter)

	require.NoError(t, q.Enqueue(1, tc(300, 5)))
	require.NoError(t, q.Enqueue(2, tc(300, 5)))

	// The first start fails; both players go back into the pool, re-pair and
	// the retry succeeds. Nobody is lost.
	waitForStart(t, starter)
	require.Len(t, starter.pairs(), 1)
	assert.Equal(t, 0, q.Len())
}
