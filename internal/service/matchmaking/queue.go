package matchmaking

import (
	"log"
	"sync"
	"time"

	"github.com/arenachess/backend/internal/dependencies/clock"
	"github.com/arenachess/backend/internal/domain"
)

// ActiveGames is the view of the session manager the queue needs: a user who
// is already playing may not wait for another game.
type ActiveGames interface {
	HasActiveSession(userID domain.UserID) bool
}

type WaitingEntry struct {
	UserID     domain.UserID
	Criteria   domain.TimeControl
	EnqueuedAt time.Time
}

// Match is a claimed pair of waiting entries. Both entries have already been
// removed from the pool by the time a Match is emitted.
type Match struct {
	PlayerA  WaitingEntry // the longer-waiting player
	PlayerB  WaitingEntry
	Criteria domain.TimeControl
}

// Queue holds users seeking a game and pairs compatible entries.
type Queue struct {
	mu      sync.Mutex
	waiting map[domain.UserID]*WaitingEntry
	matches chan Match

	active           ActiveGames
	clk              clock.Clock
	toleranceSeconds int
}

func NewQueue(active ActiveGames, clk clock.Clock, toleranceSeconds int) *Queue {
	return &Queue{
		waiting:          make(map[domain.UserID]*WaitingEntry),
		matches:          make(chan Match, 100),
		active:           active,
		clk:              clk,
		toleranceSeconds: toleranceSeconds,
	}
}

func (q *Queue) Matches() <-chan Match {
	return q.matches
}

// Enqueue adds a user to the waiting pool and attempts an immediate pairing.
// Re-enqueuing replaces the existing entry; a user in an active game is
// rejected.
func (q *Queue) Enqueue(userID domain.UserID, criteria domain.TimeControl) error {
	if q.active.HasActiveSession(userID) {
		return domain.ErrAlreadyInGame
	}

	q.mu.Lock()
	entry := &WaitingEntry{
		UserID:     userID,
		Criteria:   criteria,
		EnqueuedAt: q.clk.Now(),
	}
	q.waiting[userID] = entry

	log.Printf("[QUEUE] User %d waiting (%d+%d)", userID, criteria.InitialSeconds, criteria.IncrementSeconds)
	match := q.tryPairLocked(entry)
	q.mu.Unlock()

	// The pair is already claimed; emitting outside the lock means a slow
	// listener can only stall this caller, never the whole queue.
	if match != nil {
		q.matches <- *match
	}
	return nil
}

// Dequeue removes the user's waiting entry if present; no-op otherwise.
func (q *Queue) Dequeue(userID domain.UserID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.waiting[userID]; exists {
		delete(q.waiting, userID)
		log.Printf("[QUEUE] User %d left the queue", userID)
	}
}

// IsWaiting reports whether the user currently has a waiting entry.
func (q *Queue) IsWaiting(userID domain.UserID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, exists := q.waiting[userID]
	return exists
}

// Len returns the number of waiting entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// tryPairLocked scans the pool for the best-compatible opponent: smallest
// time-control gap within tolerance, earliest EnqueuedAt among ties. Both
// entries are removed atomically under q.mu, so concurrent pairings can never
// claim the same entry twice. The claimed match is returned for the caller to
// emit after releasing the lock.
func (q *Queue) tryPairLocked(entry *WaitingEntry) *Match {
	var best *WaitingEntry
	bestGap := -1

	for _, candidate := range q.waiting {
		if candidate.UserID == entry.UserID {
			continue
		}
		gap := criteriaGap(entry.Criteria, candidate.Criteria)
		if gap > q.toleranceSeconds {
			continue
		}
		if best == nil || gap < bestGap ||
			(gap == bestGap && candidate.EnqueuedAt.Before(best.EnqueuedAt)) {
			best = candidate
			bestGap = gap
		}
	}

	if best == nil {
		return nil
	}

	delete(q.waiting, entry.UserID)
	delete(q.waiting, best.UserID)

	// The longer-waiting player is PlayerA and their criteria win.
	a, b := *best, *entry
	if entry.EnqueuedAt.Before(best.EnqueuedAt) {
		a, b = *entry, *best
	}

	log.Printf("[QUEUE] Paired user %d with user %d (gap %ds)", a.UserID, b.UserID, bestGap)
	return &Match{PlayerA: a, PlayerB: b, Criteria: a.Criteria}
}

func criteriaGap(a, b domain.TimeControl) int {
	return abs(a.InitialSeconds-b.InitialSeconds) + abs(a.IncrementSeconds-b.IncrementSeconds)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
