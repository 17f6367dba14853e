package matchmaking

import (
	"log"

	"github.com/arenachess/backend/internal/domain"
)

// SessionStarter creates a game session for a claimed pair. Implemented by the
// game session manager.
type SessionStarter interface {
	StartMatch(a, b domain.UserID, tc domain.TimeControl) error
}

// Listen consumes matches from the queue and hands each pair to the session
// manager. Run as a goroutine; returns when the queue's channel is never
// closed, i.e. for the life of the process.
func Listen(q *Queue, starter SessionStarter) {
	for match := range q.Matches() {
		log.Printf("[MATCHMAKING] Match found: user %d vs user %d", match.PlayerA.UserID, match.PlayerB.UserID)

		err := starter.StartMatch(match.PlayerA.UserID, match.PlayerB.UserID, match.Criteria)
		if err != nil {
			// One of the pair slipped into another game between pairing and
			// session creation. Put both back so neither is lost.
			log.Printf("[MATCHMAKING] Failed to start match: %v - re-queueing both players", err)
			if reErr := q.Enqueue(match.PlayerA.UserID, match.PlayerA.Criteria); reErr != nil {
				log.Printf("[MATCHMAKING] Could not re-queue user %d: %v", match.PlayerA.UserID, reErr)
			}
			if reErr := q.Enqueue(match.PlayerB.UserID, match.PlayerB.Criteria); reErr != nil {
				log.Printf("[MATCHMAKING] Could not re-queue user %d: %v", match.PlayerB.UserID, reErr)
			}
		}
	}
}
