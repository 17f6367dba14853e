package jobs

import (
	"log"
	"time"

	"github.com/arenachess/backend/internal/service/game"
	"github.com/arenachess/backend/internal/service/rematch"
)

// StartCleanupWorker sweeps sessions that outlived any plausible game and
// rematch invitations that already resolved. Returns a stop function.
func StartCleanupWorker(games *game.Manager, rematches *rematch.Negotiator, interval, maxSessionAge time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if n := games.SweepStale(maxSessionAge); n > 0 {
					log.Printf("[CLEANUP] Swept %d stale sessions", n)
				}
				if n := rematches.SweepResolved(); n > 0 {
					log.Printf("[CLEANUP] Swept %d resolved rematch invitations", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	log.Printf("[CLEANUP] Cleanup worker started (every %s)", interval)
	return func() { close(done) }
}
