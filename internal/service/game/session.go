package game

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arenachess/backend/internal/domain"
	"github.com/arenachess/backend/internal/scheduler"
)

// Session is one active game between two players. All mutation happens under
// s.mu, so events against the same session are applied in receipt order.
type Session struct {
	id        string
	white     domain.UserID
	black     domain.UserID
	tc        domain.TimeControl
	createdAt time.Time

	mu          sync.Mutex
	status      domain.SessionStatus
	reason      domain.EndReason
	outcome     domain.Outcome
	turn        domain.Color
	moves       []domain.Move
	drawOfferBy *domain.UserID
	offline     map[domain.UserID]bool
	finishedAt  time.Time

	// forfeit is the single live timer slot for this session (turn clock or
	// disconnect grace, whichever was armed last). forfeitGen fences stale
	// callbacks that lost the race against Cancel.
	forfeit    scheduler.Handle
	forfeitGen uint64

	m *Manager
}

func (s *Session) ID() string { return s.id }

func (s *Session) Players() (white, black domain.UserID) {
	return s.white, s.black
}

func (s *Session) TimeControl() domain.TimeControl { return s.tc }

func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Turn() domain.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

func (s *Session) MoveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.moves)
}

func (s *Session) colorOf(userID domain.UserID) (domain.Color, bool) {
	switch userID {
	case s.white:
		return domain.White, true
	case s.black:
		return domain.Black, true
	}
	return "", false
}

func (s *Session) userOf(c domain.Color) domain.UserID {
	if c == domain.White {
		return s.white
	}
	return s.black
}

func (s *Session) opponentOf(userID domain.UserID) domain.UserID {
	if userID == s.white {
		return s.black
	}
	return s.white
}

// SubmitMove appends an already-validated move, flips the turn and re-arms the
// turn clock for the next player. A terminal result asserted by the rules
// collaborator ends the session.
func (s *Session) SubmitMove(userID domain.UserID, payload string, result domain.MoveResult) error {
	s.mu.Lock()

	if s.status != domain.StatusActive {
		s.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	color, ok := s.colorOf(userID)
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotParticipant
	}
	if s.turn != color {
		s.mu.Unlock()
		return domain.ErrNotYourTurn
	}

	s.moves = append(s.moves, domain.Move{
		Payload:  payload,
		By:       userID,
		Color:    color,
		PlayedAt: s.m.clk.Now(),
	})
	// Any pending draw offer lapses once play continues.
	s.drawOfferBy = nil

	switch result {
	case domain.ResultWin:
		rec := s.endLocked(domain.ReasonNormal, winnerOutcome(color))
		s.mu.Unlock()
		s.m.finalize(s, rec)
		return nil
	case domain.ResultDraw:
		rec := s.endLocked(domain.ReasonNormal, domain.OutcomeDraw)
		s.mu.Unlock()
		s.m.finalize(s, rec)
		return nil
	}

	s.turn = color.Opposite()
	s.armForfeitLocked(s.userOf(s.turn), s.m.cfg.MoveTimeout)

	msg := domain.ServerMessage{
		Type:      "move_applied",
		SessionID: s.id,
		Move:      payload,
		NextTurn:  s.turn,
	}
	s.mu.Unlock()

	s.m.notifier.Send(s.white, msg)
	s.m.notifier.Send(s.black, msg)
	return nil
}

// Resign ends the session in the opponent's favor. Final once applied.
func (s *Session) Resign(userID domain.UserID) error {
	return s.concede(userID, domain.ReasonNormal)
}

// Abandon is an explicit walk-away: same terminal transition as resigning but
// recorded under its own reason.
func (s *Session) Abandon(userID domain.UserID) error {
	return s.concede(userID, domain.ReasonAbandoned)
}

func (s *Session) concede(userID domain.UserID, reason domain.EndReason) error {
	s.mu.Lock()

	if s.status != domain.StatusActive {
		s.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	color, ok := s.colorOf(userID)
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotParticipant
	}

	rec := s.endLocked(reason, winnerOutcome(color.Opposite()))
	s.mu.Unlock()
	s.m.finalize(s, rec)
	return nil
}

// OfferDraw records a pending draw offer and notifies the opponent.
func (s *Session) OfferDraw(userID domain.UserID) error {
	s.mu.Lock()

	if s.status != domain.StatusActive {
		s.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	if _, ok := s.colorOf(userID); !ok {
		s.mu.Unlock()
		return domain.ErrNotParticipant
	}
	if s.drawOfferBy != nil {
		s.mu.Unlock()
		return domain.ErrDrawAlreadyOffered
	}

	offerer := userID
	s.drawOfferBy = &offerer
	opponent := s.opponentOf(userID)
	msg := domain.ServerMessage{Type: "draw_offered", SessionID: s.id, From: userID}
	s.mu.Unlock()

	s.m.notifier.Send(opponent, msg)
	return nil
}

// RespondDraw accepts or declines the pending offer. Accepting is final.
func (s *Session) RespondDraw(userID domain.UserID, accept bool) error {
	s.mu.Lock()

	if s.status != domain.StatusActive {
		s.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	if _, ok := s.colorOf(userID); !ok {
		s.mu.Unlock()
		return domain.ErrNotParticipant
	}
	if s.drawOfferBy == nil {
		s.mu.Unlock()
		return domain.ErrNoDrawOffer
	}
	if *s.drawOfferBy == userID {
		s.mu.Unlock()
		return fmt.Errorf("cannot respond to your own draw offer")
	}

	if accept {
		rec := s.endLocked(domain.ReasonNormal, domain.OutcomeDraw)
		s.mu.Unlock()
		s.m.finalize(s, rec)
		return nil
	}

	offerer := *s.drawOfferBy
	s.drawOfferBy = nil
	s.mu.Unlock()

	s.m.notifier.Send(offerer, domain.ServerMessage{Type: "draw_declined", SessionID: s.id, From: userID})
	return nil
}

// handleDisconnect marks the player offline and arms the grace timer. It does
// not end the session; only the timer firing or an explicit event does.
func (s *Session) handleDisconnect(userID domain.UserID) {
	s.mu.Lock()

	if s.status != domain.StatusActive {
		s.mu.Unlock()
		return
	}
	if _, ok := s.colorOf(userID); !ok {
		s.mu.Unlock()
		return
	}

	s.offline[userID] = true

	// Both players gone before a single move: nothing worth forfeiting over.
	if len(s.moves) == 0 && s.offline[s.white] && s.offline[s.black] {
		log.Printf("[SESSION] Aborting session %s: both players left before the first move", s.id)
		rec := s.abortLocked()
		s.mu.Unlock()
		s.m.finalize(s, rec)
		return
	}

	grace := s.m.cfg.GracePeriod
	if s.m.cfg.MoveTimeout < grace {
		grace = s.m.cfg.MoveTimeout
	}
	s.armForfeitLocked(userID, grace)

	opponent := s.opponentOf(userID)
	s.mu.Unlock()

	log.Printf("[SESSION] User %d disconnected from session %s, grace timer armed", userID, s.id)
	s.m.notifier.Send(opponent, domain.ServerMessage{
		Type:      "opponent_disconnected",
		SessionID: s.id,
		Message:   "Your opponent has disconnected. Waiting for reconnection...",
	})
}

// handleReconnect cancels the grace timer and resumes play with no state
// change. The turn clock is re-armed in full for the player to move.
func (s *Session) handleReconnect(userID domain.UserID) {
	s.mu.Lock()

	if s.status != domain.StatusActive || !s.offline[userID] {
		s.mu.Unlock()
		return
	}

	delete(s.offline, userID)
	s.armForfeitLocked(s.userOf(s.turn), s.m.cfg.MoveTimeout)

	color, _ := s.colorOf(userID)
	opponent := s.opponentOf(userID)
	resume := domain.ServerMessage{
		Type:      "session_resumed",
		SessionID: s.id,
		Opponent:  opponent,
		Color:     color,
		NextTurn:  s.turn,
	}
	s.mu.Unlock()

	log.Printf("[SESSION] User %d reconnected to session %s", userID, s.id)
	s.m.notifier.Send(userID, resume)
	s.m.notifier.Send(opponent, domain.ServerMessage{
		Type:      "opponent_reconnected",
		SessionID: s.id,
		Message:   "Your opponent has reconnected. Resuming the game.",
	})
}

// forfeitExpired runs when the armed timer fires. The generation check drops
// callbacks that were superseded by a legitimate state change racing the fire.
func (s *Session) forfeitExpired(gen uint64, target domain.UserID) {
	s.mu.Lock()

	if s.status != domain.StatusActive || gen != s.forfeitGen {
		s.mu.Unlock()
		return
	}

	color, ok := s.colorOf(target)
	if !ok {
		s.mu.Unlock()
		return
	}

	log.Printf("[SESSION] Forfeit timer fired for user %d in session %s", target, s.id)
	rec := s.endLocked(domain.ReasonForfeitTimeout, winnerOutcome(color.Opposite()))
	s.mu.Unlock()
	s.m.finalize(s, rec)
}

// armForfeitLocked replaces the session's timer slot: the previous timer is
// cancelled and fenced off in the same critical section that arms the new one,
// so at most one timer is ever live per session.
func (s *Session) armForfeitLocked(target domain.UserID, d time.Duration) {
	s.forfeitGen++
	gen := s.forfeitGen
	if s.forfeit != nil {
		s.forfeit.Cancel()
	}
	s.forfeit = s.m.sched.Schedule(d, func() {
		s.forfeitExpired(gen, target)
	})
}

func (s *Session) cancelForfeitLocked() {
	s.forfeitGen++
	if s.forfeit != nil {
		s.forfeit.Cancel()
		s.forfeit = nil
	}
}

// endLocked performs the terminal transition and returns the record for the
// persistence handoff. Callers must release s.mu before calling m.finalize.
func (s *Session) endLocked(reason domain.EndReason, outcome domain.Outcome) domain.GameRecord {
	s.cancelForfeitLocked()
	s.status = domain.StatusEnded
	s.reason = reason
	s.outcome = outcome
	s.finishedAt = s.m.clk.Now()
	s.drawOfferBy = nil

	moves := make([]domain.Move, len(s.moves))
	copy(moves, s.moves)

	return domain.GameRecord{
		SessionID:   s.id,
		WhiteID:     s.white,
		BlackID:     s.black,
		Outcome:     outcome,
		Reason:      reason,
		TimeControl: s.tc,
		Moves:       moves,
		CreatedAt:   s.createdAt,
		FinishedAt:  s.finishedAt,
	}
}

// abortLocked is the terminal transition for sessions that never produced a
// valid outcome. Aborted records are not handed to the archive.
func (s *Session) abortLocked() domain.GameRecord {
	s.cancelForfeitLocked()
	s.status = domain.StatusAborted
	s.outcome = domain.OutcomeNone
	s.finishedAt = s.m.clk.Now()
	s.drawOfferBy = nil

	return domain.GameRecord{
		SessionID:   s.id,
		WhiteID:     s.white,
		BlackID:     s.black,
		Outcome:     domain.OutcomeNone,
		TimeControl: s.tc,
		CreatedAt:   s.createdAt,
		FinishedAt:  s.finishedAt,
	}
}

func winnerOutcome(c domain.Color) domain.Outcome {
	if c == domain.White {
		return domain.OutcomeWhiteWon
	}
	return domain.OutcomeBlackWon
}
