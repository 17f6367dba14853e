package rematch

import (
	"log"
	"sync"
	"time"

	"github.com/arenachess/backend/internal/dependencies/clock"
	"github.com/arenachess/backend/internal/domain"
	"github.com/arenachess/backend/internal/scheduler"
	"github.com/arenachess/backend/pkg/uid"
)

type Notifier interface {
	Send(userID domain.UserID, msg domain.ServerMessage) error
}

// SessionStarter creates the new session for an accepted rematch, pairing the
// two players directly without a queue search. Implemented by the game
// session manager.
type SessionStarter interface {
	StartMatch(a, b domain.UserID, tc domain.TimeControl) error
}

// Presence reports whether a user currently holds any live connection.
// Implemented by the connection registry.
type Presence interface {
	IsOnline(userID domain.UserID) bool
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

// Invitation is one rematch proposal. Every state but Pending is terminal.
type Invitation struct {
	ID        string
	SessionID string
	From      domain.UserID
	To        domain.UserID
	ExpiresAt time.Time
	Status    Status

	tc domain.TimeControl
}

// endedGame is a session that ended recently enough for either participant to
// propose a rematch.
type endedGame struct {
	white domain.UserID
	black domain.UserID
	tc    domain.TimeControl
}

// Negotiator tracks rematch eligibility and the invitation lifecycle.
type Negotiator struct {
	mu        sync.Mutex
	eligible  map[string]endedGame // sessionID → pairing
	invites   map[string]*Invitation
	bySession map[string]string // sessionID → latest invitation ID

	notifier     Notifier
	starter      SessionStarter
	presence     Presence
	sched        scheduler.Scheduler
	clk          clock.Clock
	window       time.Duration
	offlineGrace time.Duration
}

func NewNegotiator(notifier Notifier, starter SessionStarter, presence Presence, sched scheduler.Scheduler, clk clock.Clock, window, offlineGrace time.Duration) *Negotiator {
	return &Negotiator{
		eligible:     make(map[string]endedGame),
		invites:      make(map[string]*Invitation),
		bySession:    make(map[string]string),
		notifier:     notifier,
		starter:      starter,
		presence:     presence,
		sched:        sched,
		clk:          clk,
		window:       window,
		offlineGrace: offlineGrace,
	}
}

// SessionEnded registers a finished session as rematch-eligible for one
// window. Wired as the session manager's ended hook.
func (n *Negotiator) SessionEnded(rec domain.GameRecord) {
	n.mu.Lock()
	n.eligible[rec.SessionID] = endedGame{
		white: rec.WhiteID,
		black: rec.BlackID,
		tc:    rec.TimeControl,
	}
	n.mu.Unlock()

	n.sched.Schedule(n.window, func() {
		n.mu.Lock()
		delete(n.eligible, rec.SessionID)
		n.mu.Unlock()
	})
}

// Propose creates a Pending invitation from one participant of an ended
// session to the other and notifies them.
func (n *Negotiator) Propose(sessionID string, from domain.UserID) (*Invitation, error) {
	n.mu.Lock()

	game, ok := n.eligible[sessionID]
	if !ok {
		n.mu.Unlock()
		return nil, domain.ErrRematchIneligible
	}

	var to domain.UserID
	switch from {
	case game.white:
		to = game.black
	case game.black:
		to = game.white
	default:
		n.mu.Unlock()
		return nil, domain.ErrNotParticipant
	}

	if prevID, exists := n.bySession[sessionID]; exists {
		if prev := n.invites[prevID]; prev != nil && prev.Status == StatusPending {
			n.mu.Unlock()
			return nil, domain.ErrInviteExists
		}
	}

	inv := &Invitation{
		ID:        uid.NewInvitationID(),
		SessionID: sessionID,
		From:      from,
		To:        to,
		ExpiresAt: n.clk.Now().Add(n.window),
		Status:    StatusPending,
		tc:        game.tc,
	}
	n.invites[inv.ID] = inv
	n.bySession[sessionID] = inv.ID
	n.mu.Unlock()

	log.Printf("[REMATCH] User %d proposed a rematch of session %s (invitation %s)", from, sessionID, inv.ID)

	n.sched.Schedule(n.window, func() {
		n.expire(inv.ID)
	})

	n.notifier.Send(to, domain.ServerMessage{
		Type:         "rematch_proposed",
		InvitationID: inv.ID,
		SessionID:    sessionID,
		From:         from,
	})
	return inv, nil
}

// Respond lets the addressed user accept or decline while the invitation is
// still Pending and unexpired. Accepting immediately starts the new session.
func (n *Negotiator) Respond(invitationID string, userID domain.UserID, accept bool) error {
	n.mu.Lock()

	inv, ok := n.invites[invitationID]
	if !ok {
		n.mu.Unlock()
		return domain.ErrInviteNotFound
	}
	if inv.Status != StatusPending {
		n.mu.Unlock()
		return domain.ErrInviteNotPending
	}
	if userID != inv.To {
		n.mu.Unlock()
		return domain.ErrInviteForeign
	}
	if n.clk.Now().After(inv.ExpiresAt) {
		// The expiry task lost a race; resolve it here instead.
		inv.Status = StatusExpired
		n.mu.Unlock()
		n.notifyResolved(inv, false)
		return domain.ErrInviteNotPending
	}

	if !accept {
		inv.Status = StatusDeclined
		n.mu.Unlock()

		log.Printf("[REMATCH] User %d declined invitation %s", userID, inv.ID)
		n.notifyResolved(inv, false)
		return nil
	}

	inv.Status = StatusAccepted
	from, to, tc := inv.From, inv.To, inv.tc
	n.mu.Unlock()

	log.Printf("[REMATCH] User %d accepted invitation %s", userID, inv.ID)
	n.notifyResolved(inv, true)

	if err := n.starter.StartMatch(from, to, tc); err != nil {
		log.Printf("[REMATCH] Could not start rematch for invitation %s: %v", inv.ID, err)
		return err
	}
	return nil
}

// HandleOffline defers judgment on a user whose last connection dropped. Only
// if they are still offline once the grace window passes are their pending
// invitations treated as an implicit decline; a transient drop that comes
// back in time changes nothing.
func (n *Negotiator) HandleOffline(userID domain.UserID) {
	n.sched.Schedule(n.offlineGrace, func() {
		if n.presence.IsOnline(userID) {
			return
		}
		n.declinePendingFor(userID)
	})
}

func (n *Negotiator) declinePendingFor(userID domain.UserID) {
	n.mu.Lock()
	var resolved []*Invitation
	for _, inv := range n.invites {
		if inv.Status != StatusPending {
			continue
		}
		if inv.From == userID || inv.To == userID {
			inv.Status = StatusDeclined
			resolved = append(resolved, inv)
		}
	}
	n.mu.Unlock()

	for _, inv := range resolved {
		log.Printf("[REMATCH] Invitation %s invalidated: user %d did not reconnect", inv.ID, userID)
		n.notifyResolved(inv, false)
	}
}

// expire fires from the scheduler; it re-checks the invitation is still the
// Pending one it was armed for before acting.
func (n *Negotiator) expire(invitationID string) {
	n.mu.Lock()
	inv, ok := n.invites[invitationID]
	if !ok || inv.Status != StatusPending {
		n.mu.Unlock()
		return
	}
	inv.Status = StatusExpired
	n.mu.Unlock()

	log.Printf("[REMATCH] Invitation %s expired with no response", inv.ID)
	n.notifyResolved(inv, false)
}

func (n *Negotiator) notifyResolved(inv *Invitation, accepted bool) {
	msg := domain.ServerMessage{
		Type:         "rematch_resolved",
		InvitationID: inv.ID,
		SessionID:    inv.SessionID,
		Accepted:     &accepted,
	}
	n.notifier.Send(inv.From, msg)
	n.notifier.Send(inv.To, msg)
}

// Invitation returns a snapshot of an invitation, for tests and diagnostics.
func (n *Negotiator) Invitation(invitationID string) (Invitation, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	inv, ok := n.invites[invitationID]
	if !ok {
		return Invitation{}, false
	}
	return *inv, true
}

// SweepResolved drops terminal invitations whose expiry has passed. The
// cleanup worker calls this so the maps don't grow without bound.
func (n *Negotiator) SweepResolved() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clk.Now()
	count := 0
	for id, inv := range n.invites {
		if inv.Status == StatusPending || now.Before(inv.ExpiresAt) {
			continue
		}
		delete(n.invites, id)
		if n.bySession[inv.SessionID] == id {
			delete(n.bySession, inv.SessionID)
		}
		count++
	}
	return count
}
