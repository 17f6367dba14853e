package game

import (
	"log"
	"sync"
	"time"

	"github.com/arenachess/backend/internal/dependencies/clock"
	"github.com/arenachess/backend/internal/dependencies/random"
	"github.com/arenachess/backend/internal/domain"
	"github.com/arenachess/backend/internal/scheduler"
	"github.com/arenachess/backend/pkg/uid"
)

// Notifier delivers a message to every live connection of a user. Implemented
// by the presence registry; delivery to an offline user is a silent no-op.
type Notifier interface {
	Send(userID domain.UserID, msg domain.ServerMessage) error
}

// Archiver receives the terminal record of each finished session. It must not
// block and its failures must never reach gameplay.
type Archiver interface {
	Save(rec domain.GameRecord)
}

// Dequeuer removes a user's waiting entry when they are seated in a session.
// Implemented by the matchmaking queue; sessions can also start through the
// rematch path, where the players may still be waiting in the pool.
type Dequeuer interface {
	Dequeue(userID domain.UserID)
}

// EndedHook is called after a session has ended and left the active set,
// making it eligible for a rematch proposal.
type EndedHook func(rec domain.GameRecord)

type Config struct {
	MoveTimeout time.Duration
	GracePeriod time.Duration
}

// Manager owns the set of active sessions and routes events into them.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	userIndex map[domain.UserID]string

	notifier Notifier
	archive  Archiver
	sched    scheduler.Scheduler
	clk      clock.Clock
	rnd      random.Random
	cfg      Config
	onEnded  EndedHook
	dequeue  Dequeuer
}

func NewManager(notifier Notifier, archive Archiver, sched scheduler.Scheduler, clk clock.Clock, rnd random.Random, cfg Config) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		userIndex: make(map[domain.UserID]string),
		notifier:  notifier,
		archive:   archive,
		sched:     sched,
		clk:       clk,
		rnd:       rnd,
		cfg:       cfg,
	}
}

// SetEndedHook wires the rematch negotiator in after construction.
func (m *Manager) SetEndedHook(h EndedHook) {
	m.onEnded = h
}

// SetDequeuer wires the matchmaking queue in after construction.
func (m *Manager) SetDequeuer(d Dequeuer) {
	m.dequeue = d
}

// CreateSession allocates a session between two distinct users, assigns colors
// by coin flip, arms the first turn clock and notifies both players.
func (m *Manager) CreateSession(a, b domain.UserID, tc domain.TimeControl) (*Session, error) {
	if a == b {
		return nil, domain.ErrSelfPairing
	}

	m.mu.Lock()
	if _, busy := m.userIndex[a]; busy {
		m.mu.Unlock()
		return nil, domain.ErrAlreadyInGame
	}
	if _, busy := m.userIndex[b]; busy {
		m.mu.Unlock()
		return nil, domain.ErrAlreadyInGame
	}

	white, black := a, b
	if m.rnd.Intn(2) == 1 {
		white, black = b, a
	}

	s := &Session{
		id:        uid.NewSessionID(),
		white:     white,
		black:     black,
		tc:        tc,
		createdAt: m.clk.Now(),
		status:    domain.StatusActive,
		turn:      domain.White,
		offline:   make(map[domain.UserID]bool),
		m:         m,
	}
	m.sessions[s.id] = s
	m.userIndex[white] = s.id
	m.userIndex[black] = s.id
	m.mu.Unlock()

	// Seating the pair claims any waiting entries they still hold, so a user
	// is never in the pool and an active session at once. The userIndex is
	// already set, so a concurrent Enqueue is rejected.
	if m.dequeue != nil {
		m.dequeue.Dequeue(white)
		m.dequeue.Dequeue(black)
	}

	log.Printf("[SESSION] Created session %s: user %d (white) vs user %d (black)", s.id, white, black)

	s.mu.Lock()
	s.armForfeitLocked(white, m.cfg.MoveTimeout)
	s.mu.Unlock()

	m.notifier.Send(white, domain.ServerMessage{
		Type:      "matched",
		SessionID: s.id,
		Opponent:  black,
		Color:     domain.White,
		Criteria:  &tc,
	})
	m.notifier.Send(black, domain.ServerMessage{
		Type:      "matched",
		SessionID: s.id,
		Opponent:  white,
		Color:     domain.Black,
		Criteria:  &tc,
	})

	return s, nil
}

// StartMatch satisfies the matchmaking SessionStarter interface.
func (m *Manager) StartMatch(a, b domain.UserID, tc domain.TimeControl) error {
	_, err := m.CreateSession(a, b, tc)
	return err
}

func (m *Manager) SessionByID(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

func (m *Manager) SessionByUser(userID domain.UserID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.userIndex[userID]
	if !ok {
		return nil, false
	}
	s, ok := m.sessions[id]
	return s, ok
}

// HasActiveSession satisfies the matchmaking ActiveGames interface.
func (m *Manager) HasActiveSession(userID domain.UserID) bool {
	_, ok := m.SessionByUser(userID)
	return ok
}

// ActiveCount returns the number of sessions in the active set.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) SubmitMove(sessionID string, userID domain.UserID, payload string, result domain.MoveResult) error {
	return m.withSession(sessionID, func(s *Session) error {
		return s.SubmitMove(userID, payload, result)
	})
}

func (m *Manager) Resign(sessionID string, userID domain.UserID) error {
	return m.withSession(sessionID, func(s *Session) error {
		return s.Resign(userID)
	})
}

func (m *Manager) Abandon(sessionID string, userID domain.UserID) error {
	return m.withSession(sessionID, func(s *Session) error {
		return s.Abandon(userID)
	})
}

func (m *Manager) OfferDraw(sessionID string, userID domain.UserID) error {
	return m.withSession(sessionID, func(s *Session) error {
		return s.OfferDraw(userID)
	})
}

func (m *Manager) RespondDraw(sessionID string, userID domain.UserID, accept bool) error {
	return m.withSession(sessionID, func(s *Session) error {
		return s.RespondDraw(userID, accept)
	})
}

// HandleDisconnect starts the grace period for whatever session the user is
// in. Called by the transport when a user's last connection drops.
func (m *Manager) HandleDisconnect(userID domain.UserID) {
	if s, ok := m.SessionByUser(userID); ok {
		s.handleDisconnect(userID)
	}
}

// HandleReconnect resumes play if the user was inside a grace window.
func (m *Manager) HandleReconnect(userID domain.UserID) {
	if s, ok := m.SessionByUser(userID); ok {
		s.handleReconnect(userID)
	}
}

// withSession escalates a panic inside a session's critical section by
// force-aborting that session only; the process and all other sessions keep
// running.
func (m *Manager) withSession(sessionID string, fn func(*Session) error) (err error) {
	s, ok := m.SessionByID(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SESSION] Invariant violation in session %s: %v - force-aborting", sessionID, r)
			m.forceAbort(s)
			err = domain.ErrSessionNotActive
		}
	}()

	return fn(s)
}

func (m *Manager) forceAbort(s *Session) {
	s.mu.Lock()
	if s.status != domain.StatusActive {
		s.mu.Unlock()
		return
	}
	rec := s.abortLocked()
	s.mu.Unlock()
	m.finalize(s, rec)
}

// finalize runs after a session's terminal transition, outside its lock:
// evict from the active set, notify both players, then hand the record off.
func (m *Manager) finalize(s *Session, rec domain.GameRecord) {
	m.mu.Lock()
	if m.userIndex[s.white] == s.id {
		delete(m.userIndex, s.white)
	}
	if m.userIndex[s.black] == s.id {
		delete(m.userIndex, s.black)
	}
	delete(m.sessions, s.id)
	m.mu.Unlock()

	ended := domain.ServerMessage{
		Type:      "session_ended",
		SessionID: rec.SessionID,
		Reason:    rec.Reason,
		Outcome:   rec.Outcome,
	}
	m.notifier.Send(s.white, ended)
	m.notifier.Send(s.black, ended)

	if rec.Outcome == domain.OutcomeNone {
		// Aborted sessions never produced a valid outcome; nothing to persist
		// and nothing to rematch.
		return
	}

	m.archive.Save(rec)
	if m.onEnded != nil {
		m.onEnded(rec)
	}
}

// SweepStale aborts sessions that have somehow outlived any plausible game.
// Timers should make this unreachable; the cleanup worker calls it anyway.
func (m *Manager) SweepStale(maxAge time.Duration) int {
	m.mu.RLock()
	var stale []*Session
	now := m.clk.Now()
	for _, s := range m.sessions {
		if now.Sub(s.createdAt) > maxAge {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range stale {
		log.Printf("[SESSION] Sweeping stale session %s", s.id)
		m.forceAbort(s)
	}
	return len(stale)
}
