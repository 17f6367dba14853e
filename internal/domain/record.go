package domain

import "time"

// Move is an opaque, already-validated move as accepted into a session's log.
type Move struct {
	Payload  string    `json:"payload"`
	By       UserID    `json:"by"`
	Color    Color     `json:"color"`
	PlayedAt time.Time `json:"playedAt"`
}

// GameRecord is the terminal outcome handed to the persistence collaborator
// once a session leaves the active set. It is the only thing retained about a
// finished game.
type GameRecord struct {
	SessionID   string      `json:"sessionId"`
	WhiteID     UserID      `json:"whiteId"`
	BlackID     UserID      `json:"blackId"`
	Outcome     Outcome     `json:"outcome"`
	Reason      EndReason   `json:"reason"`
	TimeControl TimeControl `json:"timeControl"`
	Moves       []Move      `json:"moves"`
	CreatedAt   time.Time   `json:"createdAt"`
	FinishedAt  time.Time   `json:"finishedAt"`
}

// Winner returns the winning user and true, or false for draws and aborts.
func (r GameRecord) Winner() (UserID, bool) {
	switch r.Outcome {
	case OutcomeWhiteWon:
		return r.WhiteID, true
	case OutcomeBlackWon:
		return r.BlackID, true
	}
	return 0, false
}
