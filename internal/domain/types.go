package domain

// UserID is the opaque stable identity supplied by the upstream auth layer.
// The engine never interprets it beyond equality.
type UserID int64

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

type SessionStatus string

const (
	StatusActive  SessionStatus = "active"
	StatusEnded   SessionStatus = "ended"
	StatusAborted SessionStatus = "aborted"
)

// EndReason classifies how a session reached a terminal state.
type EndReason string

const (
	// ReasonNormal covers checkmate, stalemate, agreed draws and resignation —
	// outcomes produced by regular play.
	ReasonNormal EndReason = "normal"
	// ReasonForfeitTimeout means a grace or turn timer expired.
	ReasonForfeitTimeout EndReason = "forfeit_timeout"
	// ReasonAbandoned means a player explicitly walked away mid-game.
	ReasonAbandoned EndReason = "abandoned"
)

type Outcome string

const (
	OutcomeWhiteWon Outcome = "white_won"
	OutcomeBlackWon Outcome = "black_won"
	OutcomeDraw     Outcome = "draw"
	// OutcomeNone is used for aborted sessions that never produced a result.
	OutcomeNone Outcome = "none"
)

// MoveResult is asserted by the upstream rules collaborator alongside a
// validated move payload. "win" means the move ended the game in the mover's
// favor; "draw" means it ended the game drawn.
type MoveResult string

const (
	ResultOngoing MoveResult = ""
	ResultWin     MoveResult = "win"
	ResultDraw    MoveResult = "draw"
)

// TimeControl is the matchmaking criteria players seek games under.
type TimeControl struct {
	InitialSeconds   int `json:"initialSeconds"`
	IncrementSeconds int `json:"incrementSeconds"`
}

// basic error that can occur
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrNotYourTurn        Error = "not your turn"
	ErrNotParticipant     Error = "you are not a player in this game"
	ErrSessionNotFound    Error = "session not found"
	ErrSessionNotActive   Error = "session is no longer active"
	ErrAlreadyInGame      Error = "already in an active game"
	ErrSelfPairing        Error = "cannot play against yourself"
	ErrNoDrawOffer        Error = "no pending draw offer"
	ErrDrawAlreadyOffered Error = "draw already offered"
	ErrInviteNotFound     Error = "rematch invitation not found"
	ErrInviteNotPending   Error = "rematch invitation is no longer pending"
	ErrInviteForeign      Error = "rematch invitation is not addressed to you"
	ErrInviteExists       Error = "rematch already proposed for this game"
	ErrRematchIneligible  Error = "game is not eligible for a rematch"
)
