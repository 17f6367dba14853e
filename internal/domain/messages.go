package domain

type ClientMessage struct {
	Type         string       `json:"type"`
	JWT          string       `json:"jwt,omitempty"`
	SessionID    string       `json:"sessionId,omitempty"`
	Move         string       `json:"move,omitempty"`
	Result       MoveResult   `json:"result,omitempty"`
	Accept       bool         `json:"accept,omitempty"`
	InvitationID string       `json:"invitationId,omitempty"`
	Criteria     *TimeControl `json:"criteria,omitempty"`
}

type ServerMessage struct {
	Type         string       `json:"type"`
	Message      string       `json:"message,omitempty"`
	SessionID    string       `json:"sessionId,omitempty"`
	Opponent     UserID       `json:"opponent,omitempty"`
	Color        Color        `json:"color,omitempty"`
	Move         string       `json:"move,omitempty"`
	NextTurn     Color        `json:"nextTurn,omitempty"`
	Reason       EndReason    `json:"reason,omitempty"`
	Outcome      Outcome      `json:"outcome,omitempty"`
	InvitationID string       `json:"invitationId,omitempty"`
	From         UserID       `json:"from,omitempty"`
	Accepted     *bool        `json:"accepted,omitempty"`
	Criteria     *TimeControl `json:"criteria,omitempty"`
}
