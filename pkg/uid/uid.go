package uid

import "github.com/google/uuid"

// NewSessionID returns a unique identifier for a game session.
func NewSessionID() string {
	return uuid.NewString()
}

// NewInvitationID returns a unique identifier for a rematch invitation.
func NewInvitationID() string {
	return uuid.NewString()
}
