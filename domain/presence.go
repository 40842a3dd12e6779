package domain

import "time"

// Presence is the shared typing record of one participant in one conversation.
// Each participant's own client is its only writer.
type Presence struct {
	ConversationID ConversationID `validate:"required"`
	ParticipantID  ParticipantID  `validate:"required"`
	Typing         bool
	UpdatedAt      time.Time
}

type TypingState int

const (
	// TypingIdle means no typing=true has been announced, or it has been withdrawn.
	TypingIdle TypingState = iota
	// TypingAnnouncing covers both the active and the cooling phase:
	// typing=true is published and a quiet timer is pending.
	TypingAnnouncing
)

func (s TypingState) String() string {
	switch s {
	case TypingAnnouncing:
		return "announcing"
	default:
		return "idle"
	}
}
