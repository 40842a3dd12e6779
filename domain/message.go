// Package domain contains core concepts of the chat synchronization engine.
// This file defines Message values and their ordering rules.
// Messages are immutable once created, except for the read flag.
package domain

import (
	"time"
)

type ConversationID string

type ParticipantID string

type MessageID string

// Message represents a chat message as emitted by the backend.
type Message struct {
	ID             MessageID      `validate:"required"`
	ConversationID ConversationID `validate:"required"`
	SenderID       ParticipantID  `validate:"required"`
	Content        string
	Read           bool
	CreatedAt      time.Time
	// Sender is only set when the backend joined the sender profile.
	Sender *Profile
}

// IsFrom reports whether the message was written by the given participant.
func (m Message) IsFrom(participantID ParticipantID) bool {
	return m.SenderID == participantID
}

// MessageLess orders messages by creation time, ties broken by id.
func MessageLess(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
