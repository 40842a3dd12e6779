// Package event models the change feed.
// Raw row images are decoded once, at the subscription boundary, into the
// typed ChangeEvent variant consumed by every downstream component.
package event

import (
	"chat-sync/domain"

	"google.golang.org/protobuf/types/known/structpb"
)

type RecordType string

const (
	MessagesTable RecordType = "messages"
	PresenceTable RecordType = "presence"
)

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// RawChange is a row-level change as pushed by the backend feed.
// New holds the row image after the change and is nil for deletes.
type RawChange struct {
	Table RecordType
	Type  ChangeType
	New   *structpb.Struct
}

// ChangeEvent is the tagged variant {MessageInserted, PresenceUpserted}.
type ChangeEvent interface {
	ConversationID() domain.ConversationID
}

type MessageInserted struct {
	Message domain.Message
}

func (m MessageInserted) ConversationID() domain.ConversationID {
	return m.Message.ConversationID
}

type PresenceUpserted struct {
	Presence domain.Presence
}

func (p PresenceUpserted) ConversationID() domain.ConversationID {
	return p.Presence.ConversationID
}
