//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives every change event once it has been applied locally.
type EventSink interface {
	Consume(ctx context.Context, e event.ChangeEvent) error
}

type SubscriptionID string

// Filter scopes a subscription to the rows of one conversation.
type Filter struct {
	ConversationID domain.ConversationID
}

// ChangeHandler is invoked by the backend for every matching change, in emission order.
// It must not block.
type ChangeHandler func(change event.RawChange)

// Backend is the row-oriented record store the engine synchronizes against.
type Backend interface {
	CreateMessage(ctx context.Context, conversationID domain.ConversationID, senderID domain.ParticipantID, text string) (domain.Message, error)
	// LoadMessages returns the full history ordered ascending by creation time.
	LoadMessages(ctx context.Context, conversationID domain.ConversationID) ([]domain.Message, error)
	// MarkMessagesRead flips read=true on every unread message of the conversation
	// not sent by excludeSenderID and created at or before upTo, and returns how many rows changed.
	MarkMessagesRead(ctx context.Context, conversationID domain.ConversationID, excludeSenderID domain.ParticipantID, upTo time.Time) (int, error)
	// UpsertPresence is keyed by (conversationID, participantID).
	UpsertPresence(ctx context.Context, conversationID domain.ConversationID, participantID domain.ParticipantID, typing bool) error
	CountUnread(ctx context.Context, conversationID domain.ConversationID, viewerID domain.ParticipantID) (int, error)
	Subscribe(table event.RecordType, filter Filter, onEvent ChangeHandler) (SubscriptionID, error)
	// Unsubscribe guarantees that the handler is never invoked once it returns.
	Unsubscribe(id SubscriptionID) error
}

// Membership resolves which conversations a user takes part in.
type Membership interface {
	ConversationIDsForUser(ctx context.Context, userID domain.ParticipantID) ([]domain.ConversationID, error)
}

// Notifier surfaces a new incoming message to the user. Fire-and-forget.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, senderLabel, text string, conversationID domain.ConversationID) error
}
