package workers

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"log/slog"
)

var _ contract.Worker = (*ConversationWorker)(nil)

// ConversationWorker is the single consumer of one conversation's change events.
// Events are applied one at a time, in the order the feed delivered them.
type ConversationWorker struct {
	conversationID domain.ConversationID
	inbox          *Mailbox[event.ChangeEvent]
	apply          func(event.ChangeEvent)
	log            *slog.Logger
}

func NewConversationWorker(
	conversationID domain.ConversationID,
	inbox *Mailbox[event.ChangeEvent],
	apply func(event.ChangeEvent),
	log *slog.Logger) *ConversationWorker {
	return &ConversationWorker{
		conversationID: conversationID,
		inbox:          inbox,
		apply:          apply,
		log:            log,
	}
}

func (w *ConversationWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping conversation worker", "conversation", w.conversationID)
			return ctx.Err()
		case <-w.inbox.Done():
			w.log.Debug("Conversation closed", "conversation", w.conversationID)
			return nil
		case <-w.inbox.Ready():
			for _, evt := range w.inbox.Drain() {
				w.apply(evt)
			}
		}
	}
}
