package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/runtime/workers"
	"context"
	"sync"
)

// conversation is the sync state of one open conversation.
// mu serializes event application with close: once closed is set,
// nothing touches the projections on behalf of this conversation.
type conversation struct {
	mu            sync.Mutex
	id            domain.ConversationID
	viewer        domain.ParticipantID
	closed        bool
	subscriptions []contract.SubscriptionID
	typing        *TypingMachine
	inbox         *workers.Mailbox[event.ChangeEvent]
	cancel        context.CancelFunc
}

func newConversation(id domain.ConversationID, viewer domain.ParticipantID, typing *TypingMachine) *conversation {
	return &conversation{
		id:     id,
		viewer: viewer,
		typing: typing,
		inbox:  workers.NewMailbox[event.ChangeEvent](),
	}
}

// attach records a live subscription. It returns false when the conversation
// was closed meanwhile, the caller then owns the subscription.
func (c *conversation) attach(id contract.SubscriptionID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.subscriptions = append(c.subscriptions, id)
	return true
}

// markClosed flips the state once and hands back what must be released.
func (c *conversation) markClosed() ([]contract.SubscriptionID, context.CancelFunc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, false
	}
	c.closed = true
	subscriptions := c.subscriptions
	c.subscriptions = nil
	return subscriptions, c.cancel, true
}
