package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"fmt"
	"sync"
	"time"
)

type subscription struct {
	table   event.RecordType
	filter  contract.Filter
	handler contract.ChangeHandler
}

type presenceCall struct {
	conversationID domain.ConversationID
	participantID  domain.ParticipantID
	typing         bool
}

type markReadCall struct {
	conversationID domain.ConversationID
	upTo           time.Time
}

// feedBackend is an in-memory Backend whose feed is driven by the test.
// history holds the stored rows, read flags included.
type feedBackend struct {
	mu            sync.Mutex
	next          int
	subscriptions map[contract.SubscriptionID]subscription
	history       map[domain.ConversationID][]domain.Message
	loadErr       error
	presenceCalls []presenceCall
	markReadCalls []markReadCall
	// markReadGate, when set, holds every mark-read until it is closed.
	markReadGate chan struct{}
	created      []domain.Message
}

func newFeedBackend() *feedBackend {
	return &feedBackend{
		subscriptions: make(map[contract.SubscriptionID]subscription),
		history:       make(map[domain.ConversationID][]domain.Message),
	}
}

func (b *feedBackend) CreateMessage(_ context.Context, conversationID domain.ConversationID, senderID domain.ParticipantID, text string) (domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	m := domain.Message{ID: domain.MessageID(fmt.Sprintf("created-%d", b.next)), ConversationID: conversationID, SenderID: senderID, Content: text}
	b.created = append(b.created, m)
	return m, nil
}

func (b *feedBackend) LoadMessages(_ context.Context, conversationID domain.ConversationID) ([]domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return append([]domain.Message(nil), b.history[conversationID]...), nil
}

func (b *feedBackend) MarkMessagesRead(ctx context.Context, conversationID domain.ConversationID, excludeSenderID domain.ParticipantID, upTo time.Time) (int, error) {
	b.mu.Lock()
	gate := b.markReadGate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.markReadCalls = append(b.markReadCalls, markReadCall{conversationID, upTo})
	flipped := 0
	for i, m := range b.history[conversationID] {
		if !m.Read && !m.IsFrom(excludeSenderID) && !m.CreatedAt.After(upTo) {
			b.history[conversationID][i].Read = true
			flipped++
		}
	}
	return flipped, nil
}

func (b *feedBackend) UpsertPresence(_ context.Context, conversationID domain.ConversationID, participantID domain.ParticipantID, typing bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presenceCalls = append(b.presenceCalls, presenceCall{conversationID, participantID, typing})
	return nil
}

func (b *feedBackend) CountUnread(_ context.Context, conversationID domain.ConversationID, viewerID domain.ParticipantID) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, m := range b.history[conversationID] {
		if !m.Read && !m.IsFrom(viewerID) {
			count++
		}
	}
	return count, nil
}

// store adds a row as if another device had created it.
func (b *feedBackend) store(m domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history[m.ConversationID] = append(b.history[m.ConversationID], m)
}

func (b *feedBackend) holdMarkReads() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markReadGate = make(chan struct{})
	return b.markReadGate
}

func (b *feedBackend) Subscribe(table event.RecordType, filter contract.Filter, onEvent contract.ChangeHandler) (contract.SubscriptionID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := contract.SubscriptionID(fmt.Sprintf("sub-%d", b.next))
	b.subscriptions[id] = subscription{table: table, filter: filter, handler: onEvent}
	return id, nil
}

func (b *feedBackend) Unsubscribe(id contract.SubscriptionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscriptions, id)
	return nil
}

// emit delivers a change to the live subscriptions, synchronously.
func (b *feedBackend) emit(conversationID domain.ConversationID, change event.RawChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subscriptions {
		if s.table == change.Table && s.filter.ConversationID == conversationID {
			s.handler(change)
		}
	}
}

func (b *feedBackend) handlers(conversationID domain.ConversationID) []contract.ChangeHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	var res []contract.ChangeHandler
	for _, s := range b.subscriptions {
		if s.filter.ConversationID == conversationID {
			res = append(res, s.handler)
		}
	}
	return res
}

func (b *feedBackend) subscriptionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscriptions)
}

func (b *feedBackend) presence() []presenceCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]presenceCall(nil), b.presenceCalls...)
}

func (b *feedBackend) markReads() []markReadCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]markReadCall(nil), b.markReadCalls...)
}
