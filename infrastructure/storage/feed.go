package storage

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"fmt"
	"sync"
)

type feedSubscription struct {
	table   event.RecordType
	filter  contract.Filter
	handler contract.ChangeHandler
}

// Feed delivers committed changes to subscribers, in commit order.
// Handlers run synchronously under the feed lock, so once Unsubscribe
// returns the handler can no longer be running nor be called again.
type Feed struct {
	mu            sync.Mutex
	next          uint64
	subscriptions map[contract.SubscriptionID]feedSubscription
}

func NewFeed() *Feed {
	return &Feed{subscriptions: make(map[contract.SubscriptionID]feedSubscription)}
}

func (f *Feed) Subscribe(table event.RecordType, filter contract.Filter, onEvent contract.ChangeHandler) (contract.SubscriptionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := contract.SubscriptionID(fmt.Sprintf("%s:%s:%d", table, filter.ConversationID, f.next))
	f.subscriptions[id] = feedSubscription{table: table, filter: filter, handler: onEvent}
	return id, nil
}

func (f *Feed) Unsubscribe(id contract.SubscriptionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subscriptions[id]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrSubscriptionUnknown, id)
	}
	delete(f.subscriptions, id)
	return nil
}

func (f *Feed) publish(conversationID domain.ConversationID, change event.RawChange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subscriptions {
		if s.table == change.Table && s.filter.ConversationID == conversationID {
			s.handler(change)
		}
	}
}
