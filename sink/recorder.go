package sink

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"sync"
)

var _ contract.EventSink = (*Recorder)(nil)

// Recorder keeps every applied event, in delivery order.
type Recorder struct {
	mu       sync.Mutex
	messages []domain.Message
	presence []domain.Presence
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Consume(_ context.Context, e event.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch evt := e.(type) {
	case event.MessageInserted:
		r.messages = append(r.messages, evt.Message)
	case event.PresenceUpserted:
		r.presence = append(r.presence, evt.Presence)
	}
	return nil
}

func (r *Recorder) Messages() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.messages...)
}

func (r *Recorder) Presence() []domain.Presence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Presence(nil), r.presence...)
}
