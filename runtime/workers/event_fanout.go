package workers

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout broadcasts applied change events to in-process consumers (UI refresh, logs).
//
// It provides best-effort fan-out with no durability or retries:
// a full buffer drops the event. Sinks are called sequentially, each bounded by sinkTimeout.
// It is not part of the synchronization state itself.
type EventFanout struct {
	log         *slog.Logger
	events      chan event.ChangeEvent
	sinkTimeout time.Duration
	mu          sync.RWMutex
	sinks       []contract.EventSink
}

func NewEventFanout(log *slog.Logger, bufferSize int, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		events:      make(chan event.ChangeEvent, bufferSize),
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sinks = append(w.sinks, sinks...)
}

// Publish never blocks the caller.
func (w *EventFanout) Publish(evt event.ChangeEvent) {
	select {
	case w.events <- evt:
	default:
		w.log.Debug("Fanout buffer full, event lost", "conversation", evt.ConversationID())
	}
}

func (w *EventFanout) Backlog() (int, int) {
	return len(w.events), cap(w.events)
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		}
	}
}

// Fanout One sink after the other for each event
func (w *EventFanout) Fanout(ctx context.Context, evt event.ChangeEvent) {
	w.mu.RLock()
	sinks := w.sinks
	w.mu.RUnlock()

	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink failed", "sink", fmt.Sprintf("%T", sink), "conversation", evt.ConversationID(), "error", err)
		}
		cancel()
	}
}
