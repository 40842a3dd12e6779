package workers

import (
	"chat-sync/contract"
	"chat-sync/observability"
	"context"
	"log/slog"
	"time"
)

var _ contract.Worker = (*Reporter)(nil)

// Backlogged exposes the fill level of a buffered queue.
type Backlogged interface {
	Backlog() (length, capacity int)
}

type NamedQueue struct {
	Name  string
	Queue Backlogged
}

// Reporter periodically logs the sync counters and the queue fill levels.
// Reading a channel's len and cap never blocks its producers.
type Reporter struct {
	log      *slog.Logger
	stats    *observability.SyncStats
	queues   []NamedQueue
	interval time.Duration
}

func NewReporter(log *slog.Logger, stats *observability.SyncStats, interval time.Duration, queues ...NamedQueue) *Reporter {
	return &Reporter{log: log, stats: stats, queues: queues, interval: interval}
}

func (w *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping reporter")
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *Reporter) report() {
	w.stats.LogSummary()
	for _, q := range w.queues {
		length, capacity := q.Queue.Backlog()
		if capacity > 0 && length*5 >= capacity*4 {
			w.log.Warn("Queue almost full", "queue", q.Name, "length", length, "capacity", capacity)
			continue
		}
		w.log.Debug("Queue backlog", "queue", q.Name, "length", length, "capacity", capacity)
	}
}
