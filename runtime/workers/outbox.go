package workers

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"chat-sync/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ contract.Worker = (*Outbox)(nil)

// Job is a background side effect against a collaborator.
// Jobs sharing a lane run one after the other, in submission order.
type Job interface {
	Name() string
	Lane() string
	Execute(ctx context.Context) error
}

// Outbox runs background jobs in lanes, typically one per conversation:
// a lane is FIFO, distinct lanes run in parallel so a slow backend call
// in one conversation never holds back another.
// A failed job is logged and counted, never retried.
type Outbox struct {
	log      *slog.Logger
	timeout  time.Duration
	stats    *observability.SyncStats
	capacity int

	mu      sync.Mutex
	lanes   map[string][]Job
	pending int
	ctx     context.Context // set once Run starts
	closed  bool
	active  sync.WaitGroup
}

func NewOutbox(log *slog.Logger, capacity int, timeout time.Duration, stats *observability.SyncStats) *Outbox {
	return &Outbox{
		log:      log,
		timeout:  timeout,
		stats:    stats,
		capacity: capacity,
		lanes:    make(map[string][]Job),
	}
}

// Enqueue never blocks: a full outbox drops the job.
func (o *Outbox) Enqueue(job Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		o.stats.DroppedJob()
		o.log.Warn("Outbox closed, dropping job", "job", job.Name())
		return errors.ErrOutboxClosed
	}
	if o.pending >= o.capacity {
		o.stats.DroppedJob()
		o.log.Warn("Outbox full, dropping job", "job", job.Name())
		return errors.ErrOutboxFull
	}
	lane := job.Lane()
	queue, busy := o.lanes[lane]
	o.lanes[lane] = append(queue, job)
	o.pending++
	if !busy && o.ctx != nil {
		o.startLane(lane)
	}
	return nil
}

func (o *Outbox) Backlog() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending, o.capacity
}

// Run starts the lanes of the jobs queued so far and waits for the context.
// On shutdown it waits for every lane to drain, typically the typing=false
// upserts issued while closing conversations.
func (o *Outbox) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.ctx == nil {
		o.ctx = ctx
		for lane := range o.lanes {
			o.startLane(lane)
		}
	}
	o.mu.Unlock()

	<-ctx.Done()

	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.active.Wait()
	return ctx.Err()
}

// startLane must be called with o.mu held, before closed is set.
func (o *Outbox) startLane(lane string) {
	o.active.Add(1)
	go func() {
		defer o.active.Done()
		for {
			job, ok := o.next(lane)
			if !ok {
				return
			}
			o.execute(job)
		}
	}()
}

// next pops the head of a lane, forgetting the lane once it is empty.
func (o *Outbox) next(lane string) (Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	queue := o.lanes[lane]
	if len(queue) == 0 {
		delete(o.lanes, lane)
		return nil, false
	}
	o.lanes[lane] = queue[1:]
	o.pending--
	return queue[0], true
}

// execute outlives the Run context so that jobs queued at shutdown are still attempted.
func (o *Outbox) execute(job Job) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(o.ctx), o.timeout)
	defer cancel()
	if err := o.safeExecute(jobCtx, job); err != nil {
		o.stats.BackgroundFailure()
		o.log.Warn("Background job failed", "job", job.Name(), "error", err)
	}
}

func (o *Outbox) safeExecute(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return job.Execute(ctx)
}
