// Package runtime keeps open conversations in sync with the backend feeds.
// It routes events to the projections without holding any domain rule itself.
package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/projection"
	"chat-sync/runtime/workers"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

type Options struct {
	QuietInterval      time.Duration
	BackendTimeout     time.Duration
	SinkTimeout        time.Duration
	OutboxSize         int
	FanoutSize         int
	DefaultSenderLabel string
	// ReportInterval enables the periodic stats report when positive.
	ReportInterval time.Duration
	// Scheduler arms the typing timers, time.AfterFunc when nil.
	Scheduler Scheduler
}

// Orchestrator is the subscription manager: it opens and closes conversations,
// owns their feed subscriptions and applies incoming changes to the projections.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   *Registry
	backend    contract.Backend
	membership contract.Membership
	notifier   contract.Notifier
	timeline   *projection.Timeline
	presence   *projection.Presence
	unread     *projection.Unread
	stats      *observability.SyncStats
	outbox     *workers.Outbox
	fanout     *workers.EventFanout
	options    Options
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry *Registry,
	backend contract.Backend, membership contract.Membership, notifier contract.Notifier,
	timeline *projection.Timeline, presence *projection.Presence, unread *projection.Unread,
	stats *observability.SyncStats, options Options) *Orchestrator {
	if options.BackendTimeout <= 0 {
		options.BackendTimeout = 10 * time.Second
	}
	if options.SinkTimeout <= 0 {
		options.SinkTimeout = time.Second
	}
	if options.OutboxSize <= 0 {
		options.OutboxSize = 256
	}
	if options.FanoutSize <= 0 {
		options.FanoutSize = 256
	}
	if options.Scheduler == nil {
		options.Scheduler = AfterFunc
	}
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		backend:    backend,
		membership: membership,
		notifier:   notifier,
		timeline:   timeline,
		presence:   presence,
		unread:     unread,
		stats:      stats,
		outbox:     workers.NewOutbox(log, options.OutboxSize, options.BackendTimeout, stats),
		fanout:     workers.NewEventFanout(log, options.FanoutSize, options.SinkTimeout),
		options:    options,
	}
}

// Add registers sinks notified after each applied event.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.fanout.Add(sinks...)
}

// Start launches the background workers and returns immediately.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx != nil {
		return
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.done = make(chan struct{})

	o.supervisor.Add(o.outbox, o.fanout)
	if o.options.ReportInterval > 0 {
		o.supervisor.Add(workers.NewReporter(o.log, o.stats, o.options.ReportInterval,
			workers.NamedQueue{Name: "outbox", Queue: o.outbox},
			workers.NamedQueue{Name: "fanout", Queue: o.fanout}))
	}
	go func(ctx context.Context, done chan struct{}) {
		o.supervisor.Run(ctx)
		close(done)
	}(o.ctx, o.done)
	o.log.Info("Sync engine started")
}

// Stop closes every conversation, then waits for the workers
// once the outbox had a chance to flush the last presence updates.
func (o *Orchestrator) Stop() {
	o.CloseAll()

	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	o.supervisor.Stop()
	cancel()
	<-done
	o.stats.LogSummary()
	o.log.Info("Sync engine stopped")
}

// OpenConversation starts syncing a conversation for viewerID. Opening an
// already open conversation does nothing.
//
// Both feeds are subscribed before the history is loaded: changes racing
// with the load wait in the mailbox and deduplicate against the history.
func (o *Orchestrator) OpenConversation(ctx context.Context, conversationID domain.ConversationID, viewerID domain.ParticipantID) error {
	engineCtx, err := o.engineContext()
	if err != nil {
		return err
	}
	if conversationID == "" || viewerID == "" {
		return fmt.Errorf("%w: conversation %q viewer %q", errors.ErrInvalidConversation, conversationID, viewerID)
	}

	c := newConversation(conversationID, viewerID,
		NewTypingMachine(conversationID, viewerID, o.options.QuietInterval, o.options.Scheduler, o))
	if !o.registry.Reserve(c) {
		o.log.Debug("Conversation already open", "conversation", conversationID)
		return nil
	}
	o.stats.ConversationOpened()
	o.presence.Track(conversationID, viewerID)

	for _, table := range []event.RecordType{event.MessagesTable, event.PresenceTable} {
		subscriptionID, err := o.backend.Subscribe(table, contract.Filter{ConversationID: conversationID}, o.feedHandler(c))
		if err != nil {
			o.teardown(c, false)
			return fmt.Errorf("%w: subscribe %s of %s: %v", errors.ErrBackendUnavailable, table, conversationID, err)
		}
		if !c.attach(subscriptionID) {
			o.unsubscribe(conversationID, subscriptionID)
			return nil
		}
	}

	loadCtx, cancel := context.WithTimeout(ctx, o.options.BackendTimeout)
	defer cancel()
	history, err := o.backend.LoadMessages(loadCtx, conversationID)
	if err != nil {
		o.teardown(c, false)
		return fmt.Errorf("%w: load history of %s: %v", errors.ErrBackendUnavailable, conversationID, err)
	}

	workerCtx, stopWorker := context.WithCancel(engineCtx)
	if !o.seed(c, history, stopWorker) {
		stopWorker()
		return nil
	}
	o.supervisor.Start(workerCtx, workers.NewConversationWorker(conversationID, c.inbox,
		func(evt event.ChangeEvent) { o.apply(c, evt) }, o.log))

	o.log.Info("Conversation opened", "conversation", conversationID, "history", len(history))
	return nil
}

// seed installs the loaded history and marks it read, unless the conversation
// was closed during the load.
func (o *Orchestrator) seed(c *conversation, history []domain.Message, stopWorker context.CancelFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.cancel = stopWorker
	o.timeline.ReplaceAll(c.id, history)
	for _, m := range history {
		o.unread.RecordIncoming(c.id, m, c.viewer)
	}
	o.markRead(c.id, c.viewer)
	return true
}

// CloseConversation stops syncing a conversation. Unknown ids are ignored.
// Once it returns, no event is applied on behalf of the conversation.
// Its messages and unread count stay readable.
func (o *Orchestrator) CloseConversation(conversationID domain.ConversationID) {
	c, ok := o.registry.Get(conversationID)
	if !ok {
		return
	}
	o.teardown(c, true)
}

// CloseAll closes every open conversation, on logout or suspension.
func (o *Orchestrator) CloseAll() {
	for _, id := range o.registry.IDs() {
		o.CloseConversation(id)
	}
}

func (o *Orchestrator) teardown(c *conversation, announce bool) {
	subscriptions, stopWorker, ok := c.markClosed()
	if !ok {
		return
	}
	for _, subscriptionID := range subscriptions {
		o.unsubscribe(c.id, subscriptionID)
	}
	c.inbox.Close()
	if stopWorker != nil {
		stopWorker()
	}
	if announce {
		c.typing.Close()
	}
	o.presence.Forget(c.id)
	if o.registry.Remove(c) {
		o.stats.ConversationClosed()
	}
	o.log.Info("Conversation closed", "conversation", c.id)
}

func (o *Orchestrator) unsubscribe(conversationID domain.ConversationID, subscriptionID contract.SubscriptionID) {
	if err := o.backend.Unsubscribe(subscriptionID); err != nil {
		o.log.Warn("Unable to unsubscribe", "conversation", conversationID, "subscription", subscriptionID, "error", err)
	}
}

// feedHandler decodes raw changes at the subscription boundary and queues them.
// It runs on the backend's delivery path and never blocks.
func (o *Orchestrator) feedHandler(c *conversation) contract.ChangeHandler {
	return func(change event.RawChange) {
		evt, err := event.Decode(change)
		if err != nil {
			if stderrors.Is(err, errors.ErrUnsupportedChange) {
				o.log.Debug("Ignoring change", "conversation", c.id, "table", change.Table, "type", change.Type)
				return
			}
			o.stats.UndecodableEvent()
			o.log.Warn("Undecodable change", "conversation", c.id, "error", err)
			return
		}
		if evt.ConversationID() != c.id {
			o.stats.StaleEvent()
			o.log.Debug("Change for another conversation", "conversation", c.id, "target", evt.ConversationID())
			return
		}
		if !c.inbox.Push(evt) {
			o.stats.StaleEvent()
			o.log.Debug("Change after close discarded", "conversation", c.id)
		}
	}
}

// apply runs on the conversation worker, one event at a time.
func (o *Orchestrator) apply(c *conversation, evt event.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		o.stats.StaleEvent()
		return
	}

	applied := false
	switch e := evt.(type) {
	case event.MessageInserted:
		applied = o.applyMessage(c, e.Message)
	case event.PresenceUpserted:
		applied = o.applyPresence(c, e.Presence)
	}
	if applied {
		o.fanout.Publish(evt)
	}
}

func (o *Orchestrator) applyMessage(c *conversation, message domain.Message) bool {
	if !o.timeline.Append(c.id, message) {
		o.stats.DuplicateMessage()
		return false
	}
	o.stats.MessageApplied()
	o.unread.RecordIncoming(c.id, message, c.viewer)
	if !message.IsFrom(c.viewer) {
		o.enqueue(notifyJob{
			notifier:       o.notifier,
			conversationID: c.id,
			senderLabel:    o.senderLabel(message),
			text:           message.Content,
		})
	}
	return true
}

func (o *Orchestrator) applyPresence(c *conversation, presence domain.Presence) bool {
	if presence.ParticipantID == c.viewer {
		o.stats.SelfEchoSuppressed()
		return false
	}
	if !o.presence.SetRemoteTyping(c.id, presence.ParticipantID, presence.Typing) {
		return false
	}
	o.stats.PresenceApplied()
	return true
}

func (o *Orchestrator) senderLabel(message domain.Message) string {
	if message.Sender != nil {
		if label := message.Sender.DisplayName(); label != "" {
			return label
		}
	}
	return o.options.DefaultSenderLabel
}

// PublishTyping queues the local typing transition for the backend.
func (o *Orchestrator) PublishTyping(conversationID domain.ConversationID, participantID domain.ParticipantID, typing bool) {
	o.enqueue(presenceJob{
		backend:        o.backend,
		conversationID: conversationID,
		participantID:  participantID,
		typing:         typing,
	})
}

// InputChanged feeds the typing machine of an open conversation.
func (o *Orchestrator) InputChanged(conversationID domain.ConversationID) error {
	c, ok := o.registry.Get(conversationID)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrConversationNotOpen, conversationID)
	}
	c.typing.InputChanged()
	return nil
}

// StopTyping forces the local typing state idle. No-op when not open.
func (o *Orchestrator) StopTyping(conversationID domain.ConversationID) {
	if c, ok := o.registry.Get(conversationID); ok {
		c.typing.ForceIdle()
	}
}

// MarkRead clears the local unread count now and flips the rows on the backend
// in the background. Only the messages displayed at call time are read.
func (o *Orchestrator) MarkRead(conversationID domain.ConversationID, viewerID domain.ParticipantID) {
	if c, ok := o.registry.Get(conversationID); ok {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	o.markRead(conversationID, viewerID)
}

// markRead bounds the read by the newest displayed message. Its creation time
// comes from the backend clock, the same one every later message is stamped with.
func (o *Orchestrator) markRead(conversationID domain.ConversationID, viewerID domain.ParticipantID) {
	last, ok := o.timeline.Last(conversationID)
	if !ok {
		return
	}
	cleared := o.unread.MarkRead(conversationID, last.CreatedAt)
	o.log.Debug("Marked read", "conversation", conversationID, "cleared", cleared, "up_to", last.ID)
	o.enqueue(markReadJob{
		backend:        o.backend,
		conversationID: conversationID,
		viewerID:       viewerID,
		upTo:           last.CreatedAt,
	})
}

func (o *Orchestrator) Messages(conversationID domain.ConversationID) []domain.Message {
	return o.timeline.Snapshot(conversationID)
}

func (o *Orchestrator) IsOtherTyping(conversationID domain.ConversationID) bool {
	return o.presence.IsAnyoneElseTyping(conversationID)
}

func (o *Orchestrator) Unread(conversationID domain.ConversationID) int {
	return o.unread.Count(conversationID)
}

// GlobalUnread sums the unread counts of every conversation of the user.
// Open conversations use the local tally, the others are counted by the backend.
func (o *Orchestrator) GlobalUnread(ctx context.Context, userID domain.ParticipantID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, o.options.BackendTimeout)
	defer cancel()

	conversationIDs, err := o.membership.ConversationIDsForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: conversations of %s: %v", errors.ErrBackendUnavailable, userID, err)
	}
	open, closed := lo.FilterReject(conversationIDs, func(id domain.ConversationID, _ int) bool {
		_, ok := o.registry.Get(id)
		return ok
	})
	total, untracked := o.unread.Sum(open)
	for _, id := range append(closed, untracked...) {
		count, err := o.backend.CountUnread(ctx, id, userID)
		if err != nil {
			return 0, fmt.Errorf("%w: unread of %s: %v", errors.ErrBackendUnavailable, id, err)
		}
		total += count
	}
	return total, nil
}

func (o *Orchestrator) Stats() observability.SyncSnapshot {
	return o.stats.Snapshot()
}

func (o *Orchestrator) enqueue(job workers.Job) {
	if err := o.outbox.Enqueue(job); err != nil {
		o.log.Warn("Background job not queued", "job", job.Name(), "error", err)
	}
}

func (o *Orchestrator) engineContext() (context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil || o.ctx.Err() != nil {
		return nil, errors.ErrNotStarted
	}
	return o.ctx, nil
}
