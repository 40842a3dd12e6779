package runtime

import (
	"chat-sync/domain"
	"sync"
	"time"
)

const DefaultQuietInterval = time.Second

// Scheduler arms a one-shot timer running f after d.
// The returned stop function reports whether the call prevented f from running.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

// AfterFunc is the wall-clock Scheduler.
func AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// PresencePublisher receives the local typing transitions. It must not block.
type PresencePublisher interface {
	PublishTyping(conversationID domain.ConversationID, participantID domain.ParticipantID, typing bool)
}

// TypingMachine debounces local input into typing announcements for one conversation.
//
// Idle --input--> Announcing (publish true, arm timer)
// Announcing --input--> Announcing (re-arm timer, publish nothing)
// Announcing --quiet interval elapsed--> Idle (publish false)
// any --ForceIdle--> Idle (publish false)
//
// At most one timer is pending. A timer that fires while being replaced
// carries an old generation and does nothing.
type TypingMachine struct {
	mu             sync.Mutex
	conversationID domain.ConversationID
	participantID  domain.ParticipantID
	quiet          time.Duration
	schedule       Scheduler
	publisher      PresencePublisher
	state          domain.TypingState
	stopTimer      func() bool
	generation     uint64
	closed         bool
}

func NewTypingMachine(
	conversationID domain.ConversationID,
	participantID domain.ParticipantID,
	quiet time.Duration,
	schedule Scheduler,
	publisher PresencePublisher) *TypingMachine {
	if quiet <= 0 {
		quiet = DefaultQuietInterval
	}
	if schedule == nil {
		schedule = AfterFunc
	}
	return &TypingMachine{
		conversationID: conversationID,
		participantID:  participantID,
		quiet:          quiet,
		schedule:       schedule,
		publisher:      publisher,
		state:          domain.TypingIdle,
	}
}

// InputChanged is called on every local text change.
func (m *TypingMachine) InputChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.state == domain.TypingIdle {
		m.state = domain.TypingAnnouncing
		m.publisher.PublishTyping(m.conversationID, m.participantID, true)
	}
	m.cancelTimer()
	generation := m.generation
	m.stopTimer = m.schedule(m.quiet, func() { m.decay(generation) })
}

// ForceIdle cancels the pending timer and announces typing=false unconditionally.
func (m *TypingMachine) ForceIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.idle()
}

// Close forces the machine idle and ignores any later input.
func (m *TypingMachine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.idle()
	m.closed = true
}

func (m *TypingMachine) State() domain.TypingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *TypingMachine) idle() {
	m.cancelTimer()
	m.state = domain.TypingIdle
	m.publisher.PublishTyping(m.conversationID, m.participantID, false)
}

func (m *TypingMachine) decay(generation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || generation != m.generation || m.state != domain.TypingAnnouncing {
		return
	}
	m.stopTimer = nil
	m.state = domain.TypingIdle
	m.publisher.PublishTyping(m.conversationID, m.participantID, false)
}

// cancelTimer invalidates the pending timer, even one already firing.
func (m *TypingMachine) cancelTimer() {
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
	m.generation++
}
