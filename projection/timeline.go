// Package projection builds local views from observed change events.
// Handles ordering, deduplication, presence and unread projections.
// Does not emit events or interact with the backend directly.
package projection

import (
	"chat-sync/domain"
	"slices"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Timeline is the message store: one ordered, duplicate-free sequence per conversation.
// Writes for a conversation come from its single owner; snapshots may be taken from anywhere.
type Timeline struct {
	mu            sync.RWMutex
	conversations map[domain.ConversationID]*conversationLog
}

type conversationLog struct {
	messages []domain.Message
	seen     map[domain.MessageID]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{
		conversations: make(map[domain.ConversationID]*conversationLog),
	}
}

// Append inserts the message at its (CreatedAt, ID) position.
// It returns false when the message was already known or is malformed.
func (t *Timeline) Append(conversationID domain.ConversationID, message domain.Message) bool {
	if !belongsTo(conversationID, message) {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	log := t.logFor(conversationID)
	if _, ok := log.seen[message.ID]; ok {
		return false
	}
	i := sort.Search(len(log.messages), func(i int) bool {
		return domain.MessageLess(message, log.messages[i])
	})
	log.messages = slices.Insert(log.messages, i, message)
	log.seen[message.ID] = struct{}{}
	return true
}

// ReplaceAll swaps the whole sequence, typically with the history loaded on open.
// Malformed entries and repeated ids are dropped.
func (t *Timeline) ReplaceAll(conversationID domain.ConversationID, messages []domain.Message) {
	valid := lo.Filter(messages, func(m domain.Message, _ int) bool {
		return belongsTo(conversationID, m)
	})
	valid = lo.UniqBy(valid, func(m domain.Message) domain.MessageID { return m.ID })
	sort.SliceStable(valid, func(i, j int) bool {
		return domain.MessageLess(valid[i], valid[j])
	})

	log := &conversationLog{
		messages: valid,
		seen:     make(map[domain.MessageID]struct{}, len(valid)),
	}
	for _, m := range valid {
		log.seen[m.ID] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.conversations[conversationID] = log
}

// Snapshot returns a copy of the ordered sequence.
func (t *Timeline) Snapshot(conversationID domain.ConversationID) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	log, ok := t.conversations[conversationID]
	if !ok {
		return nil
	}
	return slices.Clone(log.messages)
}

// Last returns the newest message of the conversation.
func (t *Timeline) Last(conversationID domain.ConversationID) (domain.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	log, ok := t.conversations[conversationID]
	if !ok || len(log.messages) == 0 {
		return domain.Message{}, false
	}
	return log.messages[len(log.messages)-1], true
}

func (t *Timeline) logFor(conversationID domain.ConversationID) *conversationLog {
	log, ok := t.conversations[conversationID]
	if !ok {
		log = &conversationLog{seen: make(map[domain.MessageID]struct{})}
		t.conversations[conversationID] = log
	}
	return log
}

func belongsTo(conversationID domain.ConversationID, m domain.Message) bool {
	if conversationID == "" || m.ConversationID != conversationID {
		return false
	}
	return domain.ValidateMessage(m) == nil
}
