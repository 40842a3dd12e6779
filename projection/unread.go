package projection

import (
	"chat-sync/domain"
	"sync"
	"time"
)

// Unread counts unread incoming messages per conversation.
// It is shared by every conversation's event stream, hence the single lock.
type Unread struct {
	mu            sync.Mutex
	conversations map[domain.ConversationID]*unreadState
}

type unreadState struct {
	unread map[domain.MessageID]struct{}
	// cutoff is the instant of the last mark-read; messages created at or before it are read.
	cutoff time.Time
}

func NewUnread() *Unread {
	return &Unread{conversations: make(map[domain.ConversationID]*unreadState)}
}

// RecordIncoming counts the message iff it comes from someone else, is unread,
// is newer than the read cutoff and was not counted before.
func (u *Unread) RecordIncoming(conversationID domain.ConversationID, message domain.Message, viewerID domain.ParticipantID) bool {
	if message.IsFrom(viewerID) || message.Read {
		return false
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	state := u.stateFor(conversationID)
	if !state.cutoff.IsZero() && !message.CreatedAt.After(state.cutoff) {
		return false
	}
	if _, ok := state.unread[message.ID]; ok {
		return false
	}
	state.unread[message.ID] = struct{}{}
	return true
}

// MarkRead clears every unread message known at call time and moves the read cutoff.
// It returns how many entries were cleared.
func (u *Unread) MarkRead(conversationID domain.ConversationID, cutoff time.Time) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	state := u.stateFor(conversationID)
	cleared := len(state.unread)
	state.unread = make(map[domain.MessageID]struct{})
	if cutoff.After(state.cutoff) {
		state.cutoff = cutoff
	}
	return cleared
}

func (u *Unread) Count(conversationID domain.ConversationID) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	state, ok := u.conversations[conversationID]
	if !ok {
		return 0
	}
	return len(state.unread)
}

// Sum adds the counts of the given conversations.
// Conversations never seen locally are returned as untracked.
func (u *Unread) Sum(conversationIDs []domain.ConversationID) (int, []domain.ConversationID) {
	u.mu.Lock()
	defer u.mu.Unlock()

	total := 0
	var untracked []domain.ConversationID
	for _, id := range conversationIDs {
		state, ok := u.conversations[id]
		if !ok {
			untracked = append(untracked, id)
			continue
		}
		total += len(state.unread)
	}
	return total, untracked
}

func (u *Unread) stateFor(conversationID domain.ConversationID) *unreadState {
	state, ok := u.conversations[conversationID]
	if !ok {
		state = &unreadState{unread: make(map[domain.MessageID]struct{})}
		u.conversations[conversationID] = state
	}
	return state
}
