package projection

import (
	"chat-sync/domain"
	"sync"
)

// Presence tracks, per conversation, whether a participant other than the local viewer is typing.
// Last write wins per participant; no history is kept.
type Presence struct {
	mu      sync.RWMutex
	viewers map[domain.ConversationID]domain.ParticipantID
	typing  map[domain.ConversationID]map[domain.ParticipantID]bool
}

func NewPresence() *Presence {
	return &Presence{
		viewers: make(map[domain.ConversationID]domain.ParticipantID),
		typing:  make(map[domain.ConversationID]map[domain.ParticipantID]bool),
	}
}

// Track starts projecting presence for a conversation seen by viewerID.
func (p *Presence) Track(conversationID domain.ConversationID, viewerID domain.ParticipantID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewers[conversationID] = viewerID
	p.typing[conversationID] = make(map[domain.ParticipantID]bool)
}

func (p *Presence) Forget(conversationID domain.ConversationID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.viewers, conversationID)
	delete(p.typing, conversationID)
}

// SetRemoteTyping records the latest typing flag of a participant.
// Records of the viewer itself, or of untracked conversations, are ignored.
func (p *Presence) SetRemoteTyping(conversationID domain.ConversationID, participantID domain.ParticipantID, typing bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	viewer, ok := p.viewers[conversationID]
	if !ok || participantID == viewer {
		return false
	}
	p.typing[conversationID][participantID] = typing
	return true
}

func (p *Presence) IsAnyoneElseTyping(conversationID domain.ConversationID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, typing := range p.typing[conversationID] {
		if typing {
			return true
		}
	}
	return false
}
