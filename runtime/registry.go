package runtime

import (
	"chat-sync/domain"
	"sync"

	"github.com/samber/lo"
)

// Registry indexes the open conversations by id.
type Registry struct {
	mu            sync.RWMutex
	conversations map[domain.ConversationID]*conversation
}

func NewRegistry() *Registry {
	return &Registry{conversations: make(map[domain.ConversationID]*conversation)}
}

// Reserve registers c unless its id is already taken.
func (r *Registry) Reserve(c *conversation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[c.id]; ok {
		return false
	}
	r.conversations[c.id] = c
	return true
}

func (r *Registry) Get(id domain.ConversationID) (*conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	return c, ok
}

// Remove unregisters c only if it is still the registered entry for its id.
func (r *Registry) Remove(c *conversation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conversations[c.id]; !ok || current != c {
		return false
	}
	delete(r.conversations, c.id)
	return true
}

func (r *Registry) IDs() []domain.ConversationID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conversations)
}
