package workers

import "sync"

// Mailbox is an unbounded FIFO handing items from a push-driven producer
// to a single consumer goroutine. Push never blocks the producer.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends an item. It returns false once the mailbox is closed.
func (m *Mailbox[T]) Push(item T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.items = append(m.items, item)
	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// Drain takes every pending item, oldest first.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

// Ready is signalled after a Push.
func (m *Mailbox[T]) Ready() <-chan struct{} { return m.ready }

// Done is closed by Close.
func (m *Mailbox[T]) Done() <-chan struct{} { return m.done }

// Close rejects further pushes and discards what is pending.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.items = nil
	close(m.done)
}
