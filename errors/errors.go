package errors

import "fmt"

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrBackendUnavailable  = fmt.Errorf("backend unavailable")
	ErrInvalidMessage      = fmt.Errorf("invalid message")
	ErrInvalidPresence     = fmt.Errorf("invalid presence record")
	ErrInvalidPayload      = fmt.Errorf("invalid change payload")
	ErrUnsupportedChange   = fmt.Errorf("unsupported change")
	ErrEmptyMessage        = fmt.Errorf("message text is empty")
	ErrNotStarted          = fmt.Errorf("engine not started")
	ErrConversationNotOpen = fmt.Errorf("conversation is not open")
	ErrOutboxFull          = fmt.Errorf("outbox is full")
	ErrOutboxClosed        = fmt.Errorf("outbox is closed")
	ErrSubscriptionUnknown = fmt.Errorf("unknown subscription")
	ErrInvalidConversation = fmt.Errorf("invalid conversation")
)
