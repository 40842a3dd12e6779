package sink

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
)

var _ contract.EventSink = (*ConsoleSink)(nil)

// ConsoleSink renders the conversation on a terminal as it changes.
type ConsoleSink struct {
	mu     sync.Mutex
	out    io.Writer
	viewer domain.ParticipantID
}

func NewConsoleSink(out io.Writer, viewer domain.ParticipantID) *ConsoleSink {
	return &ConsoleSink{out: out, viewer: viewer}
}

func (c *ConsoleSink) Consume(_ context.Context, e event.ChangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt := e.(type) {
	case event.MessageInserted:
		return c.printMessage(evt.Message)
	case event.PresenceUpserted:
		if evt.Presence.Typing {
			_, err := fmt.Fprintln(c.out, color.New(color.FgGray, color.OpItalic).Render(fmt.Sprintf("%s is typing…", evt.Presence.ParticipantID)))
			return err
		}
	}
	return nil
}

func (c *ConsoleSink) printMessage(m domain.Message) error {
	author := string(m.SenderID)
	if m.Sender != nil {
		author = m.Sender.DisplayName()
	}
	style := color.New(color.FgCyan, color.OpBold)
	if m.IsFrom(c.viewer) {
		author = "you"
		style = color.New(color.FgGreen, color.OpBold)
	}
	_, err := fmt.Fprintf(c.out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), style.Render(author), m.Content)
	return err
}
