package notification

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
)

var _ contract.Notifier = (*ConsoleNotifier)(nil)

// ConsoleNotifier prints new message banners on a terminal.
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

func (n *ConsoleNotifier) NotifyNewMessage(ctx context.Context, senderLabel, text string, conversationID domain.ConversationID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	title := color.New(color.FgBlack, color.BgYellow).Render(fmt.Sprintf(" %s ", senderLabel))
	_, err := fmt.Fprintf(n.out, "🔔 %s %s (%s)\n", title, text, conversationID)
	return err
}
