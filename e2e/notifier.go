package e2e

import (
	"chat-sync/contract"
	"chat-sync/infrastructure/notification"
	"io"
)

func newNotifier(out io.Writer) contract.Notifier {
	if out == nil {
		out = io.Discard
	}
	return notification.NewConsoleNotifier(out)
}
