package notification

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsoleNotifier_NotifyNewMessage(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	notifier := NewConsoleNotifier(&out)

	err := notifier.NotifyNewMessage(context.Background(), "Lucía", "su contrato está listo", "c1")

	req.NoError(err)
	req.Contains(out.String(), "Lucía")
	req.Contains(out.String(), "su contrato está listo")
	req.Contains(out.String(), "(c1)")
}

func TestConsoleNotifier_CanceledContext(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	notifier := NewConsoleNotifier(&out)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := notifier.NotifyNewMessage(ctx, "Lucía", "hola", "c1")

	req.ErrorIs(err, context.Canceled)
	req.Empty(out.String())
}
