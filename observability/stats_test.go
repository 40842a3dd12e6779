package observability

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSyncStats_ConcurrentCounters(t *testing.T) {
	req := require.New(t)
	stats := NewSyncStats(slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats.ConversationOpened()
			stats.MessageApplied()
			stats.StaleEvent()
			stats.ConversationClosed()
		}()
	}
	wg.Wait()
	stats.ConversationOpened()

	snap := stats.Snapshot()
	req.Equal(int64(1), snap.OpenConversations)
	req.Equal(uint64(50), snap.MessagesApplied)
	req.Equal(uint64(50), snap.StaleEvents)
	req.Zero(snap.DroppedJobs)
}
