package projection

import (
	"chat-sync/domain"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnread_RecordIncoming(t *testing.T) {
	req := require.New(t)
	unread := NewUnread()

	own := message("m1", 0, "viewer")
	alreadyRead := message("m2", time.Second, "bob")
	alreadyRead.Read = true
	incoming := message("m3", 2*time.Second, "bob")

	req.False(unread.RecordIncoming("c1", own, "viewer"))
	req.False(unread.RecordIncoming("c1", alreadyRead, "viewer"))
	req.True(unread.RecordIncoming("c1", incoming, "viewer"))
	req.False(unread.RecordIncoming("c1", incoming, "viewer"), "duplicate delivery")

	req.Equal(1, unread.Count("c1"))
	req.Equal(0, unread.Count("c2"))
}

func TestUnread_MarkRead_ClampsToCutoff(t *testing.T) {
	req := require.New(t)
	unread := NewUnread()
	unread.RecordIncoming("c1", message("m1", 0, "bob"), "viewer")
	unread.RecordIncoming("c1", message("m2", time.Second, "bob"), "viewer")

	cutoff := t0.Add(5 * time.Second)
	req.Equal(2, unread.MarkRead("c1", cutoff))
	req.Equal(0, unread.Count("c1"))

	// A message that predates the cutoff but is delivered late stays read
	req.False(unread.RecordIncoming("c1", message("m3", 4*time.Second, "bob"), "viewer"))
	req.Equal(0, unread.Count("c1"))

	// A message created after the cutoff counts
	req.True(unread.RecordIncoming("c1", message("m4", 6*time.Second, "bob"), "viewer"))
	req.Equal(1, unread.Count("c1"))

	// An older cutoff never moves it backwards
	unread.MarkRead("c1", t0)
	req.False(unread.RecordIncoming("c1", message("m5", 5*time.Second, "bob"), "viewer"))
}

func TestUnread_MarkRead_ConcurrentWithIncoming(t *testing.T) {
	req := require.New(t)
	unread := NewUnread()
	cutoff := t0.Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := message(fmt.Sprintf("m%d", i), time.Duration(i)*time.Second, "bob")
			unread.RecordIncoming("c1", m, "viewer")
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		unread.MarkRead("c1", cutoff)
	}()
	wg.Wait()

	// Every message predates the cutoff, whichever side of the reset it landed on
	req.Equal(0, unread.Count("c1"))
	for i := 0; i < 10; i++ {
		unread.RecordIncoming("c1", message("late", time.Duration(i)*time.Second, "bob"), "viewer")
	}
	req.Equal(0, unread.Count("c1"))
}

func TestUnread_Sum(t *testing.T) {
	req := require.New(t)
	unread := NewUnread()
	unread.RecordIncoming("c1", message("m1", 0, "bob"), "viewer")
	unread.RecordIncoming("c1", message("m2", time.Second, "bob"), "viewer")
	other := message("m3", 0, "clara")
	other.ConversationID = "c2"
	unread.RecordIncoming("c2", other, "viewer")

	total, untracked := unread.Sum([]domain.ConversationID{"c1", "c2", "c3"})
	req.Equal(3, total)
	req.Equal([]domain.ConversationID{"c3"}, untracked)
}
