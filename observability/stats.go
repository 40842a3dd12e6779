package observability

import (
	"log/slog"
	"sync/atomic"
)

// SyncSnapshot is a point-in-time copy of the engine counters.
type SyncSnapshot struct {
	OpenConversations  int64  `json:"open_conversations"`
	MessagesApplied    uint64 `json:"messages_applied"`
	DuplicateMessages  uint64 `json:"duplicate_messages"`
	PresenceApplied    uint64 `json:"presence_applied"`
	SelfEchoSuppressed uint64 `json:"self_echo_suppressed"`
	StaleEvents        uint64 `json:"stale_events"`
	UndecodableEvents  uint64 `json:"undecodable_events"`
	BackgroundFailures uint64 `json:"background_failures"`
	DroppedJobs        uint64 `json:"dropped_jobs"`
}

// SyncStats counts what the engine did with the change feed.
// Every conversation's worker writes to it, so all fields are atomics.
type SyncStats struct {
	log                *slog.Logger
	openConversations  atomic.Int64
	messagesApplied    atomic.Uint64
	duplicateMessages  atomic.Uint64
	presenceApplied    atomic.Uint64
	selfEchoSuppressed atomic.Uint64
	staleEvents        atomic.Uint64
	undecodableEvents  atomic.Uint64
	backgroundFailures atomic.Uint64
	droppedJobs        atomic.Uint64
}

func NewSyncStats(log *slog.Logger) *SyncStats {
	return &SyncStats{log: log}
}

func (s *SyncStats) ConversationOpened() { s.openConversations.Add(1) }
func (s *SyncStats) ConversationClosed() { s.openConversations.Add(-1) }
func (s *SyncStats) MessageApplied()     { s.messagesApplied.Add(1) }
func (s *SyncStats) DuplicateMessage()   { s.duplicateMessages.Add(1) }
func (s *SyncStats) PresenceApplied()    { s.presenceApplied.Add(1) }
func (s *SyncStats) SelfEchoSuppressed() { s.selfEchoSuppressed.Add(1) }
func (s *SyncStats) StaleEvent()         { s.staleEvents.Add(1) }
func (s *SyncStats) UndecodableEvent()   { s.undecodableEvents.Add(1) }
func (s *SyncStats) BackgroundFailure()  { s.backgroundFailures.Add(1) }
func (s *SyncStats) DroppedJob()         { s.droppedJobs.Add(1) }

func (s *SyncStats) Snapshot() SyncSnapshot {
	return SyncSnapshot{
		OpenConversations:  s.openConversations.Load(),
		MessagesApplied:    s.messagesApplied.Load(),
		DuplicateMessages:  s.duplicateMessages.Load(),
		PresenceApplied:    s.presenceApplied.Load(),
		SelfEchoSuppressed: s.selfEchoSuppressed.Load(),
		StaleEvents:        s.staleEvents.Load(),
		UndecodableEvents:  s.undecodableEvents.Load(),
		BackgroundFailures: s.backgroundFailures.Load(),
		DroppedJobs:        s.droppedJobs.Load(),
	}
}

// LogSummary writes the current counters at debug level.
func (s *SyncStats) LogSummary() {
	snap := s.Snapshot()
	s.log.Debug("Sync stats",
		"open", snap.OpenConversations,
		"messages", snap.MessagesApplied,
		"duplicates", snap.DuplicateMessages,
		"presence", snap.PresenceApplied,
		"self_echo", snap.SelfEchoSuppressed,
		"stale", snap.StaleEvents,
		"undecodable", snap.UndecodableEvents,
		"background_failures", snap.BackgroundFailures,
		"dropped_jobs", snap.DroppedJobs,
	)
}
