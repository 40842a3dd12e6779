package e2e

import (
	"chat-sync/domain"
	"chat-sync/infrastructure/storage"
	"chat-sync/observability"
	"chat-sync/projection"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/services"
	"chat-sync/sink"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseSyncSuite runs several sync engines against one shared record store,
// each one standing for a device of a different participant.
type BaseSyncSuite struct {
	suite.Suite
	Config Config
	Store  *storage.RecordStore
}

// Client is one participant's engine.
type Client struct {
	ID           domain.ParticipantID
	Service      *services.SyncService
	Orchestrator *runtime.Orchestrator
	Events       *sink.Recorder
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSyncSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

// SetupTest gives every scenario a fresh store
func (s *BaseSyncSuite) SetupTest() {
	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	// Registered first so that it runs after every client has stopped
	s.T().Cleanup(func() { _ = db.Close() })
	s.Store = storage.NewRecordStore(db, logs.GetLoggerFromString(s.Config.LogLevel), storage.NewFeed())
}

// NewClient starts an engine for participantID, stopped at the end of the test.
func (s *BaseSyncSuite) NewClient(participantID domain.ParticipantID, notifications io.Writer) *Client {
	log := logs.GetLoggerFromString(s.Config.LogLevel).With("client", participantID)
	orchestrator := runtime.NewOrchestrator(log,
		workers.NewSupervisor(log, 50*time.Millisecond), runtime.NewRegistry(),
		s.Store, s.Store, newNotifier(notifications),
		projection.NewTimeline(), projection.NewPresence(), projection.NewUnread(),
		observability.NewSyncStats(log), runtime.Options{
			QuietInterval:      s.Config.QuietInterval,
			BackendTimeout:     time.Second,
			SinkTimeout:        time.Second,
			DefaultSenderLabel: "Asesor",
		})
	recorder := sink.NewRecorder()
	orchestrator.Add(recorder)
	orchestrator.Start(context.Background())
	s.T().Cleanup(orchestrator.Stop)

	return &Client{
		ID:           participantID,
		Service:      services.NewSyncService(log, orchestrator, s.Store, time.Second),
		Orchestrator: orchestrator,
		Events:       recorder,
	}
}

// Step prints a colorized header then runs one step of the scenario
func (s *BaseSyncSuite) Step(name string, fn func(ctx context.Context)) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx)
}

// Eventually retries cond until the configured wait elapses
func (s *BaseSyncSuite) Eventually(cond func() bool, msg string) {
	s.Require().Eventually(cond, s.Config.Wait, 10*time.Millisecond, msg)
}

func (s *BaseSyncSuite) Profile(id domain.ParticipantID, email, fullName string, role domain.Role) {
	profile := domain.Profile{ID: id, Email: email, Role: role}
	if fullName != "" {
		profile.FullName = &fullName
	}
	s.Require().NoError(s.Store.SaveProfile(profile))
}
