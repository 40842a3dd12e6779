package main

import (
	"bufio"
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/infrastructure/notification"
	"chat-sync/infrastructure/storage"
	"chat-sync/internal"
	"chat-sync/observability"
	"chat-sync/projection"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/services"
	"chat-sync/sink"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatsync terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the sync engine on a local Badger backend and drives one
// conversation from the terminal:
//
//	<text>    announce typing then send
//	/read     mark the conversation read
//	/unread   unread counts
//	/history  print the local timeline
//	/peer <text>  write as PEER_ID straight into the store
//	/quit     leave
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, RecordMapper)
	}

	userID := domain.ParticipantID(config.UserID)
	conversationID := domain.ConversationID(config.ConversationID)
	store := storage.NewRecordStore(db, logger, storage.NewFeed())
	if err := store.AddMember(userID, conversationID); err != nil {
		return exitRuntime, err
	}
	if config.PeerID != "" {
		if err := store.AddMember(domain.ParticipantID(config.PeerID), conversationID); err != nil {
			return exitRuntime, err
		}
	}

	// 4. Engine
	stats := observability.NewSyncStats(logger)
	orchestrator := runtime.NewOrchestrator(logger,
		workers.NewSupervisor(logger, config.RestartInterval), runtime.NewRegistry(),
		store, store, notification.NewConsoleNotifier(os.Stdout),
		projection.NewTimeline(), projection.NewPresence(), projection.NewUnread(),
		stats, runtime.Options{
			QuietInterval:      config.TypingQuietInterval,
			BackendTimeout:     config.BackendTimeout,
			SinkTimeout:        config.SinkTimeout,
			OutboxSize:         config.OutboxBufferSize,
			FanoutSize:         config.FanoutBufferSize,
			DefaultSenderLabel: config.DefaultSenderLabel,
			ReportInterval:     config.StatsInterval,
		})
	orchestrator.Add(sink.NewConsoleSink(os.Stdout, userID))
	orchestrator.Start(ctx)
	defer orchestrator.Stop()

	service := services.NewSyncService(logger, orchestrator, store, config.BackendTimeout)
	if err := service.OpenConversation(ctx, conversationID, userID); err != nil {
		return exitRuntime, err
	}
	for _, m := range service.Messages(conversationID) {
		fmt.Printf("%s: %s\n", m.SenderID, m.Content)
	}

	// 5. Terminal loop
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if quit := handle(ctx, service, store, conversationID, userID, domain.ParticipantID(config.PeerID), line); quit {
				return exitOK, nil
			}
		}
	}
}

func handle(ctx context.Context, service services.ISyncService, backend contract.Backend,
	conversationID domain.ConversationID, userID, peerID domain.ParticipantID, line string) bool {
	if text, ok := strings.CutPrefix(line, "/peer "); ok && peerID != "" {
		if err := backend.UpsertPresence(ctx, conversationID, peerID, true); err != nil {
			fmt.Printf("peer typing: %v\n", err)
		}
		if _, err := backend.CreateMessage(ctx, conversationID, peerID, text); err != nil {
			fmt.Printf("peer send: %v\n", err)
		}
		if err := backend.UpsertPresence(ctx, conversationID, peerID, false); err != nil {
			fmt.Printf("peer typing: %v\n", err)
		}
		return false
	}
	switch strings.TrimSpace(line) {
	case "/quit":
		return true
	case "/read":
		service.MarkRead(conversationID, userID)
	case "/unread":
		total, err := service.GlobalUnread(ctx, userID)
		if err != nil {
			fmt.Printf("unread: %v\n", err)
			return false
		}
		fmt.Printf("unread here: %d, everywhere: %d\n", service.Unread(conversationID), total)
	case "/history":
		for _, m := range service.Messages(conversationID) {
			fmt.Printf("%s %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), m.SenderID, m.Content)
		}
	default:
		if err := service.ChangeInputText(conversationID, line); err != nil {
			fmt.Printf("typing: %v\n", err)
		}
		if _, err := service.SendMessage(ctx, conversationID, userID, line); err != nil {
			fmt.Printf("send: %v\n", err)
		}
	}
	return false
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}

// RecordMapper feeds the debug inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	row.Type, row.Detail = storage.Describe(key, val)
	return row
}
