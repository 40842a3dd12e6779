package services

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/mocks"
	"chat-sync/observability"
	"chat-sync/projection"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newService(t *testing.T, backend *mocks.MockBackend) *SyncService {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 10*time.Millisecond), runtime.NewRegistry(),
		backend, mocks.NewMockMembership(ctrl), mocks.NewMockNotifier(ctrl),
		projection.NewTimeline(), projection.NewPresence(), projection.NewUnread(),
		observability.NewSyncStats(log), runtime.Options{BackendTimeout: time.Second})
	orchestrator.Start(context.Background())
	t.Cleanup(orchestrator.Stop)
	return NewSyncService(log, orchestrator, backend, time.Second)
}

func TestSyncService_SendMessage(t *testing.T) {
	tests := []struct {
		description string
		text        string
		createErr   error
		wantCreate  bool
		wantErr     error
	}{
		{"Should send a message", "  hola  ", nil, true, nil},
		{"Should reject an empty message", "", nil, false, errors.ErrEmptyMessage},
		{"Should reject a blank message", " \n\t ", nil, false, errors.ErrEmptyMessage},
		{"Should surface a backend failure", "hola", fmt.Errorf("timeout"), true, errors.ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			backend := mocks.NewMockBackend(ctrl)
			service := newService(t, backend)

			if tt.wantCreate {
				backend.EXPECT().CreateMessage(gomock.Any(), domain.ConversationID("c1"), domain.ParticipantID("ana"), "hola").
					Return(domain.Message{ID: "m1", ConversationID: "c1", SenderID: "ana", Content: "hola"}, tt.createErr).
					Times(1)
			}

			message, err := service.SendMessage(context.Background(), "c1", "ana", tt.text)

			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				return
			}
			req.NoError(err)
			req.Equal(domain.MessageID("m1"), message.ID)
		})
	}
}

func TestSyncService_SendMessage_StopsTypingWithoutLocalEcho(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	service := newService(t, backend)
	typingOff := make(chan struct{})

	// Given an open conversation with an empty history
	backend.EXPECT().Subscribe(gomock.Any(), contract.Filter{ConversationID: "c1"}, gomock.Any()).
		DoAndReturn(func(table event.RecordType, _ contract.Filter, _ contract.ChangeHandler) (contract.SubscriptionID, error) {
			return contract.SubscriptionID(table), nil
		}).Times(2)
	backend.EXPECT().LoadMessages(gomock.Any(), domain.ConversationID("c1")).Return(nil, nil).Times(1)
	backend.EXPECT().MarkMessagesRead(gomock.Any(), domain.ConversationID("c1"), domain.ParticipantID("ana"), gomock.Any()).Return(0, nil).AnyTimes()
	backend.EXPECT().Unsubscribe(gomock.Any()).Return(nil).AnyTimes()
	req.NoError(service.OpenConversation(context.Background(), "c1", "ana"))

	// Given the user is typing
	gomock.InOrder(
		backend.EXPECT().UpsertPresence(gomock.Any(), domain.ConversationID("c1"), domain.ParticipantID("ana"), true).Return(nil).Times(1),
		backend.EXPECT().UpsertPresence(gomock.Any(), domain.ConversationID("c1"), domain.ParticipantID("ana"), false).
			DoAndReturn(func(context.Context, domain.ConversationID, domain.ParticipantID, bool) error {
				close(typingOff)
				return nil
			}).Times(1),
	)
	backend.EXPECT().UpsertPresence(gomock.Any(), gomock.Any(), gomock.Any(), false).Return(nil).AnyTimes()
	req.NoError(service.ChangeInputText("c1", "ho"))

	// When the message is sent
	backend.EXPECT().CreateMessage(gomock.Any(), domain.ConversationID("c1"), domain.ParticipantID("ana"), "hola").
		Return(domain.Message{ID: "m1", ConversationID: "c1", SenderID: "ana", Content: "hola"}, nil).Times(1)
	_, err := service.SendMessage(context.Background(), "c1", "ana", "hola")
	req.NoError(err)

	// Then typing is turned off and the message waits for its echo
	select {
	case <-typingOff:
	case <-time.After(time.Second):
		req.Fail("typing=false not published")
	}
	req.Empty(service.Messages("c1"))
}

func TestSyncService_ChangeInputText_RequiresOpenConversation(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	service := newService(t, mocks.NewMockBackend(ctrl))

	err := service.ChangeInputText("unknown", "hi")

	req.ErrorIs(err, errors.ErrConversationNotOpen)
}
