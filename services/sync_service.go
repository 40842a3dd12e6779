package services

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/runtime"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ISyncService is the surface offered to the UI layer.
type ISyncService interface {
	OpenConversation(ctx context.Context, conversationID domain.ConversationID, viewerID domain.ParticipantID) error
	CloseConversation(conversationID domain.ConversationID)
	CloseAll()
	SendMessage(ctx context.Context, conversationID domain.ConversationID, senderID domain.ParticipantID, text string) (domain.Message, error)
	ChangeInputText(conversationID domain.ConversationID, text string) error
	MarkRead(conversationID domain.ConversationID, viewerID domain.ParticipantID)
	Messages(conversationID domain.ConversationID) []domain.Message
	IsOtherTyping(conversationID domain.ConversationID) bool
	Unread(conversationID domain.ConversationID) int
	GlobalUnread(ctx context.Context, userID domain.ParticipantID) (int, error)
}

var _ ISyncService = (*SyncService)(nil)

type SyncService struct {
	log            *slog.Logger
	orchestrator   *runtime.Orchestrator
	backend        contract.Backend
	backendTimeout time.Duration
}

func NewSyncService(log *slog.Logger, orchestrator *runtime.Orchestrator, backend contract.Backend, backendTimeout time.Duration) *SyncService {
	return &SyncService{log: log, orchestrator: orchestrator, backend: backend, backendTimeout: backendTimeout}
}

func (s *SyncService) OpenConversation(ctx context.Context, conversationID domain.ConversationID, viewerID domain.ParticipantID) error {
	return s.orchestrator.OpenConversation(ctx, conversationID, viewerID)
}

func (s *SyncService) CloseConversation(conversationID domain.ConversationID) {
	s.orchestrator.CloseConversation(conversationID)
}

func (s *SyncService) CloseAll() {
	s.orchestrator.CloseAll()
}

// SendMessage returns once the backend acknowledged the message.
// The local timeline only shows it when the feed echoes it back.
func (s *SyncService) SendMessage(ctx context.Context, conversationID domain.ConversationID, senderID domain.ParticipantID, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	if conversationID == "" || senderID == "" {
		return domain.Message{}, fmt.Errorf("%w: conversation %q sender %q", errors.ErrInvalidMessage, conversationID, senderID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.backendTimeout)
	defer cancel()
	message, err := s.backend.CreateMessage(ctx, conversationID, senderID, text)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: create message in %s: %v", errors.ErrBackendUnavailable, conversationID, err)
	}
	s.orchestrator.StopTyping(conversationID)
	s.log.Debug("Message sent", "conversation", conversationID, "message", message.ID)
	return message, nil
}

// ChangeInputText reports a local edit of the input box.
// Any edit counts as activity, the text itself is not inspected.
func (s *SyncService) ChangeInputText(conversationID domain.ConversationID, _ string) error {
	return s.orchestrator.InputChanged(conversationID)
}

func (s *SyncService) MarkRead(conversationID domain.ConversationID, viewerID domain.ParticipantID) {
	s.orchestrator.MarkRead(conversationID, viewerID)
}

func (s *SyncService) Messages(conversationID domain.ConversationID) []domain.Message {
	return s.orchestrator.Messages(conversationID)
}

func (s *SyncService) IsOtherTyping(conversationID domain.ConversationID) bool {
	return s.orchestrator.IsOtherTyping(conversationID)
}

func (s *SyncService) Unread(conversationID domain.ConversationID) int {
	return s.orchestrator.Unread(conversationID)
}

func (s *SyncService) GlobalUnread(ctx context.Context, userID domain.ParticipantID) (int, error) {
	return s.orchestrator.GlobalUnread(ctx, userID)
}
