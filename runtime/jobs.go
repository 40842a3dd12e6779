package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"context"
	"fmt"
	"time"
)

type presenceJob struct {
	backend        contract.Backend
	conversationID domain.ConversationID
	participantID  domain.ParticipantID
	typing         bool
}

func (j presenceJob) Name() string {
	return fmt.Sprintf("upsert_presence(%s,typing=%t)", j.conversationID, j.typing)
}

func (j presenceJob) Lane() string {
	return string(j.conversationID)
}

func (j presenceJob) Execute(ctx context.Context) error {
	return j.backend.UpsertPresence(ctx, j.conversationID, j.participantID, j.typing)
}

type markReadJob struct {
	backend        contract.Backend
	conversationID domain.ConversationID
	viewerID       domain.ParticipantID
	upTo           time.Time
}

func (j markReadJob) Name() string {
	return fmt.Sprintf("mark_read(%s)", j.conversationID)
}

func (j markReadJob) Lane() string {
	return string(j.conversationID)
}

func (j markReadJob) Execute(ctx context.Context) error {
	_, err := j.backend.MarkMessagesRead(ctx, j.conversationID, j.viewerID, j.upTo)
	return err
}

type notifyJob struct {
	notifier       contract.Notifier
	conversationID domain.ConversationID
	senderLabel    string
	text           string
}

func (j notifyJob) Name() string {
	return fmt.Sprintf("notify(%s)", j.conversationID)
}

func (j notifyJob) Lane() string {
	return string(j.conversationID)
}

func (j notifyJob) Execute(ctx context.Context) error {
	return j.notifier.NotifyNewMessage(ctx, j.senderLabel, j.text, j.conversationID)
}
