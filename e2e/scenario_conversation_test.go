package e2e

import (
	"bytes"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type ConversationScenarioSuite struct {
	BaseSyncSuite
}

func TestConversationScenario(t *testing.T) {
	suite.Run(t, new(ConversationScenarioSuite))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const (
	advisorID     domain.ParticipantID  = "advisor-7"
	userID        domain.ParticipantID  = "user-42"
	contractChat  domain.ConversationID = "contract-1001"
	secondaryChat domain.ConversationID = "contract-1002"
	advisorEmail                        = "lucia.ramos@example.com"
	advisorName                         = "Lucía Ramos"
	userEmail                           = "jperez@example.com"
)

func contents(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.Content })
}

// The user and an advisor chat about a contract request: typing indicators,
// delivery through the feed, unread counts and read receipts.
func (s *ConversationScenarioSuite) TestAdvisorAndUserConversation() {
	s.Profile(advisorID, advisorEmail, advisorName, domain.RoleAdvisor)
	s.Profile(userID, userEmail, "", domain.RoleUser)
	for _, participant := range []domain.ParticipantID{advisorID, userID} {
		s.Require().NoError(s.Store.AddMember(participant, contractChat))
	}

	notifications := &lockedBuffer{}
	user := s.NewClient(userID, notifications)
	advisor := s.NewClient(advisorID, nil)

	s.Step("Advisor greets before the user connects", func(ctx context.Context) {
		_, err := advisor.Service.SendMessage(ctx, contractChat, advisorID, "Hola, soy su asesora")
		s.Require().NoError(err)
		unread, err := user.Service.GlobalUnread(ctx, userID)
		s.Require().NoError(err)
		s.Equal(1, unread, "closed conversations are counted by the backend")
	})

	s.Step("Both open the conversation", func(ctx context.Context) {
		s.Require().NoError(user.Service.OpenConversation(ctx, contractChat, userID))
		s.Require().NoError(advisor.Service.OpenConversation(ctx, contractChat, advisorID))

		s.Equal([]string{"Hola, soy su asesora"}, contents(user.Service.Messages(contractChat)))
		s.Zero(user.Service.Unread(contractChat), "history is marked read on open")
		s.Eventually(func() bool {
			count, err := s.Store.CountUnread(ctx, contractChat, userID)
			return err == nil && count == 0
		}, "backend rows flipped to read")
	})

	s.Step("Advisor types, the user sees it, then it decays", func(ctx context.Context) {
		s.Require().NoError(advisor.Service.ChangeInputText(contractChat, "Su"))
		s.Require().NoError(advisor.Service.ChangeInputText(contractChat, "Su contrato"))
		s.Eventually(func() bool { return user.Service.IsOtherTyping(contractChat) }, "user sees the advisor typing")
		s.False(advisor.Service.IsOtherTyping(contractChat), "own typing is never displayed")
		s.Eventually(func() bool { return !user.Service.IsOtherTyping(contractChat) }, "typing decays after the quiet interval")
	})

	s.Step("Advisor sends, the user receives it unread", func(ctx context.Context) {
		s.Require().NoError(advisor.Service.ChangeInputText(contractChat, "Su contrato está listo"))
		sent, err := advisor.Service.SendMessage(ctx, contractChat, advisorID, "Su contrato está listo")
		s.Require().NoError(err)

		s.Eventually(func() bool { return len(user.Service.Messages(contractChat)) == 2 }, "message delivered")
		s.Eventually(func() bool { return len(advisor.Service.Messages(contractChat)) == 2 }, "sender sees the echo")
		s.Equal(sent.ID, user.Service.Messages(contractChat)[1].ID)
		s.Equal(1, user.Service.Unread(contractChat))
		s.Zero(advisor.Service.Unread(contractChat), "own messages are never unread")
		s.Eventually(func() bool { return !user.Service.IsOtherTyping(contractChat) }, "sending clears typing")
		s.Eventually(func() bool {
			return bytes.Contains([]byte(notifications.String()), []byte(advisorName))
		}, "notification labelled with the advisor's name")
	})

	s.Step("User reads the conversation", func(ctx context.Context) {
		user.Service.MarkRead(contractChat, userID)
		s.Zero(user.Service.Unread(contractChat))
		s.Eventually(func() bool {
			count, err := s.Store.CountUnread(ctx, contractChat, userID)
			return err == nil && count == 0
		}, "backend rows flipped to read")
		unread, err := user.Service.GlobalUnread(ctx, userID)
		s.Require().NoError(err)
		s.Zero(unread)
	})

	s.Step("User replies", func(ctx context.Context) {
		_, err := user.Service.SendMessage(ctx, contractChat, userID, "¡Gracias!")
		s.Require().NoError(err)
		s.Eventually(func() bool { return advisor.Service.Unread(contractChat) == 1 }, "advisor counts the reply")
		s.Equal([]string{"Hola, soy su asesora", "Su contrato está listo", "¡Gracias!"}, contents(advisor.Service.Messages(contractChat)))
	})
}

// Closing stops every update, and a closed conversation is counted by the backend again.
func (s *ConversationScenarioSuite) TestClosedConversationStopsSyncing() {
	for _, chat := range []domain.ConversationID{contractChat, secondaryChat} {
		s.Require().NoError(s.Store.AddMember(userID, chat))
		s.Require().NoError(s.Store.AddMember(advisorID, chat))
	}
	user := s.NewClient(userID, nil)
	advisor := s.NewClient(advisorID, nil)

	s.Step("User opens both conversations then leaves the first one", func(ctx context.Context) {
		s.Require().NoError(user.Service.OpenConversation(ctx, contractChat, userID))
		s.Require().NoError(user.Service.OpenConversation(ctx, secondaryChat, userID))
		user.Service.CloseConversation(contractChat)
		s.ErrorIs(user.Service.ChangeInputText(contractChat, "x"), errors.ErrConversationNotOpen)
	})

	s.Step("Advisor writes in both", func(ctx context.Context) {
		_, err := advisor.Service.SendMessage(ctx, contractChat, advisorID, "after close")
		s.Require().NoError(err)
		_, err = advisor.Service.SendMessage(ctx, secondaryChat, advisorID, "still open")
		s.Require().NoError(err)

		s.Eventually(func() bool { return user.Service.Unread(secondaryChat) == 1 }, "open conversation updated")
		time.Sleep(50 * time.Millisecond)
		s.Empty(user.Service.Messages(contractChat), "closed conversation untouched")
	})

	s.Step("Global unread mixes local and backend counts", func(ctx context.Context) {
		unread, err := user.Service.GlobalUnread(ctx, userID)
		s.Require().NoError(err)
		s.Equal(2, unread)
	})

	s.Step("Logout closes everything", func(ctx context.Context) {
		user.Service.CloseAll()
		s.ErrorIs(user.Service.ChangeInputText(secondaryChat, "x"), errors.ErrConversationNotOpen)
		s.Equal(int64(0), user.Orchestrator.Stats().OpenConversations)
	})
}
