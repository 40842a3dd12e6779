package event

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestDecode_MessageInsert(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	name := "Ana Torres"
	row, err := EncodeMessage(domain.Message{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       "ana",
		Content:        "hola",
		CreatedAt:      at,
		Sender:         &domain.Profile{ID: "ana", Email: "ana@mail.com", FullName: &name, Role: domain.RoleAdvisor},
	})
	req.NoError(err)

	evt, err := Decode(RawChange{Table: MessagesTable, Type: Insert, New: row})
	req.NoError(err)

	inserted, ok := evt.(MessageInserted)
	req.True(ok)
	req.Equal(domain.ConversationID("c1"), inserted.ConversationID())
	req.Equal("hola", inserted.Message.Content)
	req.True(at.Equal(inserted.Message.CreatedAt))
	req.NotNil(inserted.Message.Sender)
	req.Equal("Ana Torres", inserted.Message.Sender.DisplayName())
}

func TestDecode_MessageUpdateIsNotMaterial(t *testing.T) {
	req := require.New(t)
	row, err := EncodeMessage(domain.Message{ID: "m1", ConversationID: "c1", SenderID: "ana", CreatedAt: time.Now()})
	req.NoError(err)

	_, err = Decode(RawChange{Table: MessagesTable, Type: Update, New: row})
	req.ErrorIs(err, errors.ErrUnsupportedChange)
}

func TestDecode_PresenceUpdate(t *testing.T) {
	req := require.New(t)
	row, err := EncodePresence(domain.Presence{ConversationID: "c1", ParticipantID: "bob", Typing: true, UpdatedAt: time.Now()})
	req.NoError(err)

	evt, err := Decode(RawChange{Table: PresenceTable, Type: Update, New: row})
	req.NoError(err)
	upserted, ok := evt.(PresenceUpserted)
	req.True(ok)
	req.Equal(domain.ParticipantID("bob"), upserted.Presence.ParticipantID)
	req.True(upserted.Presence.Typing)
}

func TestDecode_PresenceDeleteIsNotMaterial(t *testing.T) {
	_, err := Decode(RawChange{Table: PresenceTable, Type: Delete})
	require.ErrorIs(t, err, errors.ErrUnsupportedChange)
}

func TestDecode_RejectsMalformedRows(t *testing.T) {
	req := require.New(t)

	// Given a message row without id
	row, err := structpb.NewStruct(map[string]any{
		"conversation_id": "c1",
		"sender_id":       "ana",
		"body":            "hola",
	})
	req.NoError(err)
	_, err = Decode(RawChange{Table: MessagesTable, Type: Insert, New: row})
	req.ErrorIs(err, errors.ErrInvalidPayload)

	// Given a message row with a broken timestamp
	row, err = structpb.NewStruct(map[string]any{
		"id":              "m1",
		"conversation_id": "c1",
		"sender_id":       "ana",
		"created_at":      "yesterday",
	})
	req.NoError(err)
	_, err = Decode(RawChange{Table: MessagesTable, Type: Insert, New: row})
	req.ErrorIs(err, errors.ErrInvalidPayload)

	// Given an insert without row image
	_, err = Decode(RawChange{Table: PresenceTable, Type: Insert})
	req.ErrorIs(err, errors.ErrInvalidPayload)
}

func TestDecodeProfile_NullFullName(t *testing.T) {
	req := require.New(t)
	row, err := structpb.NewStruct(map[string]any{
		"id":        "bob",
		"email":     "bob.smith@mail.com",
		"full_name": nil,
	})
	req.NoError(err)

	profile := DecodeProfile(row)
	req.Nil(profile.FullName)
	req.Equal("bob.smith", profile.DisplayName())
}
