package event

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Column names of the row images.
const (
	colID             = "id"
	colConversationID = "conversation_id"
	colSenderID       = "sender_id"
	colBody           = "body"
	colRead           = "read"
	colCreatedAt      = "created_at"
	colSender         = "sender"
	colParticipantID  = "participant_id"
	colTyping         = "typing"
	colUpdatedAt      = "updated_at"
	colEmail          = "email"
	colFullName       = "full_name"
	colRole           = "role"
)

// Decode turns a raw change into its typed variant.
// Message rows are only material on INSERT; presence rows on INSERT or UPDATE.
func Decode(raw RawChange) (ChangeEvent, error) {
	switch raw.Table {
	case MessagesTable:
		if raw.Type != Insert {
			return nil, fmt.Errorf("%w: %s on %s", errors.ErrUnsupportedChange, raw.Type, raw.Table)
		}
		m, err := DecodeMessage(raw.New)
		if err != nil {
			return nil, err
		}
		return MessageInserted{Message: m}, nil
	case PresenceTable:
		if raw.Type != Insert && raw.Type != Update {
			return nil, fmt.Errorf("%w: %s on %s", errors.ErrUnsupportedChange, raw.Type, raw.Table)
		}
		p, err := DecodePresence(raw.New)
		if err != nil {
			return nil, err
		}
		return PresenceUpserted{Presence: p}, nil
	default:
		return nil, fmt.Errorf("%w: table %q", errors.ErrUnsupportedChange, raw.Table)
	}
}

func EncodeMessage(m domain.Message) (*structpb.Struct, error) {
	row := map[string]any{
		colID:             string(m.ID),
		colConversationID: string(m.ConversationID),
		colSenderID:       string(m.SenderID),
		colBody:           m.Content,
		colRead:           m.Read,
		colCreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if m.Sender != nil {
		row[colSender] = encodeProfile(*m.Sender)
	}
	return structpb.NewStruct(row)
}

func DecodeMessage(s *structpb.Struct) (domain.Message, error) {
	if s == nil {
		return domain.Message{}, fmt.Errorf("%w: empty message row", errors.ErrInvalidPayload)
	}
	fields := s.GetFields()
	createdAt, err := timeField(fields, colCreatedAt)
	if err != nil {
		return domain.Message{}, err
	}
	m := domain.Message{
		ID:             domain.MessageID(fields[colID].GetStringValue()),
		ConversationID: domain.ConversationID(fields[colConversationID].GetStringValue()),
		SenderID:       domain.ParticipantID(fields[colSenderID].GetStringValue()),
		Content:        fields[colBody].GetStringValue(),
		Read:           fields[colRead].GetBoolValue(),
		CreatedAt:      createdAt,
	}
	if sender := fields[colSender].GetStructValue(); sender != nil {
		p := decodeProfile(sender)
		m.Sender = &p
	}
	if err := domain.ValidateMessage(m); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return m, nil
}

func EncodePresence(p domain.Presence) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		colConversationID: string(p.ConversationID),
		colParticipantID:  string(p.ParticipantID),
		colTyping:         p.Typing,
		colUpdatedAt:      p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func DecodePresence(s *structpb.Struct) (domain.Presence, error) {
	if s == nil {
		return domain.Presence{}, fmt.Errorf("%w: empty presence row", errors.ErrInvalidPayload)
	}
	fields := s.GetFields()
	updatedAt, err := timeField(fields, colUpdatedAt)
	if err != nil {
		return domain.Presence{}, err
	}
	p := domain.Presence{
		ConversationID: domain.ConversationID(fields[colConversationID].GetStringValue()),
		ParticipantID:  domain.ParticipantID(fields[colParticipantID].GetStringValue()),
		Typing:         fields[colTyping].GetBoolValue(),
		UpdatedAt:      updatedAt,
	}
	if err := domain.ValidatePresence(p); err != nil {
		return domain.Presence{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return p, nil
}

func EncodeProfile(p domain.Profile) (*structpb.Struct, error) {
	return structpb.NewStruct(encodeProfile(p))
}

func DecodeProfile(s *structpb.Struct) domain.Profile {
	return decodeProfile(s)
}

func encodeProfile(p domain.Profile) map[string]any {
	row := map[string]any{
		colID:    string(p.ID),
		colEmail: p.Email,
		colRole:  string(p.Role),
	}
	if p.FullName != nil {
		row[colFullName] = *p.FullName
	}
	return row
}

func decodeProfile(s *structpb.Struct) domain.Profile {
	fields := s.GetFields()
	p := domain.Profile{
		ID:    domain.ParticipantID(fields[colID].GetStringValue()),
		Email: fields[colEmail].GetStringValue(),
		Role:  domain.Role(fields[colRole].GetStringValue()),
	}
	if v, ok := fields[colFullName]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			name := v.GetStringValue()
			p.FullName = &name
		}
	}
	return p
}

// timeField parses an RFC 3339 column. A missing column yields the zero time.
func timeField(fields map[string]*structpb.Value, name string) (time.Time, error) {
	raw := fields[name].GetStringValue()
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: column %s: %v", errors.ErrInvalidPayload, name, err)
	}
	return t.UTC(), nil
}
