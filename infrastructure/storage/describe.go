package storage

import (
	"chat-sync/domain/event"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Describe renders a stored record for inspection tools.
func Describe(key string, value []byte) (kind, detail string) {
	prefix, _, _ := strings.Cut(key, ":")
	if prefix == "member" {
		return "MEMBER", ""
	}
	row := &structpb.Struct{}
	if err := proto.Unmarshal(value, row); err != nil {
		return "UNKNOWN", "unmarshal failed"
	}
	switch prefix {
	case "msg":
		m, err := event.DecodeMessage(row)
		if err != nil {
			return "MESSAGE", err.Error()
		}
		read := "unread"
		if m.Read {
			read = "read"
		}
		return "MESSAGE", fmt.Sprintf("%s: %s [%s]", m.SenderID, m.Content, read)
	case "presence":
		p, err := event.DecodePresence(row)
		if err != nil {
			return "PRESENCE", err.Error()
		}
		return "PRESENCE", fmt.Sprintf("%s typing=%t", p.ParticipantID, p.Typing)
	case "profile":
		p := event.DecodeProfile(row)
		return "PROFILE", fmt.Sprintf("%s <%s> %s", p.DisplayName(), p.Email, p.Role)
	default:
		return "UNKNOWN", ""
	}
}
