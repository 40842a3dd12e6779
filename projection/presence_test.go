package projection

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresence_IgnoresSelfEcho(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	presence.Track("c1", "viewer")

	// When the viewer's own record says typing
	req.False(presence.SetRemoteTyping("c1", "viewer", true))

	// Then nobody else is typing
	req.False(presence.IsAnyoneElseTyping("c1"))
}

func TestPresence_LastWriteWinsPerParticipant(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	presence.Track("c1", "viewer")

	req.True(presence.SetRemoteTyping("c1", "bob", true))
	req.True(presence.IsAnyoneElseTyping("c1"))

	req.True(presence.SetRemoteTyping("c1", "clara", true))
	req.True(presence.SetRemoteTyping("c1", "bob", false))
	req.True(presence.IsAnyoneElseTyping("c1"), "clara is still typing")

	req.True(presence.SetRemoteTyping("c1", "clara", false))
	req.False(presence.IsAnyoneElseTyping("c1"))
}

func TestPresence_UntrackedConversation(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	presence.Track("c1", "viewer")
	presence.SetRemoteTyping("c1", "bob", true)

	req.False(presence.SetRemoteTyping("c2", "bob", true))
	req.False(presence.IsAnyoneElseTyping("c2"))

	// When the conversation is forgotten, its indicator goes away with it
	presence.Forget("c1")
	req.False(presence.IsAnyoneElseTyping("c1"))
	req.False(presence.SetRemoteTyping("c1", "bob", true))
}
