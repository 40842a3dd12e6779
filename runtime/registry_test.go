package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_ReserveIsExclusive(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := newConversation("c1", "ana", nil)
	second := newConversation("c1", "ana", nil)

	// Given a first reservation
	req.True(registry.Reserve(first))

	// Then the id cannot be taken twice
	req.False(registry.Reserve(second))
	got, ok := registry.Get("c1")
	req.True(ok)
	req.Same(first, got)

	// And only the registered entry can be removed
	req.False(registry.Remove(second))
	req.True(registry.Remove(first))
	req.Empty(registry.IDs())
	req.True(registry.Reserve(second))
	req.ElementsMatch([]string{"c1"}, toStrings(registry.IDs()))
}

func toStrings[T ~string](values []T) []string {
	res := make([]string, 0, len(values))
	for _, v := range values {
		res = append(res, string(v))
	}
	return res
}
