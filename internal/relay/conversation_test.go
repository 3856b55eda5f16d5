package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationKey(t *testing.T) {
	tt := []struct {
		name     string
		a, b     string
		expected string
	}{
		{
			name:     "already ordered",
			a:        "alice",
			b:        "bob",
			expected: "alice::bob",
		},
		{
			name:     "reversed order",
			a:        "bob",
			b:        "alice",
			expected: "alice::bob",
		},
		{
			name:     "self conversation",
			a:        "alice",
			b:        "alice",
			expected: "alice::alice",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ConversationKey(tc.a, tc.b), "expected canonical key")
		})
	}
}

func TestConversationKeySymmetry(t *testing.T) {
	assert.Equal(t, ConversationKey("carol", "dave"), ConversationKey("dave", "carol"),
		"expected both directions to share one key")
	assert.NotEqual(t, ConversationKey("alice", "bob"), ConversationKey("alice", "carol"),
		"expected distinct pairs to produce distinct keys")
}
