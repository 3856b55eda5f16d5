package relay

// conversationDelimiter never appears inside a valid identity, so distinct
// unordered pairs can never collide.
const conversationDelimiter = "::"

// ConversationKey derives the canonical id for the two-party conversation
// between a and b. The pair is sorted first, so ConversationKey(a, b) ==
// ConversationKey(b, a) and both directions share one history partition.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + conversationDelimiter + b
}
