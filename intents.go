package herald

// Intents select which gateway event groups the remote service delivers to
// a session. They are declared once at identify time.
type Intents uint64

const (
	IntentGuilds Intents = 1 << iota
	IntentGuildMembers
	IntentGuildModeration
	IntentGuildEmojis
	IntentGuildIntegrations
	IntentGuildWebhooks
	IntentGuildInvites
	IntentGuildVoiceStates
	IntentGuildPresences
	IntentGuildMessages
	IntentGuildMessageReactions
	IntentGuildMessageTyping
	IntentDirectMessages
	IntentDirectMessageReactions
	IntentDirectMessageTyping
	IntentMessageContent
	IntentGuildScheduledEvents
)

// IntentsDefault returns every intent that does not require privileged
// access approval: everything except members, presences and message content.
func IntentsDefault() Intents {
	all := IntentGuilds | IntentGuildModeration | IntentGuildEmojis |
		IntentGuildIntegrations | IntentGuildWebhooks | IntentGuildInvites |
		IntentGuildVoiceStates | IntentGuildMessages | IntentGuildMessageReactions |
		IntentGuildMessageTyping | IntentDirectMessages | IntentDirectMessageReactions |
		IntentDirectMessageTyping | IntentGuildScheduledEvents
	return all
}

// Has reports whether every intent in other is enabled in i.
func (i Intents) Has(other Intents) bool {
	return i&other == other
}
