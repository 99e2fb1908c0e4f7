package herald

// VerificationLevel is the account verification bar a guild imposes on
// members before they can participate.
type VerificationLevel int

const (
	VerificationLevelNone VerificationLevel = iota
	VerificationLevelLow
	VerificationLevelMedium
	VerificationLevelHigh
	VerificationLevelVeryHigh
)

// PremiumTier is a guild's boost level.
type PremiumTier int

const (
	PremiumTierNone PremiumTier = iota
	PremiumTier1
	PremiumTier2
	PremiumTier3
)

// NotificationLevel is a guild's default message notification setting.
type NotificationLevel int

const (
	NotificationLevelAllMessages NotificationLevel = iota
	NotificationLevelOnlyMentions
)

// Guild represents a guild (a "server" in the user-facing vocabulary).
//
// Guilds delivered over the gateway during connection backfill carry their
// roles, channels and members inline; guilds fetched over REST do not.
// An unavailable guild carries only its ID and the Unavailable flag, either
// because of an outage or because it has not been backfilled yet.
type Guild struct {
	ID                Snowflake         `json:"id"`
	Name              string            `json:"name"`
	Icon              *string           `json:"icon"`
	Banner            *string           `json:"banner"`
	Description       *string           `json:"description"`
	OwnerID           Snowflake         `json:"owner_id"`
	AFKTimeout        int               `json:"afk_timeout"`
	VerificationLevel VerificationLevel `json:"verification_level"`
	Notifications     NotificationLevel `json:"default_message_notifications"`
	PremiumTier       PremiumTier       `json:"premium_tier"`
	Features          []string          `json:"features"`
	MemberCount       int               `json:"member_count"`
	Large             bool              `json:"large"`
	Unavailable       bool              `json:"unavailable"`

	// Populated only on gateway guild-create payloads.
	Roles    []Role    `json:"roles,omitempty"`
	Channels []Channel `json:"channels,omitempty"`
	Members  []Member  `json:"members,omitempty"`
}

// GatewayInfo is the response of the gateway discovery endpoint.
type GatewayInfo struct {
	URL string `json:"url"`
}

// GatewayBotInfo is the response of the bot gateway discovery endpoint,
// including the recommended shard count and session start budget.
type GatewayBotInfo struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// SessionStartLimit describes how many more gateway sessions may be started
// before the remote service rejects identify attempts.
type SessionStartLimit struct {
	Total          int `json:"total"`
	Remaining      int `json:"remaining"`
	ResetAfter     int `json:"reset_after"`
	MaxConcurrency int `json:"max_concurrency"`
}
