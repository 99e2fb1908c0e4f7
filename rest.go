package herald

import "context"

// RestClient issues REST calls against the remote API. Every call honors
// the per-bucket and global rate-limit contract: requests sharing a bucket
// are serialized, exhausted buckets delay their next request until the
// advertised reset, and a global throttle suspends everything until it
// clears. Failures surface as *APIError where the service returned one.
//
// Methods taking a reason record it in the guild's audit log.
type RestClient interface {
	// Gateway returns the gateway URL for unauthenticated use.
	Gateway(ctx context.Context) (*GatewayInfo, error)

	// GatewayBot returns the gateway URL, recommended shard count and
	// session start budget for the configured token.
	GatewayBot(ctx context.Context) (*GatewayBotInfo, error)

	// CurrentUser returns the client's own user.
	CurrentUser(ctx context.Context) (*User, error)

	// User returns the user with the given ID.
	User(ctx context.Context, id Snowflake) (*User, error)

	// CreateDM opens (or returns the existing) direct-message channel with
	// a user.
	CreateDM(ctx context.Context, recipientID Snowflake) (*Channel, error)

	// LeaveGuild removes the client user from a guild.
	LeaveGuild(ctx context.Context, guildID Snowflake) error

	// Guild returns the guild with the given ID.
	Guild(ctx context.Context, id Snowflake) (*Guild, error)

	// Roles returns all roles of a guild.
	Roles(ctx context.Context, guildID Snowflake) ([]Role, error)

	// CreateRole creates a role in a guild.
	CreateRole(ctx context.Context, guildID Snowflake, params RoleParams, reason string) (*Role, error)

	// EditRole modifies a role.
	EditRole(ctx context.Context, guildID, roleID Snowflake, params RoleParams, reason string) (*Role, error)

	// DeleteRole deletes a role.
	DeleteRole(ctx context.Context, guildID, roleID Snowflake, reason string) error

	// Member returns the member for the given user in a guild.
	Member(ctx context.Context, guildID, userID Snowflake) (*Member, error)

	// Members lists a guild's members, at most limit at a time, starting
	// after the given user ID. Limit zero means the service default.
	Members(ctx context.Context, guildID Snowflake, limit int, after Snowflake) ([]Member, error)

	// KickMember removes a user from a guild.
	KickMember(ctx context.Context, guildID, userID Snowflake, reason string) error

	// Channels returns all channels of a guild.
	Channels(ctx context.Context, guildID Snowflake) ([]Channel, error)

	// CreateChannel creates a channel in a guild.
	CreateChannel(ctx context.Context, guildID Snowflake, params ChannelParams, reason string) (*Channel, error)

	// Channel returns the channel with the given ID.
	Channel(ctx context.Context, id Snowflake) (*Channel, error)

	// EditChannel modifies a channel.
	EditChannel(ctx context.Context, id Snowflake, params ChannelParams, reason string) (*Channel, error)

	// DeleteChannel deletes a channel, or closes it for direct messages.
	DeleteChannel(ctx context.Context, id Snowflake, reason string) error

	// Messages returns a channel's most recent messages, at most limit at
	// a time. Limit zero means the service default.
	Messages(ctx context.Context, channelID Snowflake, limit int) ([]Message, error)

	// Message returns a single message.
	Message(ctx context.Context, channelID, messageID Snowflake) (*Message, error)

	// CreateMessage posts a message. Attached files are uploaded as
	// multipart form parts.
	CreateMessage(ctx context.Context, channelID Snowflake, params MessageParams) (*Message, error)

	// EditMessage modifies a message previously sent by the client user.
	EditMessage(ctx context.Context, channelID, messageID Snowflake, params MessageParams) (*Message, error)

	// DeleteMessage deletes a message.
	DeleteMessage(ctx context.Context, channelID, messageID Snowflake) error

	// Close releases the REST client's rate-limit state. Requests issued
	// after Close start from a clean registry.
	Close()
}
