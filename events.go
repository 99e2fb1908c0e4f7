package herald

import (
	"context"
	"encoding/json"
)

// Event names accepted by Client.On. Each name corresponds to exactly one
// concrete event struct in this package.
const (
	// EventGatewayDispatch fires for every raw gateway dispatch when
	// Config.DebugEvents is enabled, before any named handling occurs.
	EventGatewayDispatch = "gateway_dispatch"

	// Readiness events
	EventShardReady = "shard_ready"
	EventReady      = "ready"

	// Guild events
	EventGuildAvailable   = "guild_available"
	EventGuildUnavailable = "guild_unavailable"
	EventGuildJoin        = "guild_join"
	EventGuildLeave       = "guild_leave"
	EventGuildUpdate      = "guild_update"

	// Role events
	EventRoleCreate = "role_create"
	EventRoleUpdate = "role_update"
	EventRoleDelete = "role_delete"

	// Member events
	EventMemberJoin   = "guild_member_join"
	EventMemberRemove = "guild_member_remove"
	EventMemberUpdate = "guild_member_update"

	// Channel events
	EventChannelCreate = "channel_create"
	EventChannelUpdate = "channel_update"
	EventChannelDelete = "channel_delete"

	// Message events
	EventMessageCreate = "message_create"
)

// Event is implemented by every event struct delivered to callbacks.
type Event interface {
	// EventName returns the name the event is registered under.
	EventName() string
}

// EventCallback is invoked for every occurrence of an event it was
// registered for. Callbacks run concurrently with each other and with the
// dispatch loop; a panicking callback is recovered and logged without
// affecting other callbacks. The context is the client's lifecycle context.
type EventCallback func(ctx context.Context, event Event)

// GatewayDispatch is the raw form of a gateway dispatch, emitted for every
// inbound dispatch when debug events are enabled, whether or not the title
// is otherwise recognized.
type GatewayDispatch struct {
	Shard Shard
	Title string
	Data  json.RawMessage
}

// Ready fires once guild backfill has quiesced across all shards.
type Ready struct{}

// ShardReady fires once a single shard's guild backfill has quiesced.
type ShardReady struct {
	Shard Shard
}

// GuildAvailable fires when a guild listed as unavailable at session start
// finishes backfilling.
type GuildAvailable struct {
	Guild *Guild
}

// GuildUnavailable fires when a guild becomes unavailable due to an outage.
type GuildUnavailable struct {
	Guild *Guild
}

// GuildJoin fires when the client user is added to a new guild.
type GuildJoin struct {
	Guild *Guild
}

// GuildLeave fires when the client user is removed from a guild.
type GuildLeave struct {
	Guild *Guild
}

// GuildUpdate fires when a guild's properties change. Before is nil when the
// guild was not cached.
type GuildUpdate struct {
	Before *Guild
	After  *Guild
}

// RoleCreate fires when a role is created in a guild.
type RoleCreate struct {
	GuildID Snowflake
	Role    *Role
}

// RoleUpdate fires when a role changes. Before is nil when the role was not
// cached.
type RoleUpdate struct {
	GuildID Snowflake
	Before  *Role
	After   *Role
}

// RoleDelete fires when a role is deleted. Role is nil when it was not
// cached.
type RoleDelete struct {
	GuildID Snowflake
	RoleID  Snowflake
	Role    *Role
}

// MemberJoin fires when a user joins a guild.
type MemberJoin struct {
	Member *Member
}

// MemberUpdate fires when a guild member changes. Before is nil when the
// member was not cached.
type MemberUpdate struct {
	Before *Member
	After  *Member
}

// MemberRemove fires when a user leaves or is removed from a guild. Member
// is nil when the member was not cached.
type MemberRemove struct {
	GuildID Snowflake
	User    *User
	Member  *Member
}

// ChannelCreate fires when a channel is created.
type ChannelCreate struct {
	Channel *Channel
}

// ChannelUpdate fires when a channel changes. Before is nil when the channel
// was not cached.
type ChannelUpdate struct {
	Before *Channel
	After  *Channel
}

// ChannelDelete fires when a channel is deleted.
type ChannelDelete struct {
	Channel *Channel
}

// MessageCreate fires when a message is posted to a channel the client
// can see.
type MessageCreate struct {
	Message *Message
}

func (GatewayDispatch) EventName() string  { return EventGatewayDispatch }
func (Ready) EventName() string            { return EventReady }
func (ShardReady) EventName() string       { return EventShardReady }
func (GuildAvailable) EventName() string   { return EventGuildAvailable }
func (GuildUnavailable) EventName() string { return EventGuildUnavailable }
func (GuildJoin) EventName() string        { return EventGuildJoin }
func (GuildLeave) EventName() string       { return EventGuildLeave }
func (GuildUpdate) EventName() string      { return EventGuildUpdate }
func (RoleCreate) EventName() string       { return EventRoleCreate }
func (RoleUpdate) EventName() string       { return EventRoleUpdate }
func (RoleDelete) EventName() string       { return EventRoleDelete }
func (MemberJoin) EventName() string       { return EventMemberJoin }
func (MemberUpdate) EventName() string     { return EventMemberUpdate }
func (MemberRemove) EventName() string     { return EventMemberRemove }
func (ChannelCreate) EventName() string    { return EventChannelCreate }
func (ChannelUpdate) EventName() string    { return EventChannelUpdate }
func (ChannelDelete) EventName() string    { return EventChannelDelete }
func (MessageCreate) EventName() string    { return EventMessageCreate }
