package herald

// Cache stores entities received over the gateway. It is mutated only by
// the dispatch layer; REST calls never write to it. Implementations must be
// safe for concurrent use.
//
// The library ships an in-memory implementation; supply your own to New via
// a custom session if entities should be stored elsewhere.
type Cache interface {
	// User returns the cached user with the given ID.
	User(id Snowflake) (*User, bool)

	// AddUser inserts or overwrites a user.
	AddUser(u *User)

	// Guild returns the cached guild with the given ID.
	Guild(id Snowflake) (*Guild, bool)

	// AddGuild inserts or overwrites a guild.
	AddGuild(g *Guild)

	// RemoveGuild removes and returns the guild with the given ID.
	RemoveGuild(id Snowflake) (*Guild, bool)

	// Guilds returns all cached guilds.
	Guilds() []*Guild

	// Role returns the cached role with the given ID in the given guild.
	Role(guildID, id Snowflake) (*Role, bool)

	// AddRole inserts or overwrites a role in a guild.
	AddRole(guildID Snowflake, r *Role)

	// RemoveRole removes and returns the role with the given ID.
	RemoveRole(guildID, id Snowflake) (*Role, bool)

	// Channel returns the cached channel with the given ID.
	Channel(id Snowflake) (*Channel, bool)

	// AddChannel inserts or overwrites a channel.
	AddChannel(ch *Channel)

	// RemoveChannel removes and returns the channel with the given ID.
	RemoveChannel(id Snowflake) (*Channel, bool)

	// Member returns the cached member for the given user in the given
	// guild.
	Member(guildID, userID Snowflake) (*Member, bool)

	// AddMember inserts or overwrites a member, keyed by Member.GuildID and
	// the member's user ID.
	AddMember(m *Member)

	// RemoveMember removes and returns the member for the given user.
	RemoveMember(guildID, userID Snowflake) (*Member, bool)

	// Clear drops everything.
	Clear()
}
