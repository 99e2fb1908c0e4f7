package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/heraldlib/herald"
)

// Gateway returns the gateway URL for unauthenticated use.
func (c *Client) Gateway(ctx context.Context) (*herald.GatewayInfo, error) {
	route, err := NewUnauthenticatedRoute(http.MethodGet, "/gateway", nil)
	if err != nil {
		return nil, err
	}
	var info herald.GatewayInfo
	if err := c.doJSON(ctx, route, "", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GatewayBot returns the gateway URL plus shard and session-start guidance
// for the configured token.
func (c *Client) GatewayBot(ctx context.Context) (*herald.GatewayBotInfo, error) {
	route, err := NewRoute(http.MethodGet, "/gateway/bot", nil)
	if err != nil {
		return nil, err
	}
	var info herald.GatewayBotInfo
	if err := c.doJSON(ctx, route, "", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CurrentUser returns the client's own user.
func (c *Client) CurrentUser(ctx context.Context) (*herald.User, error) {
	route, err := NewRoute(http.MethodGet, "/users/@me", nil)
	if err != nil {
		return nil, err
	}
	var user herald.User
	if err := c.doJSON(ctx, route, "", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// User returns the user with the given ID.
func (c *Client) User(ctx context.Context, id herald.Snowflake) (*herald.User, error) {
	route, err := NewRoute(http.MethodGet, "/users/{user_id}", Params{"user_id": id})
	if err != nil {
		return nil, err
	}
	var user herald.User
	if err := c.doJSON(ctx, route, "", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateDM opens (or returns the existing) DM channel with a user.
func (c *Client) CreateDM(ctx context.Context, recipientID herald.Snowflake) (*herald.Channel, error) {
	route, err := NewRoute(http.MethodPost, "/users/@me/channels", nil)
	if err != nil {
		return nil, err
	}
	in := struct {
		RecipientID herald.Snowflake `json:"recipient_id"`
	}{recipientID}
	var channel herald.Channel
	if err := c.doJSON(ctx, route, "", in, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// LeaveGuild removes the client user from a guild.
func (c *Client) LeaveGuild(ctx context.Context, guildID herald.Snowflake) error {
	route, err := NewRoute(http.MethodDelete, "/users/@me/guilds/{guild_id}", Params{"guild_id": guildID})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, route, "", nil, nil)
}

// Guild returns the guild with the given ID.
func (c *Client) Guild(ctx context.Context, id herald.Snowflake) (*herald.Guild, error) {
	route, err := NewRoute(http.MethodGet, "/guilds/{guild_id}", Params{"guild_id": id})
	if err != nil {
		return nil, err
	}
	var guild herald.Guild
	if err := c.doJSON(ctx, route, "", nil, &guild); err != nil {
		return nil, err
	}
	return &guild, nil
}

// Roles returns all roles of a guild.
func (c *Client) Roles(ctx context.Context, guildID herald.Snowflake) ([]herald.Role, error) {
	route, err := NewRoute(http.MethodGet, "/guilds/{guild_id}/roles", Params{"guild_id": guildID})
	if err != nil {
		return nil, err
	}
	var roles []herald.Role
	if err := c.doJSON(ctx, route, "", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// CreateRole creates a role in a guild.
func (c *Client) CreateRole(ctx context.Context, guildID herald.Snowflake, params herald.RoleParams, reason string) (*herald.Role, error) {
	route, err := NewRoute(http.MethodPost, "/guilds/{guild_id}/roles", Params{"guild_id": guildID})
	if err != nil {
		return nil, err
	}
	var role herald.Role
	if err := c.doJSON(ctx, route, reason, params, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// EditRole modifies a role.
func (c *Client) EditRole(ctx context.Context, guildID, roleID herald.Snowflake, params herald.RoleParams, reason string) (*herald.Role, error) {
	route, err := NewRoute(http.MethodPatch, "/guilds/{guild_id}/roles/{role_id}", Params{
		"guild_id": guildID,
		"role_id":  roleID,
	})
	if err != nil {
		return nil, err
	}
	var role herald.Role
	if err := c.doJSON(ctx, route, reason, params, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// DeleteRole deletes a role.
func (c *Client) DeleteRole(ctx context.Context, guildID, roleID herald.Snowflake, reason string) error {
	route, err := NewRoute(http.MethodDelete, "/guilds/{guild_id}/roles/{role_id}", Params{
		"guild_id": guildID,
		"role_id":  roleID,
	})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, route, reason, nil, nil)
}

// Member returns the member for the given user in a guild.
func (c *Client) Member(ctx context.Context, guildID, userID herald.Snowflake) (*herald.Member, error) {
	route, err := NewRoute(http.MethodGet, "/guilds/{guild_id}/members/{user_id}", Params{
		"guild_id": guildID,
		"user_id":  userID,
	})
	if err != nil {
		return nil, err
	}
	var member herald.Member
	if err := c.doJSON(ctx, route, "", nil, &member); err != nil {
		return nil, err
	}
	// Member payloads do not carry the guild ID.
	member.GuildID = guildID
	return &member, nil
}

// Members lists a guild's members.
func (c *Client) Members(ctx context.Context, guildID herald.Snowflake, limit int, after herald.Snowflake) ([]herald.Member, error) {
	route, err := NewRoute(http.MethodGet, "/guilds/{guild_id}/members", Params{"guild_id": guildID})
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if !after.IsZero() {
		query.Set("after", after.String())
	}
	var members []herald.Member
	if err := c.finish(ctx, route, requestOptions{query: query}, &members); err != nil {
		return nil, err
	}
	for i := range members {
		members[i].GuildID = guildID
	}
	return members, nil
}

// KickMember removes a user from a guild.
func (c *Client) KickMember(ctx context.Context, guildID, userID herald.Snowflake, reason string) error {
	route, err := NewRoute(http.MethodDelete, "/guilds/{guild_id}/members/{user_id}", Params{
		"guild_id": guildID,
		"user_id":  userID,
	})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, route, reason, nil, nil)
}

// Channels returns all channels of a guild.
func (c *Client) Channels(ctx context.Context, guildID herald.Snowflake) ([]herald.Channel, error) {
	route, err := NewRoute(http.MethodGet, "/guilds/{guild_id}/channels", Params{"guild_id": guildID})
	if err != nil {
		return nil, err
	}
	var channels []herald.Channel
	if err := c.doJSON(ctx, route, "", nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// CreateChannel creates a channel in a guild.
func (c *Client) CreateChannel(ctx context.Context, guildID herald.Snowflake, params herald.ChannelParams, reason string) (*herald.Channel, error) {
	route, err := NewRoute(http.MethodPost, "/guilds/{guild_id}/channels", Params{"guild_id": guildID})
	if err != nil {
		return nil, err
	}
	var channel herald.Channel
	if err := c.doJSON(ctx, route, reason, params, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// Channel returns the channel with the given ID.
func (c *Client) Channel(ctx context.Context, id herald.Snowflake) (*herald.Channel, error) {
	route, err := NewRoute(http.MethodGet, "/channels/{channel_id}", Params{"channel_id": id})
	if err != nil {
		return nil, err
	}
	var channel herald.Channel
	if err := c.doJSON(ctx, route, "", nil, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// EditChannel modifies a channel.
func (c *Client) EditChannel(ctx context.Context, id herald.Snowflake, params herald.ChannelParams, reason string) (*herald.Channel, error) {
	route, err := NewRoute(http.MethodPatch, "/channels/{channel_id}", Params{"channel_id": id})
	if err != nil {
		return nil, err
	}
	var channel herald.Channel
	if err := c.doJSON(ctx, route, reason, params, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// DeleteChannel deletes a channel, or closes it for DMs.
func (c *Client) DeleteChannel(ctx context.Context, id herald.Snowflake, reason string) error {
	route, err := NewRoute(http.MethodDelete, "/channels/{channel_id}", Params{"channel_id": id})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, route, reason, nil, nil)
}

// Messages returns a channel's most recent messages.
func (c *Client) Messages(ctx context.Context, channelID herald.Snowflake, limit int) ([]herald.Message, error) {
	route, err := NewRoute(http.MethodGet, "/channels/{channel_id}/messages", Params{"channel_id": channelID})
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var messages []herald.Message
	if err := c.finish(ctx, route, requestOptions{query: query}, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Message returns a single message.
func (c *Client) Message(ctx context.Context, channelID, messageID herald.Snowflake) (*herald.Message, error) {
	route, err := NewRoute(http.MethodGet, "/channels/{channel_id}/messages/{message_id}", Params{
		"channel_id": channelID,
		"message_id": messageID,
	})
	if err != nil {
		return nil, err
	}
	var message herald.Message
	if err := c.doJSON(ctx, route, "", nil, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// CreateMessage posts a message, uploading any attached files as multipart
// form parts.
func (c *Client) CreateMessage(ctx context.Context, channelID herald.Snowflake, params herald.MessageParams) (*herald.Message, error) {
	route, err := NewRoute(http.MethodPost, "/channels/{channel_id}/messages", Params{"channel_id": channelID})
	if err != nil {
		return nil, err
	}
	var message herald.Message
	if len(params.Files) > 0 {
		err = c.doMultipart(ctx, route, params, params.Files, &message)
	} else {
		err = c.doJSON(ctx, route, "", params, &message)
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// EditMessage modifies a message previously sent by the client user.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID herald.Snowflake, params herald.MessageParams) (*herald.Message, error) {
	route, err := NewRoute(http.MethodPatch, "/channels/{channel_id}/messages/{message_id}", Params{
		"channel_id": channelID,
		"message_id": messageID,
	})
	if err != nil {
		return nil, err
	}
	var message herald.Message
	if err := c.doJSON(ctx, route, "", params, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID herald.Snowflake) error {
	route, err := NewRoute(http.MethodDelete, "/channels/{channel_id}/messages/{message_id}", Params{
		"channel_id": channelID,
		"message_id": messageID,
	})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, route, "", nil, nil)
}
