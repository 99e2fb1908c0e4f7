package herald

// ChannelType discriminates the kinds of channels a guild or user can have.
type ChannelType int

const (
	ChannelTypeText     ChannelType = 0
	ChannelTypeDirect   ChannelType = 1
	ChannelTypeVoice    ChannelType = 2
	ChannelTypeGroup    ChannelType = 3
	ChannelTypeCategory ChannelType = 4
	ChannelTypeNews     ChannelType = 5
	ChannelTypeStore    ChannelType = 6
)

// Channel represents a guild channel or a direct-message channel.
// Direct-message channels have a zero GuildID.
type Channel struct {
	ID            Snowflake   `json:"id"`
	Type          ChannelType `json:"type"`
	GuildID       Snowflake   `json:"guild_id,omitempty"`
	Name          string      `json:"name,omitempty"`
	Position      int         `json:"position,omitempty"`
	Topic         *string     `json:"topic,omitempty"`
	NSFW          bool        `json:"nsfw,omitempty"`
	ParentID      *Snowflake  `json:"parent_id,omitempty"`
	LastMessageID *Snowflake  `json:"last_message_id,omitempty"`
	Recipients    []User      `json:"recipients,omitempty"`
}

// Mention returns the mention string for this channel.
func (c *Channel) Mention() string {
	return "<#" + c.ID.String() + ">"
}

// ChannelParams are the writable fields for channel create and edit calls.
// Zero-valued fields are omitted from the request.
type ChannelParams struct {
	Name     string      `json:"name,omitempty"`
	Type     ChannelType `json:"type,omitempty"`
	Topic    string      `json:"topic,omitempty"`
	Position int         `json:"position,omitempty"`
	NSFW     bool        `json:"nsfw,omitempty"`
	ParentID Snowflake   `json:"parent_id,omitempty"`
}
