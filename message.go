package herald

import (
	"io"
	"time"
)

// Message represents a message posted to a channel.
type Message struct {
	ID              Snowflake  `json:"id"`
	ChannelID       Snowflake  `json:"channel_id"`
	GuildID         Snowflake  `json:"guild_id,omitempty"`
	Author          User       `json:"author"`
	Content         string     `json:"content"`
	Timestamp       time.Time  `json:"timestamp"`
	EditedTimestamp *time.Time `json:"edited_timestamp"`
	TTS             bool       `json:"tts"`
	MentionEveryone bool       `json:"mention_everyone"`
	Pinned          bool       `json:"pinned"`
	Type            int        `json:"type"`
}

// File is an attachment uploaded alongside a message.
type File struct {
	Name string
	Body io.Reader
}

// MessageParams are the writable fields for message create and edit calls.
// Files are uploaded as multipart form parts and never appear in the JSON
// body itself.
type MessageParams struct {
	Content string `json:"content,omitempty"`
	TTS     bool   `json:"tts,omitempty"`
	Files   []File `json:"-"`
}
