package herald

import "time"

// Member represents a user's membership in one guild.
//
// The zero GuildID means the payload did not carry one (REST member fetches);
// gateway member events always populate it.
type Member struct {
	GuildID      Snowflake   `json:"guild_id,omitempty"`
	User         User        `json:"user"`
	Nick         *string     `json:"nick"`
	Avatar       *string     `json:"avatar"`
	RoleIDs      []Snowflake `json:"roles"`
	JoinedAt     time.Time   `json:"joined_at"`
	PremiumSince *time.Time  `json:"premium_since"`
	TimeoutUntil *time.Time  `json:"communication_disabled_until"`
	Deaf         bool        `json:"deaf"`
	Mute         bool        `json:"mute"`
	Pending      bool        `json:"pending"`
}

// DisplayName returns the member's guild nickname, falling back to the
// username when no nickname is set.
func (m *Member) DisplayName() string {
	if m.Nick != nil {
		return *m.Nick
	}
	return m.User.Username
}

// DisplayAvatar returns the member's guild avatar hash, falling back to the
// user avatar. Nil when neither is set.
func (m *Member) DisplayAvatar() *string {
	if m.Avatar != nil {
		return m.Avatar
	}
	return m.User.Avatar
}

// IsBoosting reports whether the member is boosting the guild.
func (m *Member) IsBoosting() bool {
	return m.PremiumSince != nil
}

// IsTimedOut reports whether the member is currently timed out. The timeout
// timestamp may linger in the past after a timeout expires, so the current
// time is consulted rather than the field's presence.
func (m *Member) IsTimedOut() bool {
	return m.TimeoutUntil != nil && time.Now().Before(*m.TimeoutUntil)
}
