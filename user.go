package herald

// User represents a user account on the remote service.
type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator"`
	Avatar        *string   `json:"avatar"`
	Banner        *string   `json:"banner"`
	AccentColor   *int      `json:"accent_color"`
	Bot           bool      `json:"bot"`
	System        bool      `json:"system"`
	PublicFlags   int       `json:"public_flags"`
}

// Mention returns the mention string for this user.
func (u *User) Mention() string {
	return "<@" + u.ID.String() + ">"
}

// Tag returns the "username#discriminator" form of this user's name.
func (u *User) Tag() string {
	return u.Username + "#" + u.Discriminator
}
