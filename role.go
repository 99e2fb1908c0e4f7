package herald

// Role represents a guild role.
type Role struct {
	ID          Snowflake `json:"id"`
	Name        string    `json:"name"`
	Color       int       `json:"color"`
	Hoist       bool      `json:"hoist"`
	Position    int       `json:"position"`
	Permissions string    `json:"permissions"`
	Managed     bool      `json:"managed"`
	Mentionable bool      `json:"mentionable"`
}

// Mention returns the mention string for this role.
func (r *Role) Mention() string {
	return "<@&" + r.ID.String() + ">"
}

// RoleParams are the writable fields for role create and edit calls.
// Zero-valued fields are omitted from the request.
type RoleParams struct {
	Name        string `json:"name,omitempty"`
	Color       int    `json:"color,omitempty"`
	Hoist       bool   `json:"hoist,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	Mentionable bool   `json:"mentionable,omitempty"`
}
