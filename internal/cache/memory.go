// Package cache provides the in-memory entity store maintained by the
// dispatch layer.
package cache

import (
	"sync"

	"github.com/heraldlib/herald"
)

// guildKey identifies an entity scoped to a guild.
type guildKey struct {
	guildID herald.Snowflake
	id      herald.Snowflake
}

// Memory is a map-backed herald.Cache guarded by a single RWMutex.
type Memory struct {
	mu       sync.RWMutex
	users    map[herald.Snowflake]*herald.User
	guilds   map[herald.Snowflake]*herald.Guild
	channels map[herald.Snowflake]*herald.Channel
	roles    map[guildKey]*herald.Role
	members  map[guildKey]*herald.Member
}

var _ herald.Cache = (*Memory)(nil)

// NewMemory returns an empty cache.
func NewMemory() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.users = make(map[herald.Snowflake]*herald.User)
	m.guilds = make(map[herald.Snowflake]*herald.Guild)
	m.channels = make(map[herald.Snowflake]*herald.Channel)
	m.roles = make(map[guildKey]*herald.Role)
	m.members = make(map[guildKey]*herald.Member)
}

func (m *Memory) User(id herald.Snowflake) (*herald.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok
}

func (m *Memory) AddUser(u *herald.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) Guild(id herald.Snowflake) (*herald.Guild, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guilds[id]
	return g, ok
}

func (m *Memory) AddGuild(g *herald.Guild) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guilds[g.ID] = g
}

// RemoveGuild drops the guild and everything scoped to it.
func (m *Memory) RemoveGuild(id herald.Snowflake) (*herald.Guild, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guilds[id]
	if !ok {
		return nil, false
	}
	delete(m.guilds, id)
	for k := range m.roles {
		if k.guildID == id {
			delete(m.roles, k)
		}
	}
	for k := range m.members {
		if k.guildID == id {
			delete(m.members, k)
		}
	}
	for cid, ch := range m.channels {
		if ch.GuildID == id {
			delete(m.channels, cid)
		}
	}
	return g, true
}

func (m *Memory) Guilds() []*herald.Guild {
	m.mu.RLock()
	defer m.mu.RUnlock()
	guilds := make([]*herald.Guild, 0, len(m.guilds))
	for _, g := range m.guilds {
		guilds = append(guilds, g)
	}
	return guilds
}

func (m *Memory) Role(guildID, id herald.Snowflake) (*herald.Role, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[guildKey{guildID, id}]
	return r, ok
}

func (m *Memory) AddRole(guildID herald.Snowflake, r *herald.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[guildKey{guildID, r.ID}] = r
}

func (m *Memory) RemoveRole(guildID, id herald.Snowflake) (*herald.Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := guildKey{guildID, id}
	r, ok := m.roles[key]
	if ok {
		delete(m.roles, key)
	}
	return r, ok
}

func (m *Memory) Channel(id herald.Snowflake) (*herald.Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	return ch, ok
}

func (m *Memory) AddChannel(ch *herald.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID] = ch
}

func (m *Memory) RemoveChannel(id herald.Snowflake) (*herald.Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if ok {
		delete(m.channels, id)
	}
	return ch, ok
}

func (m *Memory) Member(guildID, userID herald.Snowflake) (*herald.Member, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mb, ok := m.members[guildKey{guildID, userID}]
	return mb, ok
}

func (m *Memory) AddMember(mb *herald.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[guildKey{mb.GuildID, mb.User.ID}] = mb
}

func (m *Memory) RemoveMember(guildID, userID herald.Snowflake) (*herald.Member, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := guildKey{guildID, userID}
	mb, ok := m.members[key]
	if ok {
		delete(m.members, key)
	}
	return mb, ok
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}
