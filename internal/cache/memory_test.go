package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/heraldlib/herald"
)

// TestMemoryUsers tests inserting, overwriting and looking up users.
func TestMemoryUsers(t *testing.T) {
	t.Parallel()

	m := NewMemory()

	if _, ok := m.User(1); ok {
		t.Error("User(1) = ok, want miss on empty cache")
	}

	m.AddUser(&herald.User{ID: 1, Username: "alpha"})
	u, ok := m.User(1)
	if !ok || u.Username != "alpha" {
		t.Errorf("User(1) = %+v, %v, want alpha, true", u, ok)
	}

	m.AddUser(&herald.User{ID: 1, Username: "beta"})
	u, _ = m.User(1)
	if u.Username != "beta" {
		t.Errorf("Username after overwrite = %q, want %q", u.Username, "beta")
	}
}

// TestMemoryGuilds tests guild storage and enumeration.
func TestMemoryGuilds(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.AddGuild(&herald.Guild{ID: 10, Name: "ten"})
	m.AddGuild(&herald.Guild{ID: 20, Name: "twenty"})

	if got := len(m.Guilds()); got != 2 {
		t.Fatalf("len(Guilds()) = %d, want 2", got)
	}

	g, ok := m.RemoveGuild(10)
	if !ok || g.Name != "ten" {
		t.Errorf("RemoveGuild(10) = %+v, %v, want ten, true", g, ok)
	}
	if _, ok := m.Guild(10); ok {
		t.Error("Guild(10) still cached after removal")
	}
	if _, ok := m.RemoveGuild(10); ok {
		t.Error("second RemoveGuild(10) = ok, want miss")
	}
}

// TestMemoryRemoveGuildCascades tests that removing a guild drops the
// roles, members and channels scoped to it but nothing else.
func TestMemoryRemoveGuildCascades(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.AddGuild(&herald.Guild{ID: 10})
	m.AddGuild(&herald.Guild{ID: 20})
	m.AddRole(10, &herald.Role{ID: 1})
	m.AddRole(20, &herald.Role{ID: 1})
	m.AddMember(&herald.Member{GuildID: 10, User: herald.User{ID: 7}})
	m.AddMember(&herald.Member{GuildID: 20, User: herald.User{ID: 7}})
	m.AddChannel(&herald.Channel{ID: 100, GuildID: 10})
	m.AddChannel(&herald.Channel{ID: 200, GuildID: 20})

	m.RemoveGuild(10)

	if _, ok := m.Role(10, 1); ok {
		t.Error("role in removed guild still cached")
	}
	if _, ok := m.Member(10, 7); ok {
		t.Error("member in removed guild still cached")
	}
	if _, ok := m.Channel(100); ok {
		t.Error("channel in removed guild still cached")
	}
	if _, ok := m.Role(20, 1); !ok {
		t.Error("role in unrelated guild was dropped")
	}
	if _, ok := m.Member(20, 7); !ok {
		t.Error("member in unrelated guild was dropped")
	}
	if _, ok := m.Channel(200); !ok {
		t.Error("channel in unrelated guild was dropped")
	}
}

// TestMemoryRolesScopedPerGuild tests that the same role ID in different
// guilds refers to distinct entries.
func TestMemoryRolesScopedPerGuild(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.AddRole(10, &herald.Role{ID: 1, Name: "mod-ten"})
	m.AddRole(20, &herald.Role{ID: 1, Name: "mod-twenty"})

	r, ok := m.Role(10, 1)
	if !ok || r.Name != "mod-ten" {
		t.Errorf("Role(10, 1) = %+v, %v, want mod-ten, true", r, ok)
	}

	removed, ok := m.RemoveRole(20, 1)
	if !ok || removed.Name != "mod-twenty" {
		t.Errorf("RemoveRole(20, 1) = %+v, %v, want mod-twenty, true", removed, ok)
	}
	if _, ok := m.Role(10, 1); !ok {
		t.Error("Role(10, 1) was dropped by removal in another guild")
	}
}

// TestMemoryMembers tests member storage keyed by guild and user.
func TestMemoryMembers(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.AddMember(&herald.Member{GuildID: 10, User: herald.User{ID: 7, Username: "alpha"}})

	mb, ok := m.Member(10, 7)
	if !ok || mb.User.Username != "alpha" {
		t.Errorf("Member(10, 7) = %+v, %v, want alpha, true", mb, ok)
	}
	if _, ok := m.Member(20, 7); ok {
		t.Error("Member(20, 7) = ok, want miss for other guild")
	}

	removed, ok := m.RemoveMember(10, 7)
	if !ok || removed.User.ID != 7 {
		t.Errorf("RemoveMember(10, 7) = %+v, %v, want user 7, true", removed, ok)
	}
	if _, ok := m.Member(10, 7); ok {
		t.Error("Member(10, 7) still cached after removal")
	}
}

// TestMemoryChannels tests channel storage and removal.
func TestMemoryChannels(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.AddChannel(&herald.Channel{ID: 100, Name: "general"})

	ch, ok := m.Channel(100)
	if !ok || ch.Name != "general" {
		t.Errorf("Channel(100) = %+v, %v, want general, true", ch, ok)
	}

	removed, ok := m.RemoveChannel(100)
	if !ok || removed.ID != 100 {
		t.Errorf("RemoveChannel(100) = %+v, %v, want channel 100, true", removed, ok)
	}
	if _, ok := m.RemoveChannel(100); ok {
		t.Error("second RemoveChannel(100) = ok, want miss")
	}
}

// TestMemoryClear tests that Clear drops every entity type.
func TestMemoryClear(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.AddUser(&herald.User{ID: 1})
	m.AddGuild(&herald.Guild{ID: 10})
	m.AddRole(10, &herald.Role{ID: 1})
	m.AddChannel(&herald.Channel{ID: 100})
	m.AddMember(&herald.Member{GuildID: 10, User: herald.User{ID: 1}})

	m.Clear()

	if _, ok := m.User(1); ok {
		t.Error("user survived Clear")
	}
	if _, ok := m.Guild(10); ok {
		t.Error("guild survived Clear")
	}
	if _, ok := m.Role(10, 1); ok {
		t.Error("role survived Clear")
	}
	if _, ok := m.Channel(100); ok {
		t.Error("channel survived Clear")
	}
	if _, ok := m.Member(10, 1); ok {
		t.Error("member survived Clear")
	}
	if got := len(m.Guilds()); got != 0 {
		t.Errorf("len(Guilds()) after Clear = %d, want 0", got)
	}
}

// TestMemoryConcurrentAccess tests that mixed readers and writers do not
// race or lose writes.
func TestMemoryConcurrentAccess(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	var wg sync.WaitGroup

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := herald.Snowflake(base*100 + i)
				m.AddUser(&herald.User{ID: id, Username: fmt.Sprintf("user-%d", id)})
				m.User(id)
				m.Guilds()
			}
		}(g)
	}
	wg.Wait()

	for g := 0; g < 4; g++ {
		for i := 0; i < 100; i++ {
			id := herald.Snowflake(g*100 + i)
			if _, ok := m.User(id); !ok {
				t.Fatalf("User(%d) missing after concurrent writes", id)
			}
		}
	}
}

// BenchmarkMemoryUserLookup measures read throughput on a populated cache.
func BenchmarkMemoryUserLookup(b *testing.B) {
	m := NewMemory()
	for i := 0; i < 1000; i++ {
		m.AddUser(&herald.User{ID: herald.Snowflake(i)})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.User(herald.Snowflake(i % 1000))
	}
}
