package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heraldlib/herald"
	"github.com/heraldlib/herald/internal/cache"
)

func newTestDispatcher(t *testing.T, debug bool) (*Dispatcher, *eventRecorder, *cache.Memory) {
	t.Helper()
	rec := &eventRecorder{}
	mem := cache.NewMemory()
	r := NewReadiness(30*time.Millisecond, rec.emit, discardLogger())
	r.ShardsConnected()
	d := New(Config{
		Cache:     mem,
		Emit:      rec.emit,
		Readiness: r,
		Shard:     func(id int) herald.Shard { return fakeShard{id: id} },
		Debug:     debug,
		Logger:    discardLogger(),
	})
	return d, rec, mem
}

func handle(t *testing.T, d *Dispatcher, title, data string) {
	t.Helper()
	if err := d.Handle(context.Background(), 0, title, json.RawMessage(data)); err != nil {
		t.Fatalf("Handle(%s) error: %v", title, err)
	}
}

// TestDispatcherUnknownTitleIgnored tests that a title without a handler
// is a silent no-op.
func TestDispatcherUnknownTitleIgnored(t *testing.T) {
	t.Parallel()

	d, rec, _ := newTestDispatcher(t, false)

	if err := d.Handle(context.Background(), 0, "TYPING_START", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Handle(TYPING_START) error: %v", err)
	}
	if events := rec.all(); len(events) != 0 {
		t.Errorf("events after unknown title = %v, want none", events)
	}
}

// TestDispatcherDebugEmitsRawDispatch tests that debug mode re-emits every
// dispatch, known or not, before named handling.
func TestDispatcherDebugEmitsRawDispatch(t *testing.T) {
	t.Parallel()

	d, rec, _ := newTestDispatcher(t, true)

	handle(t, d, "TYPING_START", `{"channel_id":"1"}`)
	if got := rec.count(herald.EventGatewayDispatch); got != 1 {
		t.Fatalf("gateway dispatch count for unknown title = %d, want 1", got)
	}

	handle(t, d, "MESSAGE_CREATE", `{"id":"5","channel_id":"1","author":{"id":"7"}}`)

	events := rec.all()
	if len(events) != 3 {
		t.Fatalf("event count = %d, want 3", len(events))
	}
	raw, ok := events[1].(herald.GatewayDispatch)
	if !ok {
		t.Fatalf("second event = %T, want GatewayDispatch before named handling", events[1])
	}
	if raw.Title != "MESSAGE_CREATE" || raw.Shard.ID() != 0 {
		t.Errorf("raw dispatch = %q on shard %d, want MESSAGE_CREATE on shard 0", raw.Title, raw.Shard.ID())
	}
	if _, ok := events[2].(herald.MessageCreate); !ok {
		t.Errorf("third event = %T, want MessageCreate after raw dispatch", events[2])
	}
}

// TestDispatcherDuplicateTitlePanics tests that registering the same title
// twice is a construction-time error.
func TestDispatcherDuplicateTitlePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("newTable with duplicate title did not panic")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "MESSAGE_CREATE") {
			t.Errorf("panic = %v, want message naming MESSAGE_CREATE", r)
		}
	}()

	nop := func(context.Context, int, json.RawMessage) error { return nil }
	newTable([]tableEntry{
		{"MESSAGE_CREATE", nop},
		{"MESSAGE_CREATE", nop},
	})
}

// TestDispatcherReady tests that READY captures the client user and starts
// readiness tracking for the shard.
func TestDispatcherReady(t *testing.T) {
	t.Parallel()

	d, rec, mem := newTestDispatcher(t, false)

	handle(t, d, "READY", `{
		"v": 10,
		"user": {"id": "100", "username": "testbot"},
		"guilds": [{"id": "10", "unavailable": true}]
	}`)

	user := d.ClientUser()
	if user == nil || user.ID != 100 {
		t.Fatalf("ClientUser() = %+v, want user 100", user)
	}
	if _, ok := mem.User(100); !ok {
		t.Error("client user not cached")
	}

	waitFor(t, 2*time.Second, func() bool {
		return rec.count(herald.EventShardReady) == 1
	}, "READY did not start readiness tracking")
}

// TestDispatcherGuildCreateBranches tests that a backfilled guild reads as
// available while a guild outside the session's unavailable set reads as a
// join.
func TestDispatcherGuildCreateBranches(t *testing.T) {
	t.Parallel()

	d, rec, mem := newTestDispatcher(t, false)

	handle(t, d, "READY", `{
		"user": {"id": "100", "username": "testbot"},
		"guilds": [{"id": "10", "unavailable": true}]
	}`)

	handle(t, d, "GUILD_CREATE", `{
		"id": "10",
		"name": "backfilled",
		"member_count": 2,
		"roles": [{"id": "1", "name": "mod"}],
		"channels": [{"id": "100", "name": "general"}],
		"members": [{"user": {"id": "7", "username": "alpha"}, "roles": []}]
	}`)

	if got := rec.count(herald.EventGuildAvailable); got != 1 {
		t.Fatalf("guild available count = %d, want 1", got)
	}
	if got := rec.count(herald.EventGuildJoin); got != 0 {
		t.Fatalf("guild join count after backfill = %d, want 0", got)
	}

	guild, ok := mem.Guild(10)
	if !ok || guild.Name != "backfilled" {
		t.Fatalf("Guild(10) = %+v, %v, want backfilled, true", guild, ok)
	}
	if _, ok := mem.Role(10, 1); !ok {
		t.Error("nested role not cached")
	}
	ch, ok := mem.Channel(100)
	if !ok || ch.GuildID != 10 {
		t.Errorf("Channel(100) = %+v, %v, want guild 10 filled in", ch, ok)
	}
	member, ok := mem.Member(10, 7)
	if !ok || member.GuildID != 10 {
		t.Errorf("Member(10, 7) = %+v, %v, want guild 10 filled in", member, ok)
	}
	if _, ok := mem.User(7); !ok {
		t.Error("nested member's user not cached")
	}

	// Not in the unavailable set, so this one is a fresh join.
	handle(t, d, "GUILD_CREATE", `{"id": "99", "name": "fresh"}`)
	if got := rec.count(herald.EventGuildJoin); got != 1 {
		t.Errorf("guild join count = %d, want 1", got)
	}

	// The set entry was consumed: the same guild arriving again is a join.
	handle(t, d, "GUILD_CREATE", `{"id": "10", "name": "backfilled"}`)
	if got := rec.count(herald.EventGuildAvailable); got != 1 {
		t.Errorf("guild available count after repeat = %d, want 1", got)
	}
	if got := rec.count(herald.EventGuildJoin); got != 2 {
		t.Errorf("guild join count after repeat = %d, want 2", got)
	}
}

// TestDispatcherGuildCreateUnavailableNotCached tests that a guild arriving
// still unavailable is announced but kept out of the cache.
func TestDispatcherGuildCreateUnavailableNotCached(t *testing.T) {
	t.Parallel()

	d, rec, mem := newTestDispatcher(t, false)

	handle(t, d, "GUILD_CREATE", `{"id": "10", "unavailable": true}`)

	if _, ok := mem.Guild(10); ok {
		t.Error("unavailable guild was cached")
	}
	if got := rec.count(herald.EventGuildJoin); got != 1 {
		t.Errorf("guild join count = %d, want 1", got)
	}
}

// TestDispatcherUnavailableGuildExtendsReadiness tests that unavailable
// guilds still count as arrivals for the quiescence window.
func TestDispatcherUnavailableGuildExtendsReadiness(t *testing.T) {
	t.Parallel()

	start := time.Now()
	var emittedAfter atomic.Int64
	emit := func(e herald.Event) {
		if _, ok := e.(herald.ShardReady); ok {
			emittedAfter.Store(int64(time.Since(start)))
		}
	}

	r := NewReadiness(150*time.Millisecond, emit, discardLogger())
	d := New(Config{
		Cache:     cache.NewMemory(),
		Emit:      emit,
		Readiness: r,
		Shard:     func(id int) herald.Shard { return fakeShard{id: id} },
		Logger:    discardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Handle(ctx, 0, "READY", json.RawMessage(`{"user": {"id": "100"}, "guilds": [{"id": "10", "unavailable": true}]}`)); err != nil {
		t.Fatalf("Handle(READY) error: %v", err)
	}
	for i := 0; i < 3; i++ {
		time.Sleep(80 * time.Millisecond)
		handle(t, d, "GUILD_CREATE", `{"id": "10", "unavailable": true}`)
	}

	waitFor(t, 2*time.Second, func() bool {
		return emittedAfter.Load() != 0
	}, "shard ready never fired")

	// Three arrivals at ~80ms spacing push the emit past the bare 150ms
	// window measured from session start.
	if got := time.Duration(emittedAfter.Load()); got < 300*time.Millisecond {
		t.Errorf("shard ready fired after %v, want >= 300ms", got)
	}
}

// TestDispatcherGuildUpdate tests the before/after pair on guild updates.
func TestDispatcherGuildUpdate(t *testing.T) {
	t.Parallel()

	d, rec, mem := newTestDispatcher(t, false)

	handle(t, d, "GUILD_CREATE", `{"id": "10", "name": "old"}`)
	handle(t, d, "GUILD_UPDATE", `{"id": "10", "name": "new"}`)

	events := rec.all()
	var update herald.GuildUpdate
	for _, e := range events {
		if u, ok := e.(herald.GuildUpdate); ok {
			update = u
		}
	}
	if update.Before == nil || update.Before.Name != "old" {
		t.Errorf("update.Before = %+v, want cached guild named old", update.Before)
	}
	if update.After == nil || update.After.Name != "new" {
		t.Errorf("update.After = %+v, want guild named new", update.After)
	}

	guild, _ := mem.Guild(10)
	if guild == nil || guild.Name != "new" {
		t.Errorf("Guild(10) = %+v, want overwritten with new", guild)
	}
}

// TestDispatcherGuildDelete tests the outage and removal branches.
func TestDispatcherGuildDelete(t *testing.T) {
	t.Parallel()

	d, rec, mem := newTestDispatcher(t, false)

	handle(t, d, "GUILD_CREATE", `{"id": "10", "name": "flaky"}`)

	// Outage: announced as unavailable, and the guild's return must read
	// as availability rather than a join.
	handle(t, d, "GUILD_DELETE", `{"id": "10", "unavailable": true}`)
	if got := rec.count(herald.EventGuildUnavailable); got != 1 {
		t.Fatalf("guild unavailable count = %d, want 1", got)
	}
	if _, ok := mem.Guild(10); ok {
		t.Error("guild still cached during outage")
	}

	handle(t, d, "GUILD_CREATE", `{"id": "10", "name": "flaky"}`)
	if got := rec.count(herald.EventGuildAvailable); got != 1 {
		t.Errorf("guild available count after outage recovery = %d, want 1", got)
	}

	// Removal: the cached guild rides along on the event.
	handle(t, d, "GUILD_DELETE", `{"id": "10"}`)
	events := rec.all()
	leave, ok := events[len(events)-1].(herald.GuildLeave)
	if !ok {
		t.Fatalf("last event = %T, want GuildLeave", events[len(events)-1])
	}
	if leave.Guild.Name != "flaky" {
		t.Errorf("leave.Guild.Name = %q, want %q", leave.Guild.Name, "flaky")
	}

	// Removal of an uncached guild falls back to an ID-only stub.
	handle(t, d, "GUILD_DELETE", `{"id": "55"}`)
	events = rec.all()
	leave, ok = events[len(events)-1].(herald.GuildLeave)
	if !ok || leave.Guild.ID != 55 {
		t.Errorf("leave for uncached guild = %+v, want stub with ID 55", events[len(events)-1])
	}
}

// TestDispatcherRoleLifecycle tests role create, update and delete against
// the cache.
func TestDispatcherRoleLifecycle(t *testing.T) {
	t.Parallel()

	d, rec, mem := newTestDispatcher(t, false)

	handle(t, d, "GUILD_ROLE_CREATE", `{"guild_id": "10", "role": {"id": "1", "name": "mod"}}`)
	if _, ok := mem.Role(10, 1); !ok {
		t.Fatal("created role not cached")
	}

	handle(t, d, "GUILD_ROLE_UPDATE", `{"guild_id": "10", "role": {"id": "1", "name": "admin"}}`)
	events := rec.all()
	update, ok := events[len(events)-1].(herald.RoleUpdate)
	if !ok {
		t.Fatalf("last event = %T, want RoleUpdate", events[len(events)-1])
	}
	if update.Before == nil || update.Before.Name != "mod" {
		t.Errorf("update.Before = %+v, want cached role named mod", update.Before)
	}
	if update.After.Name != "admin" {
		t.Errorf("update.After.Name = %q, want %q", update.After.Name, "admin")
	}

	handle(t, d, "GUILD_ROLE_DELETE", `{"guild_id": "10", "role_id": "1"}`)
	events = rec.all()
	del, ok := events[len(events)-1].(herald.RoleDelete)
	if !ok {
		t.Fatalf("last event = %T, want RoleDelete", events[len(events)-1])
	}
	if del.Role == nil || del.Role.Name != "admin" {
		t.Errorf("delete.Role = %+v, want cached role named admin", del.Role)
	}
	if _, ok := mem.Role(10, 1); ok {
		t.Error("deleted role still cached")
	}

	// Deleting a role that was never cached carries a nil Role.
	handle(t, d, "GUILD_ROLE_DELETE", `{"guild_id": "10", "role_id": "2"}`)
	events = rec.all()
	del = events[len(events)-1].(herald.RoleDelete)
	if del.Role != nil {
		t.Errorf("delete.Role for uncached role = %+v, want nil", del.Role)
	}
}

// TestDispatcherMemberLifecycle tests member add, update and remove,
// including the guild member count adjustments.
func TestDispatcherMemberLifecycle(t *testing.T) {
	t.Parallel()

	d, rec, mem := newTestDispatcher(t, false)

	handle(t, d, "GUILD_CREATE", `{"id": "10", "name": "g", "member_count": 1}`)

	handle(t, d, "GUILD_MEMBER_ADD", `{"guild_id": "10", "user": {"id": "7", "username": "alpha"}, "roles": []}`)
	if _, ok := mem.Member(10, 7); !ok {
		t.Fatal("added member not cached")
	}
	if _, ok := mem.User(7); !ok {
		t.Error("added member's user not cached")
	}
	if guild, _ := mem.Guild(10); guild.MemberCount != 2 {
		t.Errorf("MemberCount after add = %d, want 2", guild.MemberCount)
	}

	handle(t, d, "GUILD_MEMBER_UPDATE", `{"guild_id": "10", "user": {"id": "7", "username": "alpha"}, "nick": "al", "roles": []}`)
	events := rec.all()
	update, ok := events[len(events)-1].(herald.MemberUpdate)
	if !ok {
		t.Fatalf("last event = %T, want MemberUpdate", events[len(events)-1])
	}
	if update.Before == nil || update.Before.Nick != nil {
		t.Errorf("update.Before = %+v, want cached member without nick", update.Before)
	}
	if update.After.Nick == nil || *update.After.Nick != "al" {
		t.Errorf("update.After.Nick = %v, want al", update.After.Nick)
	}

	handle(t, d, "GUILD_MEMBER_REMOVE", `{"guild_id": "10", "user": {"id": "7", "username": "alpha"}}`)
	events = rec.all()
	removed, ok := events[len(events)-1].(herald.MemberRemove)
	if !ok {
		t.Fatalf("last event = %T, want MemberRemove", events[len(events)-1])
	}
	if removed.Member == nil || removed.Member.User.ID != 7 {
		t.Errorf("remove.Member = %+v, want cached member for user 7", removed.Member)
	}
	if _, ok := mem.Member(10, 7); ok {
		t.Error("removed member still cached")
	}
	if guild, _ := mem.Guild(10); guild.MemberCount != 1 {
		t.Errorf("MemberCount after remove = %d, want 1", guild.MemberCount)
	}
}

// TestDispatcherChannelLifecycle tests channel create, update and delete.
func TestDispatcherChannelLifecycle(t *testing.T) {
	t.Parallel()

	d, rec, mem := newTestDispatcher(t, false)

	handle(t, d, "CHANNEL_CREATE", `{"id": "100", "guild_id": "10", "name": "general", "type": 0}`)
	if _, ok := mem.Channel(100); !ok {
		t.Fatal("created channel not cached")
	}

	handle(t, d, "CHANNEL_UPDATE", `{"id": "100", "guild_id": "10", "name": "lounge", "type": 0}`)
	events := rec.all()
	update, ok := events[len(events)-1].(herald.ChannelUpdate)
	if !ok {
		t.Fatalf("last event = %T, want ChannelUpdate", events[len(events)-1])
	}
	if update.Before == nil || update.Before.Name != "general" {
		t.Errorf("update.Before = %+v, want cached channel named general", update.Before)
	}

	handle(t, d, "CHANNEL_DELETE", `{"id": "100", "guild_id": "10", "name": "lounge", "type": 0}`)
	if _, ok := mem.Channel(100); ok {
		t.Error("deleted channel still cached")
	}
	if got := rec.count(herald.EventChannelDelete); got != 1 {
		t.Errorf("channel delete count = %d, want 1", got)
	}
}

// TestDispatcherMessageCreate tests that messages surface their author into
// the cache.
func TestDispatcherMessageCreate(t *testing.T) {
	t.Parallel()

	d, rec, mem := newTestDispatcher(t, false)

	handle(t, d, "MESSAGE_CREATE", `{
		"id": "5",
		"channel_id": "100",
		"content": "hello",
		"author": {"id": "7", "username": "alpha"}
	}`)

	events := rec.all()
	msg, ok := events[len(events)-1].(herald.MessageCreate)
	if !ok {
		t.Fatalf("last event = %T, want MessageCreate", events[len(events)-1])
	}
	if msg.Message.Content != "hello" || msg.Message.Author.ID != 7 {
		t.Errorf("message = %+v, want content hello from user 7", msg.Message)
	}
	if _, ok := mem.User(7); !ok {
		t.Error("message author not cached")
	}
}

// TestDispatcherDecodeError tests that a malformed payload surfaces an
// error instead of panicking or emitting.
func TestDispatcherDecodeError(t *testing.T) {
	t.Parallel()

	d, rec, _ := newTestDispatcher(t, false)

	err := d.Handle(context.Background(), 0, "MESSAGE_CREATE", json.RawMessage(`{"id": 5`))
	if err == nil {
		t.Fatal("Handle with malformed payload returned nil error")
	}
	if events := rec.all(); len(events) != 0 {
		t.Errorf("events after decode error = %v, want none", events)
	}
}
