// Package dispatch turns decoded gateway frames into cache mutations and
// typed events, and tracks session readiness.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/heraldlib/herald"
	"github.com/heraldlib/herald/internal/gateway"
)

// handlerFunc processes one decoded dispatch from a shard.
type handlerFunc func(ctx context.Context, shard int, data json.RawMessage) error

// Config wires a Dispatcher's collaborators. All of them are required
// except Debug.
type Config struct {
	Cache herald.Cache

	// Emit fans an event out to the user's callbacks.
	Emit func(herald.Event)

	// Readiness receives session starts and guild arrivals.
	Readiness *Readiness

	// Shard resolves a shard number to its handle for events that carry
	// one.
	Shard func(id int) herald.Shard

	// Debug re-emits every raw dispatch as a GatewayDispatch event before
	// named handling.
	Debug bool

	Logger *slog.Logger
}

// Dispatcher routes gateway dispatches to named handlers. The handler
// table is fixed at construction and read-only afterwards; titles without
// a handler are ignored.
type Dispatcher struct {
	cache     herald.Cache
	emit      func(herald.Event)
	readiness *Readiness
	shard     func(id int) herald.Shard
	debug     bool
	log       *slog.Logger

	handlers map[string]handlerFunc

	mu          sync.Mutex
	clientUser  *herald.User
	unavailable map[int]map[herald.Snowflake]struct{}
}

var _ gateway.Handler = (*Dispatcher)(nil)

// New builds a dispatcher. It panics on a duplicate title in the
// registration list: the table is a compile-time artifact and a duplicate
// is a programming error.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	d := &Dispatcher{
		cache:       cfg.Cache,
		emit:        cfg.Emit,
		readiness:   cfg.Readiness,
		shard:       cfg.Shard,
		debug:       cfg.Debug,
		log:         cfg.Logger,
		unavailable: make(map[int]map[herald.Snowflake]struct{}),
	}
	d.handlers = d.table()
	return d
}

type tableEntry struct {
	title   string
	handler handlerFunc
}

// table lists every wire title the dispatcher understands.
func (d *Dispatcher) table() map[string]handlerFunc {
	return newTable([]tableEntry{
		{"READY", d.onReady},
		{"GUILD_CREATE", d.onGuildCreate},
		{"GUILD_UPDATE", d.onGuildUpdate},
		{"GUILD_DELETE", d.onGuildDelete},
		{"GUILD_ROLE_CREATE", d.onRoleCreate},
		{"GUILD_ROLE_UPDATE", d.onRoleUpdate},
		{"GUILD_ROLE_DELETE", d.onRoleDelete},
		{"GUILD_MEMBER_ADD", d.onMemberAdd},
		{"GUILD_MEMBER_UPDATE", d.onMemberUpdate},
		{"GUILD_MEMBER_REMOVE", d.onMemberRemove},
		{"CHANNEL_CREATE", d.onChannelCreate},
		{"CHANNEL_UPDATE", d.onChannelUpdate},
		{"CHANNEL_DELETE", d.onChannelDelete},
		{"MESSAGE_CREATE", d.onMessageCreate},
	})
}

func newTable(entries []tableEntry) map[string]handlerFunc {
	table := make(map[string]handlerFunc, len(entries))
	for _, e := range entries {
		if _, dup := table[e.title]; dup {
			panic("dispatch: duplicate handler for " + e.title)
		}
		table[e.title] = e.handler
	}
	return table
}

// Handle routes one dispatch. Unknown titles are a silent no-op: the
// gateway ships far more event types than this library models. A handler
// error is returned for the read loop to log; it never stops delivery.
func (d *Dispatcher) Handle(ctx context.Context, shard int, title string, data json.RawMessage) error {
	if d.debug {
		d.emit(herald.GatewayDispatch{Shard: d.shard(shard), Title: title, Data: data})
	}
	handler, ok := d.handlers[title]
	if !ok {
		return nil
	}
	return handler(ctx, shard, data)
}

// ClientUser returns the authenticated user captured from READY, nil
// before the first session handshake.
func (d *Dispatcher) ClientUser() *herald.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clientUser
}

func (d *Dispatcher) onReady(ctx context.Context, shard int, data json.RawMessage) error {
	var ready struct {
		User   *herald.User   `json:"user"`
		Guilds []herald.Guild `json:"guilds"`
	}
	if err := json.Unmarshal(data, &ready); err != nil {
		return fmt.Errorf("dispatch: decoding READY: %w", err)
	}

	pending := make(map[herald.Snowflake]struct{}, len(ready.Guilds))
	for _, g := range ready.Guilds {
		pending[g.ID] = struct{}{}
	}

	d.mu.Lock()
	d.clientUser = ready.User
	d.unavailable[shard] = pending
	d.mu.Unlock()

	if ready.User != nil {
		d.cache.AddUser(ready.User)
	}

	d.log.Info("lazily backfilling guilds in background",
		"shard", shard,
		"guilds", len(ready.Guilds),
	)
	d.readiness.SessionStart(ctx, d.shard(shard))
	return nil
}

func (d *Dispatcher) onGuildCreate(ctx context.Context, shard int, data json.RawMessage) error {
	var guild herald.Guild
	if err := json.Unmarshal(data, &guild); err != nil {
		return fmt.Errorf("dispatch: decoding GUILD_CREATE: %w", err)
	}

	// Whether this backfills a guild from READY or reports a brand new
	// one depends on the unavailable set captured at session start.
	d.mu.Lock()
	pending := d.unavailable[shard]
	_, wasPending := pending[guild.ID]
	if wasPending {
		delete(pending, guild.ID)
	}
	d.mu.Unlock()

	if !guild.Unavailable {
		d.storeGuild(&guild)
	}

	// An unavailable guild is not cached but still counts as an arrival.
	d.readiness.NotifyGuild()

	if wasPending {
		d.emit(herald.GuildAvailable{Guild: &guild})
	} else {
		d.emit(herald.GuildJoin{Guild: &guild})
	}
	return nil
}

// storeGuild caches a guild plus the roles, channels and members nested in
// a gateway guild payload.
func (d *Dispatcher) storeGuild(guild *herald.Guild) {
	d.cache.AddGuild(guild)
	for i := range guild.Roles {
		d.cache.AddRole(guild.ID, &guild.Roles[i])
	}
	for i := range guild.Channels {
		ch := &guild.Channels[i]
		if ch.GuildID.IsZero() {
			ch.GuildID = guild.ID
		}
		d.cache.AddChannel(ch)
	}
	for i := range guild.Members {
		m := &guild.Members[i]
		if m.GuildID.IsZero() {
			m.GuildID = guild.ID
		}
		d.cache.AddMember(m)
		d.cache.AddUser(&m.User)
	}
}

func (d *Dispatcher) onGuildUpdate(ctx context.Context, shard int, data json.RawMessage) error {
	var guild herald.Guild
	if err := json.Unmarshal(data, &guild); err != nil {
		return fmt.Errorf("dispatch: decoding GUILD_UPDATE: %w", err)
	}

	before, _ := d.cache.Guild(guild.ID)
	d.cache.AddGuild(&guild)
	d.emit(herald.GuildUpdate{Before: before, After: &guild})
	return nil
}

func (d *Dispatcher) onGuildDelete(ctx context.Context, shard int, data json.RawMessage) error {
	var stub struct {
		ID          herald.Snowflake `json:"id"`
		Unavailable bool             `json:"unavailable"`
	}
	if err := json.Unmarshal(data, &stub); err != nil {
		return fmt.Errorf("dispatch: decoding GUILD_DELETE: %w", err)
	}

	guild, ok := d.cache.RemoveGuild(stub.ID)
	if !ok {
		guild = &herald.Guild{ID: stub.ID, Unavailable: stub.Unavailable}
	}

	if stub.Unavailable {
		// An outage, not a removal. The guild is expected back: its
		// return arrives as GUILD_CREATE and must read as availability,
		// not as a join.
		guild.Unavailable = true
		d.mu.Lock()
		pending := d.unavailable[shard]
		if pending == nil {
			pending = make(map[herald.Snowflake]struct{})
			d.unavailable[shard] = pending
		}
		pending[stub.ID] = struct{}{}
		d.mu.Unlock()

		d.emit(herald.GuildUnavailable{Guild: guild})
		return nil
	}
	d.emit(herald.GuildLeave{Guild: guild})
	return nil
}

func (d *Dispatcher) onRoleCreate(ctx context.Context, shard int, data json.RawMessage) error {
	var body struct {
		GuildID herald.Snowflake `json:"guild_id"`
		Role    *herald.Role     `json:"role"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("dispatch: decoding GUILD_ROLE_CREATE: %w", err)
	}
	if body.Role == nil {
		return fmt.Errorf("dispatch: GUILD_ROLE_CREATE without role")
	}

	d.cache.AddRole(body.GuildID, body.Role)
	d.emit(herald.RoleCreate{GuildID: body.GuildID, Role: body.Role})
	return nil
}

func (d *Dispatcher) onRoleUpdate(ctx context.Context, shard int, data json.RawMessage) error {
	var body struct {
		GuildID herald.Snowflake `json:"guild_id"`
		Role    *herald.Role     `json:"role"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("dispatch: decoding GUILD_ROLE_UPDATE: %w", err)
	}
	if body.Role == nil {
		return fmt.Errorf("dispatch: GUILD_ROLE_UPDATE without role")
	}

	before, _ := d.cache.Role(body.GuildID, body.Role.ID)
	d.cache.AddRole(body.GuildID, body.Role)
	d.emit(herald.RoleUpdate{GuildID: body.GuildID, Before: before, After: body.Role})
	return nil
}

func (d *Dispatcher) onRoleDelete(ctx context.Context, shard int, data json.RawMessage) error {
	var body struct {
		GuildID herald.Snowflake `json:"guild_id"`
		RoleID  herald.Snowflake `json:"role_id"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("dispatch: decoding GUILD_ROLE_DELETE: %w", err)
	}

	role, _ := d.cache.RemoveRole(body.GuildID, body.RoleID)
	d.emit(herald.RoleDelete{GuildID: body.GuildID, RoleID: body.RoleID, Role: role})
	return nil
}

func (d *Dispatcher) onMemberAdd(ctx context.Context, shard int, data json.RawMessage) error {
	var member herald.Member
	if err := json.Unmarshal(data, &member); err != nil {
		return fmt.Errorf("dispatch: decoding GUILD_MEMBER_ADD: %w", err)
	}

	d.cache.AddMember(&member)
	d.cache.AddUser(&member.User)
	if guild, ok := d.cache.Guild(member.GuildID); ok {
		guild.MemberCount++
	}
	d.emit(herald.MemberJoin{Member: &member})
	return nil
}

func (d *Dispatcher) onMemberUpdate(ctx context.Context, shard int, data json.RawMessage) error {
	var member herald.Member
	if err := json.Unmarshal(data, &member); err != nil {
		return fmt.Errorf("dispatch: decoding GUILD_MEMBER_UPDATE: %w", err)
	}

	before, _ := d.cache.Member(member.GuildID, member.User.ID)
	d.cache.AddMember(&member)
	d.cache.AddUser(&member.User)
	d.emit(herald.MemberUpdate{Before: before, After: &member})
	return nil
}

func (d *Dispatcher) onMemberRemove(ctx context.Context, shard int, data json.RawMessage) error {
	var body struct {
		GuildID herald.Snowflake `json:"guild_id"`
		User    *herald.User     `json:"user"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("dispatch: decoding GUILD_MEMBER_REMOVE: %w", err)
	}
	if body.User == nil {
		return fmt.Errorf("dispatch: GUILD_MEMBER_REMOVE without user")
	}

	member, _ := d.cache.RemoveMember(body.GuildID, body.User.ID)
	if guild, ok := d.cache.Guild(body.GuildID); ok && guild.MemberCount > 0 {
		guild.MemberCount--
	}
	d.emit(herald.MemberRemove{GuildID: body.GuildID, User: body.User, Member: member})
	return nil
}

func (d *Dispatcher) onChannelCreate(ctx context.Context, shard int, data json.RawMessage) error {
	var channel herald.Channel
	if err := json.Unmarshal(data, &channel); err != nil {
		return fmt.Errorf("dispatch: decoding CHANNEL_CREATE: %w", err)
	}

	d.cache.AddChannel(&channel)
	d.emit(herald.ChannelCreate{Channel: &channel})
	return nil
}

func (d *Dispatcher) onChannelUpdate(ctx context.Context, shard int, data json.RawMessage) error {
	var channel herald.Channel
	if err := json.Unmarshal(data, &channel); err != nil {
		return fmt.Errorf("dispatch: decoding CHANNEL_UPDATE: %w", err)
	}

	before, _ := d.cache.Channel(channel.ID)
	d.cache.AddChannel(&channel)
	d.emit(herald.ChannelUpdate{Before: before, After: &channel})
	return nil
}

func (d *Dispatcher) onChannelDelete(ctx context.Context, shard int, data json.RawMessage) error {
	var channel herald.Channel
	if err := json.Unmarshal(data, &channel); err != nil {
		return fmt.Errorf("dispatch: decoding CHANNEL_DELETE: %w", err)
	}

	d.cache.RemoveChannel(channel.ID)
	d.emit(herald.ChannelDelete{Channel: &channel})
	return nil
}

func (d *Dispatcher) onMessageCreate(ctx context.Context, shard int, data json.RawMessage) error {
	var message herald.Message
	if err := json.Unmarshal(data, &message); err != nil {
		return fmt.Errorf("dispatch: decoding MESSAGE_CREATE: %w", err)
	}

	d.cache.AddUser(&message.Author)
	d.emit(herald.MessageCreate{Message: &message})
	return nil
}
