package herald

import (
	"context"
	"time"
)

// Client is a connected bot: sharded gateway sessions, an entity cache kept
// in sync by the dispatch layer, and a rate-limit-aware REST client.
//
// Example usage:
//
//	import "github.com/heraldlib/herald/client"
//
//	c, err := client.New(herald.Config{Token: token})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c.On(herald.EventReady, func(ctx context.Context, _ herald.Event) {
//	    log.Printf("ready as %s", c.User().Tag())
//	})
//
//	if err := c.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
type Client interface {
	// Open connects every shard and blocks until all of them have completed
	// their gateway handshake, the context is cancelled, or a shard fails
	// with an unrecoverable error. After Open returns, events flow until
	// Close is called.
	//
	// Returns ErrAlreadyOpen if the client is already running.
	Open(ctx context.Context) error

	// Close shuts the client down: in-flight readiness waits and queued
	// REST acquisitions are aborted, every shard connection is closed with
	// a normal-closure code, and the rate-limit registry is cleared.
	// Close is idempotent.
	Close() error

	// On registers a callback for the named event. Multiple callbacks may
	// be registered for one name; each invocation runs in its own
	// goroutine, and a panicking callback never affects the others.
	//
	// Example:
	//
	//	c.On(herald.EventMessageCreate, func(ctx context.Context, e herald.Event) {
	//	    msg := e.(herald.MessageCreate).Message
	//	    // ...
	//	})
	On(event string, fn EventCallback)

	// Rest returns the REST client. It is usable before Open.
	Rest() RestClient

	// Cache returns the entity cache the dispatch layer maintains.
	Cache() Cache

	// User returns the client's own user, available once the first shard
	// has received its session payload. Nil before that.
	User() *User

	// Shards returns the client's shards in ID order. Empty before Open.
	Shards() []Shard
}

// Shard is one gateway connection, covering a fixed slice of the bot's
// guilds. Shards are created and owned by the Client.
type Shard interface {
	// ID returns the shard's index, in [0, Count).
	ID() int

	// Count returns the total number of shards in the session.
	Count() int

	// Latency returns the delay between the most recent heartbeat and its
	// acknowledgement. Zero until the first heartbeat round-trips.
	Latency() time.Duration
}
