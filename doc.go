// Package herald provides a client library for the Discord v10 gateway and
// REST API.
//
// The library maintains sharded WebSocket gateway sessions, keeps an entity
// cache in sync from dispatch events, fans typed events out to registered
// callbacks, and issues REST calls that honor the service's per-bucket and
// global rate-limit contract.
//
// # Architecture
//
// This package declares the contracts (Client, Shard, Cache, RestClient),
// the configuration, the entity models and the typed events. The
// client subpackage constructs a ready-to-use Client; the machinery lives
// under internal.
//
// # Quick Start
//
//	import (
//	    "github.com/heraldlib/herald"
//	    "github.com/heraldlib/herald/client"
//	)
//
//	c, err := client.New(herald.Config{
//	    Token:   token,
//	    Intents: herald.IntentsDefault() | herald.IntentMessageContent,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c.On(herald.EventReady, func(ctx context.Context, _ herald.Event) {
//	    log.Printf("serving %d guilds", len(c.Cache().Guilds()))
//	})
//
//	c.On(herald.EventMessageCreate, func(ctx context.Context, e herald.Event) {
//	    msg := e.(herald.MessageCreate).Message
//	    if msg.Content == "!ping" {
//	        c.Rest().CreateMessage(ctx, msg.ChannelID, herald.MessageParams{Content: "pong"})
//	    }
//	})
//
//	if err := c.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
// # Events
//
// Callbacks are registered by event name (the Event* constants) and receive
// the matching event struct behind the Event interface. Unknown gateway
// dispatch titles are ignored; with Config.DebugEvents every raw dispatch is
// additionally delivered as a GatewayDispatch event. Readiness is debounced:
// Ready and ShardReady fire once guild backfill has been quiet for
// Config.ReadyTimeout (2s by default), per shard and across all shards.
//
// # Rate Limiting
//
// Outbound REST calls serialize per rate-limit bucket. Buckets are learned
// lazily from the X-Ratelimit-Bucket response header: until a route's bucket
// is known, requests group under a provisional key derived from the method,
// path template and major parameters. An exhausted bucket
// (X-Ratelimit-Remaining: 0) keeps its gate held until the advertised reset;
// a 429 with the global flag suspends every request until its retry-after
// elapses. Gateway sends are budgeted to 115 commands per 60 seconds, with
// heartbeats exempt.
//
// # Shutdown
//
//   - Close aborts in-flight readiness waits and queued REST acquisitions
//   - Shard connections close with code 1000
//   - The rate-limit registry is cleared (bucket IDs are session-scoped)
//
// # Important
//
//   - Callbacks run in their own goroutines; order across callbacks is not
//     guaranteed, and a panicking callback is isolated from the others
//   - The cache is written only by the dispatch layer; treat returned
//     entities as read-only snapshots
package herald
