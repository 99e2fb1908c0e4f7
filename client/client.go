// Package client constructs herald clients.
package client

import (
	"github.com/heraldlib/herald"
	"github.com/heraldlib/herald/internal/session"
)

type Config = herald.Config

// New builds an unopened client from cfg. The only required field is the
// bot token; see herald.Config for the defaults applied to the rest.
//
// Example:
//
//	c, err := client.New(client.Config{Token: token})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.On(herald.EventMessageCreate, func(ctx context.Context, e herald.Event) {
//	    msg := e.(herald.MessageCreate).Message
//	    // ...
//	})
//	if err := c.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
func New(cfg Config) (herald.Client, error) {
	return session.New(cfg)
}
