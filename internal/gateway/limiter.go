package gateway

import (
	"time"

	"golang.org/x/time/rate"
)

// The gateway allows 120 sends per 60 seconds per connection. Four slots
// are reserved for scheduled heartbeats and one for a server-requested
// heartbeat, leaving 115 for everything else. Heartbeats bypass the
// limiter so a saturated send budget can never kill the connection.
const (
	sendWindow  = 60 * time.Second
	sendBudget  = 115
	identifyGap = 5 * time.Second
)

// newSendLimiter returns the per-connection command limiter.
func newSendLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(sendWindow/sendBudget), sendBudget)
}

// NewIdentifyLimiter returns the identify limiter. One IDENTIFY may be
// sent every five seconds per token, so all shards of a client share a
// single instance.
func NewIdentifyLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(identifyGap), 1)
}
