package herald

import (
	"log/slog"
	"net/http"
	"time"
)

// Defaults applied to zero-valued Config fields.
const (
	// DefaultReadyTimeout is the guild backfill debounce window: readiness
	// fires once no guild has arrived for this long.
	DefaultReadyTimeout = 2 * time.Second

	// DefaultMaxRetries bounds the attempts made for one REST request,
	// including retries after non-global rate limits.
	DefaultMaxRetries = 5
)

// Config configures a Client. The zero value of every field except Token is
// usable; New fills in defaults.
type Config struct {
	// Token is the bot token. Required.
	Token string

	// Intents selects the gateway event groups to receive. Zero means
	// IntentsDefault().
	Intents Intents

	// ShardCount is the number of gateway connections to open. Zero means
	// the count recommended by the bot gateway endpoint.
	ShardCount int

	// ReadyTimeout is the guild backfill debounce window for readiness
	// events. Zero means DefaultReadyTimeout.
	ReadyTimeout time.Duration

	// DebugEvents re-emits every raw gateway dispatch as a GatewayDispatch
	// event before named handling.
	DebugEvents bool

	// Compress asks the gateway to zlib-compress dispatch payloads.
	Compress bool

	// MaxRetries bounds REST request attempts. Zero means DefaultMaxRetries.
	MaxRetries int

	// HTTPClient issues REST requests. Nil means a client with a 30s
	// timeout.
	HTTPClient *http.Client

	// Logger receives structured logs. Nil means slog.Default().
	Logger *slog.Logger

	// APIBaseURL overrides the REST base URL. Empty means the production
	// endpoint. Intended for tests.
	APIBaseURL string

	// GatewayURL overrides gateway discovery. Empty means the URL returned
	// by the bot gateway endpoint. Intended for tests.
	GatewayURL string
}

// Validate reports configuration errors that cannot be defaulted away.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrNoToken
	}
	return nil
}
