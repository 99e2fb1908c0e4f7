// Package session wires the REST, gateway, cache and dispatch layers into
// the public Client contract.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/heraldlib/herald"
	"github.com/heraldlib/herald/internal/cache"
	"github.com/heraldlib/herald/internal/dispatch"
	"github.com/heraldlib/herald/internal/gateway"
	"github.com/heraldlib/herald/internal/rest"
)

// Session is the concrete herald.Client. Its lifecycle is linear: created,
// opened, closed. A closed session cannot be reopened.
type Session struct {
	cfg        herald.Config
	log        *slog.Logger
	rest       *rest.Client
	cache      herald.Cache
	readiness  *dispatch.Readiness
	dispatcher *dispatch.Dispatcher

	mu      sync.Mutex
	opened  bool
	closed  bool
	rootCtx context.Context
	cancel  context.CancelFunc
	shards  []*gateway.Shard

	cbMu      sync.RWMutex
	cbStopped bool
	callbacks map[string][]herald.EventCallback
	cbWG      sync.WaitGroup
}

var _ herald.Client = (*Session)(nil)

// New builds an unopened session from cfg.
func New(cfg herald.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Intents == 0 {
		cfg.Intents = herald.IntentsDefault()
	}

	s := &Session{
		cfg:       cfg,
		log:       cfg.Logger,
		cache:     cache.NewMemory(),
		callbacks: make(map[string][]herald.EventCallback),
	}
	s.rest = rest.NewClient(rest.Config{
		Token:      cfg.Token,
		BaseURL:    cfg.APIBaseURL,
		MaxRetries: cfg.MaxRetries,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	})
	s.readiness = dispatch.NewReadiness(cfg.ReadyTimeout, s.emit, cfg.Logger)
	s.dispatcher = dispatch.New(dispatch.Config{
		Cache:     s.cache,
		Emit:      s.emit,
		Readiness: s.readiness,
		Shard:     s.shardByID,
		Debug:     cfg.DebugEvents,
		Logger:    cfg.Logger,
	})
	return s, nil
}

// Open connects every shard in order and blocks until all of them finish
// their handshake. ctx bounds the connect phase only; the connections
// outlive it and run until Close.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return herald.ErrClientClosed
	}
	if s.opened {
		s.mu.Unlock()
		return herald.ErrAlreadyOpen
	}
	s.opened = true
	s.mu.Unlock()

	gatewayURL, count, err := s.discover(ctx)
	if err != nil {
		s.reset()
		return err
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	identify := gateway.NewIdentifyLimiter()
	shards := make([]*gateway.Shard, count)
	for id := range shards {
		shards[id] = gateway.NewShard(gateway.Config{
			URL:            gatewayURL,
			Token:          s.cfg.Token,
			Intents:        uint64(s.cfg.Intents),
			ID:             id,
			Count:          count,
			Compress:       s.cfg.Compress,
			Handler:        s.dispatcher,
			OnFreshSession: s.onFreshSession,
			Identify:       identify,
			Logger:         s.log,
		})
	}

	s.mu.Lock()
	s.rootCtx, s.cancel, s.shards = rootCtx, cancel, shards
	s.mu.Unlock()

	s.log.Info("connecting to gateway", "url", gatewayURL, "shards", count)
	for _, sh := range shards {
		if err := s.openShard(ctx, sh); err != nil {
			cancel()
			for _, sh := range shards {
				sh.Close()
			}
			s.reset()
			return fmt.Errorf("herald: opening shard %d: %w", sh.ID(), err)
		}
	}

	s.readiness.ShardsConnected()
	s.log.Info("all shards connected", "shards", count)
	return nil
}

// openShard runs one shard handshake on the session's root context while
// honoring the Open call's deadline.
func (s *Session) openShard(ctx context.Context, sh *gateway.Shard) error {
	s.mu.Lock()
	rootCtx := s.rootCtx
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- sh.Open(rootCtx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sh.Close()
		<-errCh
		return ctx.Err()
	}
}

// discover resolves the gateway URL and shard count, consulting the bot
// gateway endpoint for whichever the configuration leaves out.
func (s *Session) discover(ctx context.Context) (string, int, error) {
	gatewayURL, count := s.cfg.GatewayURL, s.cfg.ShardCount
	if gatewayURL != "" && count > 0 {
		return gatewayURL, count, nil
	}

	info, err := s.rest.GatewayBot(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("herald: gateway discovery: %w", err)
	}
	if gatewayURL == "" {
		gatewayURL = info.URL
	}
	if count <= 0 {
		count = info.Shards
	}
	if count <= 0 {
		count = 1
	}
	if remaining := info.SessionStartLimit.Remaining; remaining < count {
		return "", 0, fmt.Errorf("herald: %d session starts remaining, %d shards need identifying", remaining, count)
	}
	return gatewayURL, count, nil
}

// reset returns a failed open to the pristine state so it can be retried.
func (s *Session) reset() {
	s.mu.Lock()
	s.opened = false
	s.rootCtx, s.cancel, s.shards = nil, nil, nil
	s.mu.Unlock()
}

// Close shuts the session down and releases every waiter. Safe to call
// more than once and before Open.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, shards := s.cancel, s.shards
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, sh := range shards {
		sh.Close()
	}

	s.cbMu.Lock()
	s.cbStopped = true
	s.cbMu.Unlock()
	s.cbWG.Wait()

	s.rest.Close()
	s.log.Info("client closed")
	return nil
}

// On registers a callback for the named event.
func (s *Session) On(event string, fn herald.EventCallback) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks[event] = append(s.callbacks[event], fn)
}

// emit fans an event out to the callbacks registered for its name, one
// goroutine per callback. A panicking callback is logged and contained.
func (s *Session) emit(e herald.Event) {
	s.mu.Lock()
	ctx := s.rootCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.cbMu.RLock()
	if s.cbStopped {
		s.cbMu.RUnlock()
		return
	}
	callbacks := append([]herald.EventCallback(nil), s.callbacks[e.EventName()]...)
	s.cbWG.Add(len(callbacks))
	s.cbMu.RUnlock()

	for _, fn := range callbacks {
		go func(fn herald.EventCallback) {
			defer s.cbWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("event callback panicked", "event", e.EventName(), "panic", r)
				}
			}()
			fn(ctx, e)
		}(fn)
	}
}

// onFreshSession runs when a shard discards its session and identifies from
// scratch. Bucket ids are not stable across session epochs.
func (s *Session) onFreshSession(shardID int) {
	s.log.Info("session re-identified, clearing rate-limit buckets", "shard", shardID)
	s.rest.Limits().Clear()
}

// shardByID resolves a shard number for events that carry a shard handle.
func (s *Session) shardByID(id int) herald.Shard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.shards) {
		return nil
	}
	return s.shards[id]
}

// Rest returns the REST client. Usable before Open.
func (s *Session) Rest() herald.RestClient { return s.rest }

// Cache returns the entity cache maintained by the dispatch layer.
func (s *Session) Cache() herald.Cache { return s.cache }

// User returns the authenticated user, nil before the first READY.
func (s *Session) User() *herald.User { return s.dispatcher.ClientUser() }

// Shards returns the session's shards in ID order, empty before Open.
func (s *Session) Shards() []herald.Shard {
	s.mu.Lock()
	defer s.mu.Unlock()
	shards := make([]herald.Shard, len(s.shards))
	for i, sh := range s.shards {
		shards[i] = sh
	}
	return shards
}
