package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/heraldlib/herald"
)

// Readiness decides when the initial guild backfill has quiesced after a
// session starts. Each guild arrival pushes the quiet window out; the
// window elapsing with no arrival means the burst is over.
//
// One waiter slot is shared by every in-flight wait; an arrival resolves
// whichever wait armed the slot last. A wait whose waiter got displaced
// simply rides out its window on the timer.
type Readiness struct {
	timeout time.Duration
	emit    func(herald.Event)
	log     *slog.Logger

	mu        sync.Mutex
	waiter    chan struct{}
	aggregate bool

	connected     chan struct{}
	connectedOnce sync.Once
}

// NewReadiness builds a coordinator that publishes through emit.
func NewReadiness(timeout time.Duration, emit func(herald.Event), log *slog.Logger) *Readiness {
	if timeout <= 0 {
		timeout = herald.DefaultReadyTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Readiness{
		timeout:   timeout,
		emit:      emit,
		log:       log,
		connected: make(chan struct{}),
	}
}

// ShardsConnected marks the connect handshake of every shard as complete.
// The aggregate wait holds its debounce until this fires. Calling it more
// than once is a no-op.
func (r *Readiness) ShardsConnected() {
	r.connectedOnce.Do(func() { close(r.connected) })
}

// SessionStart begins quiescence tracking for a shard that just received
// READY. Every call starts the shard-scoped wait; only a call with no
// aggregate wait in flight additionally starts the aggregate one, so the
// first shard of a connect (or the shard that re-identified) owns it.
func (r *Readiness) SessionStart(ctx context.Context, shard herald.Shard) {
	go r.wait(ctx, shard, false)

	r.mu.Lock()
	first := !r.aggregate
	if first {
		r.aggregate = true
	}
	r.mu.Unlock()

	if first {
		go r.wait(ctx, shard, true)
	}
}

// NotifyGuild reports one guild arrival, resolving the armed waiter when
// there is one. A waiter already resolved this iteration is left alone.
func (r *Readiness) NotifyGuild() {
	r.mu.Lock()
	waiter := r.waiter
	r.mu.Unlock()

	if waiter == nil {
		return
	}
	select {
	case waiter <- struct{}{}:
	default:
	}
}

// wait runs one quiescence loop and emits its event exactly once, or
// nothing when the context ends first. The aggregate wait first blocks
// until every shard has connected.
func (r *Readiness) wait(ctx context.Context, shard herald.Shard, aggregate bool) {
	if aggregate {
		defer func() {
			r.mu.Lock()
			r.aggregate = false
			r.mu.Unlock()
		}()

		select {
		case <-r.connected:
		case <-ctx.Done():
			return
		}
	}

	for {
		waiter := make(chan struct{}, 1)
		r.mu.Lock()
		r.waiter = waiter
		r.mu.Unlock()

		timer := time.NewTimer(r.timeout)
		select {
		case <-waiter:
			// An arrival restarts the window from scratch.
			timer.Stop()
			continue
		case <-timer.C:
			r.clearWaiter(waiter)
		case <-ctx.Done():
			timer.Stop()
			r.clearWaiter(waiter)
			return
		}
		break
	}

	if aggregate {
		r.log.Debug("guild backfill quiesced on all shards")
		r.emit(herald.Ready{})
		return
	}
	r.log.Debug("guild backfill quiesced", "shard", shard.ID())
	r.emit(herald.ShardReady{Shard: shard})
}

// clearWaiter empties the shared slot when it still holds this wait's
// waiter. A slot re-armed by another wait is left alone.
func (r *Readiness) clearWaiter(waiter chan struct{}) {
	r.mu.Lock()
	if r.waiter == waiter {
		r.waiter = nil
	}
	r.mu.Unlock()
}
