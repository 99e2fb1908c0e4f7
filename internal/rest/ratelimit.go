package rest

import (
	"context"
	"sync"
)

// Ratelimits tracks per-bucket exclusive gates plus the global throttle gate
// shared by every request.
//
// Gates are keyed provisionally by a route's grouping key; once a response
// reveals the server-assigned bucket ID for that key, the gate migrates to
// the bucket key so every route pooled into that bucket serializes on one
// gate. Bucket assignments only hold for one session epoch, so the registry
// is cleared wholesale when the session is re-identified.
//
// All methods are safe for concurrent use.
type Ratelimits struct {
	mu      sync.Mutex
	gates   map[string]chan struct{} // cap 1; full = held
	buckets map[string]string        // grouping key -> bucket ID
	global  chan struct{}            // closed = gate open
}

// NewRatelimits returns an empty registry with the global gate open.
func NewRatelimits() *Ratelimits {
	global := make(chan struct{})
	close(global)
	return &Ratelimits{
		gates:   make(map[string]chan struct{}),
		buckets: make(map[string]string),
		global:  global,
	}
}

// GlobalWait blocks until the global gate is open or ctx is done. Every
// request attempt, retries included, must pass through here first.
func (r *Ratelimits) GlobalWait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	gate := r.global
	r.mu.Unlock()

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetGlobal closes the global gate; requests suspend in GlobalWait until
// ResetGlobal. Closing an already-closed gate is a no-op.
func (r *Ratelimits) SetGlobal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.global:
		r.global = make(chan struct{})
	default:
	}
}

// ResetGlobal reopens the global gate, waking every suspended request.
// Reopening an open gate is a no-op.
func (r *Ratelimits) ResetGlobal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.global:
	default:
		close(r.global)
	}
}

// Acquire resolves the route's current gate and blocks until it is free or
// ctx is done. The returned release func is idempotent and must be called
// exactly once on every exit path: a gate that is never released deadlocks
// all later requests sharing its bucket.
func (r *Ratelimits) Acquire(ctx context.Context, route Route) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gate := r.gate(route.GroupingKey())

	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-gate })
	}, nil
}

// gate returns the gate a grouping key currently resolves to, preferring
// the learned bucket key and creating the gate on first use.
func (r *Ratelimits) gate(key string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bucket, ok := r.buckets[key]; ok {
		key = bucket
	}
	gate, ok := r.gates[key]
	if !ok {
		gate = make(chan struct{}, 1)
		r.gates[key] = gate
	}
	return gate
}

// RecordBucket stores the server-assigned bucket ID for the route's grouping
// key and moves any gate allocated under that key to the bucket key, held
// state included (the channel value carries it). The read and the move
// happen under one lock acquisition so no concurrent Acquire can observe the
// key in between. When the bucket key already owns a gate the existing gate
// is kept and the grouping-key entry is dropped. Repeat calls with the same
// bucket only refresh the mapping.
func (r *Ratelimits) RecordBucket(route Route, bucket string) {
	key := route.GroupingKey()

	r.mu.Lock()
	defer r.mu.Unlock()

	if gate, ok := r.gates[key]; ok {
		delete(r.gates, key)
		if _, taken := r.gates[bucket]; !taken {
			r.gates[bucket] = gate
		}
	}
	r.buckets[key] = bucket
}

// Clear drops every gate and bucket mapping and reopens the global gate.
// Waiters blocked on a dropped gate proceed when its current holder
// releases; requests arriving after Clear start from fresh gates.
func (r *Ratelimits) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gates = make(map[string]chan struct{})
	r.buckets = make(map[string]string)
	select {
	case <-r.global:
	default:
		close(r.global)
	}
}
