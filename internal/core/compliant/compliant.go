// Package compliant implements a per-key serializing retry lock, grounded
// on async_retrying.py's _PersistentWatch/_CompliantLock from the
// AppScale common library. It guarantees that, for a given key, an
// older in-flight retry loop is preempted by a newer call rather than
// left to race it: the newer call wakes the older one out of its
// inter-retry sleep, and the older one gives up rather than compete.
package compliant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"hermes-agent/internal/core/backoff"
	"hermes-agent/internal/core/retry"
	"hermes-agent/internal/platform/logger"
)

// ErrSuperseded is returned when a newer call for the same key woke this
// call out of its inter-retry sleep, or arrived while this call was
// still sleeping. It is not a failure: the caller simply lost the race
// to a fresher invocation and should not treat it as an error to log.
var ErrSuperseded = errors.New("compliant: superseded by a newer call for this key")

type node struct {
	mu      sync.Mutex // serializes Do invocations sharing this key
	waiters int32

	wakeMu sync.Mutex
	wake   chan struct{}
}

func newNode() *node {
	return &node{wake: make(chan struct{})}
}

// broadcast wakes every call currently asleep between retries for this
// key, mirroring condition.notify_all() in the original.
func (n *node) broadcast() {
	n.wakeMu.Lock()
	close(n.wake)
	n.wake = make(chan struct{})
	n.wakeMu.Unlock()
}

func (n *node) waitChan() chan struct{} {
	n.wakeMu.Lock()
	defer n.wakeMu.Unlock()
	return n.wake
}

// Keyed holds one compliant lock per key, created lazily and garbage
// collected once its last waiter leaves.
type Keyed struct {
	mu    sync.Mutex
	nodes map[string]*node
}

// NewKeyed returns an empty set of per-key compliant locks.
func NewKeyed() *Keyed {
	return &Keyed{nodes: make(map[string]*node)}
}

func (k *Keyed) nodeFor(key string) *node {
	k.mu.Lock()
	defer k.mu.Unlock()
	n, ok := k.nodes[key]
	if !ok {
		n = newNode()
		k.nodes[key] = n
	}
	return n
}

func (k *Keyed) release(key string, n *node) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if atomic.LoadInt32(&n.waiters) == 0 {
		delete(k.nodes, key)
	}
}

// Do runs f under key's compliant lock, retrying on qualifying failures
// with spec's backoff. The five-step lifecycle mirrors
// _PersistentWatch.__call__: wake any older sleeper, register as a
// waiter, acquire the key's lock, then retry until success, exhaustion,
// or preemption by a newer call.
func (k *Keyed) Do(ctx context.Context, key string, spec backoff.Spec, shouldRetry retry.ShouldRetry, f func(context.Context) error) error {
	if shouldRetry == nil {
		shouldRetry = retry.AlwaysRetry
	}
	n := k.nodeFor(key)

	n.broadcast()
	atomic.AddInt32(&n.waiters, 1)

	n.mu.Lock()
	atomic.AddInt32(&n.waiters, -1)

	result := k.retryLoop(ctx, n, spec, shouldRetry, f)

	n.mu.Unlock()
	k.release(key, n)
	return result
}

func (k *Keyed) retryLoop(ctx context.Context, n *node, spec backoff.Spec, shouldRetry retry.ShouldRetry, f func(context.Context) error) error {
	seq := spec.NewSequence().Start()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f(ctx)
		if err == nil {
			return nil
		}

		if !shouldRetry(err) {
			return err
		}
		if !seq.HasNext() {
			logger.Named("core.compliant").Error().
				Err(err).
				Int("attempts", seq.AttemptNumber()).
				Dur("elapsed", time.Since(seq.StartTime())).
				Msg("giving up retrying")
			return err
		}

		wake := n.waitChan()
		timer := time.NewTimer(seq.Next())

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-wake:
			timer.Stop()
			logger.Named("core.compliant").Info().Msg("giving up retrying because newer call came up")
			return ErrSuperseded
		case <-timer.C:
			if atomic.LoadInt32(&n.waiters) > 0 {
				logger.Named("core.compliant").Info().Msg("giving up retrying because newer call came up")
				return ErrSuperseded
			}
		}
	}
}
