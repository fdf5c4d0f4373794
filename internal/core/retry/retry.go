// Package retry wraps a callable so it is re-invoked on qualifying
// failures, spacing attempts with a backoff.Sequence, grounded on
// retrying.py's _Retry and async_retrying.py's _RetryCoroutine.
package retry

import (
	"context"
	"time"

	"hermes-agent/internal/core/backoff"
	"hermes-agent/internal/platform/logger"
)

// ShouldRetry decides whether a failure qualifies for another attempt.
type ShouldRetry func(err error) bool

// AlwaysRetry retries on any non-nil error.
func AlwaysRetry(err error) bool { return err != nil }

// Do is the blocking variant: it invokes f, and on a qualifying failure
// sleeps the next backoff with a real time.Sleep before retrying. It is
// safe to call from any goroutine.
func Do(ctx context.Context, spec backoff.Spec, shouldRetry ShouldRetry, f func() error) error {
	if shouldRetry == nil {
		shouldRetry = AlwaysRetry
	}
	seq := spec.NewSequence().Start()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		if !seq.HasNext() {
			return exhausted(err, seq)
		}
		time.Sleep(seq.Next())
	}
}

// DoCooperative is the cooperative variant: it sleeps via a cancelable
// timer selecting on ctx.Done(), so callers can be interrupted without
// blocking an OS thread. This is Go's analogue of the original's
// coroutine-based retry loop.
func DoCooperative(ctx context.Context, spec backoff.Spec, shouldRetry ShouldRetry, f func(context.Context) error) error {
	if shouldRetry == nil {
		shouldRetry = AlwaysRetry
	}
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
			return exhausted(err, seq)
		}

		timer := time.NewTimer(seq.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func exhausted(err error, seq *backoff.Sequence) error {
	logger.Named("core.retry").Error().
		Err(err).
		Int("attempts", seq.AttemptNumber()).
		Dur("elapsed", time.Since(seq.StartTime())).
		Msg("retry exhausted")
	return err
}

// Retryer is an immutable, pre-configured retry policy, mirroring the
// "customized instance" behavior of the original _Retry.__call__.
type Retryer struct {
	spec        backoff.Spec
	shouldRetry ShouldRetry
}

// WithDefaults returns a Retryer bound to spec without mutating any
// shared default.
func WithDefaults(spec backoff.Spec) Retryer {
	return Retryer{spec: spec, shouldRetry: AlwaysRetry}
}

// WithShouldRetry returns a copy of r using the given predicate.
func (r Retryer) WithShouldRetry(fn ShouldRetry) Retryer {
	r.shouldRetry = fn
	return r
}

// Do runs the blocking variant using r's configured spec and predicate.
func (r Retryer) Do(ctx context.Context, f func() error) error {
	return Do(ctx, r.spec, r.shouldRetry, f)
}

// DoCooperative runs the cooperative variant using r's configured spec
// and predicate.
func (r Retryer) DoCooperative(ctx context.Context, f func(context.Context) error) error {
	return DoCooperative(ctx, r.spec, r.shouldRetry, f)
}
