// Package backoff implements a single-use, forward-only sequence of
// exponentially growing delay values, grounded on retrying.py's
// BackoffSequence from the AppScale common library.
package backoff

import (
	"math"
	"math/rand"
	"sync"
	"time"

	perr "hermes-agent/internal/platform/errors"
)

// Spec configures a Sequence's step function and bounds.
type Spec struct {
	Base       float64
	Multiplier float64
	Threshold  float64
	MaxRetries int
	Timeout    time.Duration
	Randomize  bool
}

// DefaultSpec mirrors the DEFAULT_BACKOFF_* constants from the original
// retrying module. It sets no Timeout, so only MaxRetries ends a default
// sequence: it yields 11 delays, 0.2s doubling up to 204.8s.
func DefaultSpec() Spec {
	return Spec{
		Base:       2,
		Multiplier: 0.2,
		Threshold:  300,
		MaxRetries: 10,
	}
}

// NewSequence builds a fresh, unstarted Sequence from spec.
func (sp Spec) NewSequence() *Sequence {
	return &Sequence{spec: sp, rnd: rand.Float64}
}

// Sequence is a single-use, forward-only producer of non-negative delays.
// It is not meant to be shared across goroutines without external
// synchronization beyond what its own mutex already provides for the
// individual method calls.
type Sequence struct {
	spec Spec
	rnd  func() float64

	mu          sync.Mutex
	started     bool
	startTime   time.Time
	attempt     int
	backoff     float64
	haveBackoff bool
}

// Start begins the sequence, capturing the wall clock start time.
// Starting the same Sequence twice is a usage error.
func (s *Sequence) Start() *Sequence {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		panic(perr.Usagef("backoff: sequence already started"))
	}
	s.started = true
	s.startTime = time.Now()
	return s
}

// AttemptNumber returns how many delays have been produced so far.
func (s *Sequence) AttemptNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// StartTime returns when Start was called.
func (s *Sequence) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime
}

// prospective computes the next un-randomized, threshold-capped delay
// without mutating sequence state.
func (s *Sequence) prospective() float64 {
	if !s.haveBackoff {
		return s.spec.Multiplier
	}
	return math.Min(s.backoff*s.spec.Base, s.spec.Threshold)
}

// HasNext reports whether another step is permissible under both
// MaxRetries and Timeout. The timeout check is applied against the
// prospective next delay: would we still be inside the timeout budget
// after sleeping that long?
func (s *Sequence) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		panic(perr.Usagef("backoff: sequence not started"))
	}
	return s.hasNextLocked(s.prospective())
}

func (s *Sequence) hasNextLocked(afterBackoff float64) bool {
	if s.attempt > s.spec.MaxRetries {
		return false
	}
	if s.spec.Timeout > 0 {
		elapsed := time.Since(s.startTime).Seconds()
		if elapsed+afterBackoff >= s.spec.Timeout.Seconds() {
			return false
		}
	}
	return true
}

// Next returns the current delay and advances state. Callers should check
// HasNext before calling Next.
func (s *Sequence) Next() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		panic(perr.Usagef("backoff: sequence not started"))
	}

	s.backoff = s.prospective()
	s.haveBackoff = true
	s.attempt++

	d := s.backoff
	if s.spec.Randomize {
		d *= 0.85 + 0.3*s.rnd()
	}
	return time.Duration(d * float64(time.Second))
}
