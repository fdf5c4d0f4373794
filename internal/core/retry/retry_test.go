package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"hermes-agent/internal/core/backoff"
)

func fastSpec() backoff.Spec {
	return backoff.Spec{
		Base:       2,
		Multiplier: 0.001,
		Threshold:  1,
		MaxRetries: 3,
		Timeout:    time.Second,
	}
}

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastSpec(), AlwaysRetry, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastSpec(), AlwaysRetry, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAndReturnsUnderlyingError(t *testing.T) {
	want := errors.New("always fails")
	calls := 0
	err := Do(context.Background(), fastSpec(), AlwaysRetry, func() error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected underlying error to be returned, got %v", err)
	}
	// MaxRetries=3 means 4 backoff steps, so f is called once up front
	// plus once after each step: 5 calls total.
	if calls != 5 {
		t.Fatalf("expected 5 calls, got %d", calls)
	}
}

func TestDo_NonQualifyingFailureReturnsImmediately(t *testing.T) {
	want := errors.New("do not retry this")
	calls := 0
	shouldRetry := func(err error) bool { return false }
	err := Do(context.Background(), fastSpec(), shouldRetry, func() error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected immediate error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestDo_CanceledContextStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, fastSpec(), AlwaysRetry, func() error {
		calls++
		return nil
	})
	if err == nil {
		t.Fatalf("expected context error")
	}
	if calls != 0 {
		t.Fatalf("expected f never called with a pre-canceled context, got %d calls", calls)
	}
}

func TestDoCooperative_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := DoCooperative(context.Background(), fastSpec(), AlwaysRetry, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoCooperative_CancelDuringSleepStopsRetrying(t *testing.T) {
	spec := backoff.Spec{
		Base: 2, Multiplier: 5, Threshold: 30, MaxRetries: 10, Timeout: time.Minute,
	}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)

	go func() {
		done <- DoCooperative(ctx, spec, AlwaysRetry, func(ctx context.Context) error {
			calls++
			return errors.New("fails forever")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("DoCooperative did not return after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call before the long sleep was canceled, got %d", calls)
	}
}

func TestWithDefaults_DoesNotMutateSharedSpec(t *testing.T) {
	spec := fastSpec()
	r := WithDefaults(spec)
	r2 := r.WithShouldRetry(func(err error) bool { return false })

	calls := 0
	_ = r.Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	if calls != 5 {
		t.Fatalf("expected original retryer to still retry 5 times, got %d", calls)
	}

	calls = 0
	_ = r2.Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	if calls != 1 {
		t.Fatalf("expected customized retryer to stop after 1 call, got %d", calls)
	}
}
