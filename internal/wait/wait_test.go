package wait

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPoll_ImmediateSuccess(t *testing.T) {
	t.Parallel()
	calls := 0

	err := Poll(context.Background(), time.Millisecond, time.Second, "test condition",
		func(ctx context.Context) (bool, error) {
			calls++
			return true, nil
		})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got: %d", calls)
	}
}

func TestPoll_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	calls := 0

	err := Poll(context.Background(), time.Millisecond, time.Second, "test condition",
		func(ctx context.Context) (bool, error) {
			calls++
			return calls >= 3, nil
		})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got: %d", calls)
	}
}

func TestPoll_Timeout(t *testing.T) {
	t.Parallel()

	err := Poll(context.Background(), time.Millisecond, 20*time.Millisecond, "the impossible",
		func(ctx context.Context) (bool, error) {
			return false, nil
		})

	if !IsTimeout(err) {
		t.Fatalf("Expected a timeout error, got: %v", err)
	}

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TimeoutError, got: %T", err)
	}
	if te.What != "the impossible" {
		t.Errorf("Expected the awaited condition in the error, got: %q", te.What)
	}
}

func TestPoll_PropagatesError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	err := Poll(context.Background(), time.Millisecond, time.Second, "test condition",
		func(ctx context.Context) (bool, error) {
			return false, boom
		})

	if !errors.Is(err, boom) {
		t.Errorf("Expected the condition's error, got: %v", err)
	}
	if IsTimeout(err) {
		t.Error("A condition error must not count as a timeout")
	}
}

func TestPoll_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Poll(ctx, time.Millisecond, time.Second, "test condition",
		func(ctx context.Context) (bool, error) {
			return false, nil
		})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestIsTimeout_WrappedError(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", &TimeoutError{What: "x", After: time.Second})
	if !IsTimeout(wrapped) {
		t.Error("Expected IsTimeout to see through wrapping")
	}
	if IsTimeout(errors.New("unrelated")) {
		t.Error("Expected IsTimeout to reject unrelated errors")
	}
}
