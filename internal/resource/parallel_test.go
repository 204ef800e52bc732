package resource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestInParallel_KeepsInputOrder(t *testing.T) {
	t.Parallel()

	params := []int{1, 2, 3, 4, 5}

	results, err := InParallel(context.Background(), 3,
		func(ctx context.Context, n int) (string, error) {
			// Finish in reverse order to prove ordering is by input.
			time.Sleep(time.Duration(6-n) * time.Millisecond)
			return fmt.Sprintf("server-%d", n), nil
		}, params)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for i, want := range []string{"server-1", "server-2", "server-3", "server-4", "server-5"} {
		if results[i] != want {
			t.Errorf("Expected %q at index %d, got: %q", want, i, results[i])
		}
	}
}

func TestInParallel_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32

	_, err := InParallel(context.Background(), 2,
		func(ctx context.Context, n int) (int, error) {
			current := inFlight.Add(1)
			defer inFlight.Add(-1)

			for {
				observed := peak.Load()
				if current <= observed || peak.CompareAndSwap(observed, current) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)
			return n, nil
		}, []int{1, 2, 3, 4, 5, 6})

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("Expected at most 2 creations in flight, got: %d", peak.Load())
	}
}

func TestInParallel_ReturnsFirstErrorAndPartialResults(t *testing.T) {
	t.Parallel()

	boom := errors.New("quota exceeded")
	var calls atomic.Int32

	results, err := InParallel(context.Background(), 2,
		func(ctx context.Context, n int) (int, error) {
			calls.Add(1)
			if n == 3 {
				return 0, boom
			}
			return n * 10, nil
		}, []int{1, 2, 3, 4})

	if !errors.Is(err, boom) {
		t.Fatalf("Expected the creation error, got: %v", err)
	}

	// Siblings are not cancelled; every creation ran and the survivors
	// are available for cleanup.
	if calls.Load() != 4 {
		t.Errorf("Expected all 4 creations to run, got: %d", calls.Load())
	}
	if results[0] != 10 || results[1] != 20 || results[3] != 40 {
		t.Errorf("Expected the partial results, got: %v", results)
	}
}

func TestNInParallel(t *testing.T) {
	t.Parallel()

	var n atomic.Int32

	results, err := NInParallel(context.Background(), 0,
		func(ctx context.Context) (int32, error) {
			return n.Add(1), nil
		}, 3)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Expected 3 results, got: %d", len(results))
	}
}
