package api

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		status int
		want   bool
	}{
		{http.MethodDelete, http.StatusBadRequest, true},
		{http.MethodGet, http.StatusBadRequest, false},
		{http.MethodPost, http.StatusBadRequest, false},
		{http.MethodGet, http.StatusServiceUnavailable, true},
		{http.MethodPost, http.StatusServiceUnavailable, true},
		{http.MethodDelete, http.StatusServiceUnavailable, true},
		{http.MethodGet, http.StatusOK, false},
		{http.MethodPost, http.StatusCreated, false},
		{http.MethodGet, http.StatusNotFound, false},
		{http.MethodDelete, http.StatusNotFound, false},
		{http.MethodGet, http.StatusForbidden, false},
	}

	for _, tc := range tests {
		if got := Retryable(tc.method, tc.status); got != tc.want {
			t.Errorf("Retryable(%s, %d) = %v, want %v", tc.method, tc.status, got, tc.want)
		}
	}
}

func TestCheckRetry_ProviderTableFirst(t *testing.T) {
	t.Parallel()

	// DELETE with 400 is not retried by the generic policy, only by the
	// provider table.
	resp := &http.Response{
		StatusCode: http.StatusBadRequest,
		Request:    &http.Request{Method: http.MethodDelete},
	}

	retry, err := CheckRetry(context.Background(), resp, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !retry {
		t.Error("Expected DELETE 400 to be retried")
	}
}

func TestCheckRetry_GenericFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		retry  bool
	}{
		{"server error", http.StatusInternalServerError, true},
		{"too many requests", http.StatusTooManyRequests, true},
		{"client error", http.StatusBadRequest, false},
		{"success", http.StatusOK, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp := &http.Response{
				StatusCode: tc.status,
				Request:    &http.Request{Method: http.MethodGet},
			}

			retry, _ := CheckRetry(context.Background(), resp, nil)
			if retry != tc.retry {
				t.Errorf("Expected retry=%v for GET %d, got %v", tc.retry, tc.status, retry)
			}
		})
	}
}

func TestBackoff_Exponential(t *testing.T) {
	t.Parallel()

	backoff := Backoff(time.Second)
	max := time.Minute

	for attempt, want := range []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	} {
		if got := backoff(0, max, attempt, nil); got != want {
			t.Errorf("Expected %v on attempt %d, got: %v", want, attempt, got)
		}
	}
}

func TestBackoff_CappedAtMax(t *testing.T) {
	t.Parallel()

	backoff := Backoff(time.Second)

	if got := backoff(0, 10*time.Second, 20, nil); got != 10*time.Second {
		t.Errorf("Expected the max wait, got: %v", got)
	}
	// Shift overflow must not produce a negative wait.
	if got := backoff(0, 10*time.Second, 70, nil); got != 10*time.Second {
		t.Errorf("Expected the max wait on overflow, got: %v", got)
	}
}

func TestBackoff_HonorsRetryAfter(t *testing.T) {
	t.Parallel()

	backoff := Backoff(time.Second)

	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		resp := &http.Response{StatusCode: status, Header: http.Header{}}
		resp.Header.Set("Retry-After", "7")

		if got := backoff(0, time.Minute, 0, resp); got != 7*time.Second {
			t.Errorf("Expected Retry-After to win for %d, got: %v", status, got)
		}
	}

	// Other statuses ignore the header.
	resp := &http.Response{StatusCode: http.StatusInternalServerError, Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")

	if got := backoff(0, time.Minute, 1, resp); got != 2*time.Second {
		t.Errorf("Expected the exponential wait, got: %v", got)
	}
}
