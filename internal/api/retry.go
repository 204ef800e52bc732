package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Retry budget: 8 attempts at a 2.5s exponential backoff factor add up
// to roughly ten minutes. Provider maintenance windows can last
// minutes, and waiting is far cheaper than failing the whole run.
const (
	defaultRetryMax      = 8
	defaultBackoffFactor = 2500 * time.Millisecond
	defaultRetryWaitMax  = 6 * time.Minute
)

// Retryable is the provider-specific retry decision table. It only
// answers whether a given method/status pair should be retried; attempt
// counting and backoff are layered around it.
func Retryable(method string, status int) bool {
	// DELETE may fail with 400 during cleanup while the resource is
	// still being created.
	if method == http.MethodDelete && status == http.StatusBadRequest {
		return true
	}

	// Maintenance windows are always retried.
	if status == http.StatusServiceUnavailable {
		return true
	}

	return false
}

// CheckRetry implements retryablehttp.CheckRetry: apply the
// provider-specific table first, then fall back to the generic policy
// (which handles idempotent methods, 429/503 Retry-After and transport
// errors).
func CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.Request != nil {
		if Retryable(resp.Request.Method, resp.StatusCode) {
			return true, nil
		}
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Backoff returns an exponential backoff (factor * 2^attempt) that
// honors Retry-After headers on 429 and 503 responses.
func Backoff(factor time.Duration) retryablehttp.Backoff {
	return func(_, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusTooManyRequests, http.StatusServiceUnavailable:
				if s := resp.Header.Get("Retry-After"); s != "" {
					if seconds, err := strconv.Atoi(s); err == nil {
						return time.Duration(seconds) * time.Second
					}
				}
			}
		}

		wait := factor << attemptNum
		if wait > max || wait <= 0 {
			return max
		}
		return wait
	}
}

// retryLogger adapts slog to retryablehttp's leveled logger, so retry
// noise lands in the harness's structured log.
type retryLogger struct {
	logger *slog.Logger
}

func (l *retryLogger) Error(msg string, kv ...any) { l.logger.Error(msg, kv...) }
func (l *retryLogger) Warn(msg string, kv ...any)  { l.logger.Warn(msg, kv...) }
func (l *retryLogger) Info(msg string, kv ...any)  { l.logger.Info(msg, kv...) }
func (l *retryLogger) Debug(msg string, kv ...any) { l.logger.Debug(msg, kv...) }
