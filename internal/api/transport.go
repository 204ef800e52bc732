package api

import (
	"fmt"
	"net/http"

	"github.com/gofrs/flock"
)

// SerializingTransport serializes all outbound requests from every
// cooperating process on this machine through one advisory file lock.
//
// The provider enforces account-wide concurrency limits; parallel test
// workers would trip them independently of any single process's own
// throttling. The lock is keyed by runner id, so only workers sharing a
// credential contend with each other.
type SerializingTransport struct {
	base http.RoundTripper
	lock *flock.Flock
}

// NewSerializingTransport wraps base so that at most one request is in
// flight across all processes holding the same lock path. A nil base
// means http.DefaultTransport.
func NewSerializingTransport(base http.RoundTripper, lockPath string) *SerializingTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &SerializingTransport{
		base: base,
		lock: flock.New(lockPath),
	}
}

// RoundTrip holds the lock for the duration of exactly one send.
func (t *SerializingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to acquire request lock: %w", err)
	}
	defer func() { _ = t.lock.Unlock() }()

	return t.base.RoundTrip(req)
}
