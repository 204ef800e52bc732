package api

import (
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingTransport struct {
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.inFlight.Add(1) > 1 {
		t.overlap.Store(true)
	}
	time.Sleep(2 * time.Millisecond)
	t.inFlight.Add(-1)

	return &http.Response{StatusCode: http.StatusOK, Request: req}, nil
}

func TestSerializingTransport_OneRequestAtATime(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "requests.lock")
	base := &countingTransport{}

	// Two transports sharing one lock path, as two worker processes
	// sharing one runner credential would.
	first := NewSerializingTransport(base, lockPath)
	second := NewSerializingTransport(base, lockPath)

	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Scheme: "https", Host: "api.example.com"}}

	var wg sync.WaitGroup
	for i := range 10 {
		transport := first
		if i%2 == 1 {
			transport = second
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := transport.RoundTrip(req); err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		}()
	}
	wg.Wait()

	if base.overlap.Load() {
		t.Error("Expected at most one request in flight at any time")
	}
}

func TestSerializingTransport_DefaultBase(t *testing.T) {
	t.Parallel()

	transport := NewSerializingTransport(nil, filepath.Join(t.TempDir(), "requests.lock"))
	if transport.base != http.DefaultTransport {
		t.Error("Expected a nil base to fall back to http.DefaultTransport")
	}
}
