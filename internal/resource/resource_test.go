package resource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nimbusinfra/acctest/internal/api"
	"github.com/nimbusinfra/acctest/internal/wait"
)

// newTestClient builds an api.Client against an httptest server with
// retry and poll pacing tightened for tests.
func newTestClient(t *testing.T, mux *http.ServeMux) *api.Client {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := api.New(api.Config{
		BaseURL:       server.URL + "/v1",
		Token:         "test-token",
		Runner:        "at-0011223344556677",
		Process:       "at-cafe0123",
		Scope:         api.ScopeFunction,
		Zone:          "ost1",
		BackoffFactor: time.Millisecond,
		RetryWaitMax:  20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Expected no error creating the client, got: %v", err)
	}

	return client
}

// fastResource returns a resource with polling tightened for tests.
func fastResource(client *api.Client, spec api.Document) Resource {
	r := newResource(client, spec)
	r.PollInterval = time.Millisecond
	return r
}

func TestResource_AttrPrecedence(t *testing.T) {
	t.Parallel()

	r := newResource(nil, api.Document{"name": "requested", "size_gb": 10})
	r.Info = api.Document{"name": "observed"}

	// The provider's view wins once it exists.
	if v, err := r.Attr("name"); err != nil || v != "observed" {
		t.Errorf("Expected the observed value, got %v (%v)", v, err)
	}

	// Spec fills in what the provider has not reported.
	if v, err := r.Attr("size_gb"); err != nil || v != 10 {
		t.Errorf("Expected the spec value, got %v (%v)", v, err)
	}

	_, err := r.Attr("missing")
	if !errors.Is(err, ErrAttrNotFound) {
		t.Errorf("Expected ErrAttrNotFound, got: %v", err)
	}
}

func TestResource_MustAttr(t *testing.T) {
	t.Parallel()

	r := newResource(nil, api.Document{"name": "requested"})

	if v := r.MustAttr("name"); v != "requested" {
		t.Errorf("Expected the spec value, got: %v", v)
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected a panic for a missing attribute")
		}
	}()
	r.MustAttr("missing")
}

func TestResource_StringAttr(t *testing.T) {
	t.Parallel()

	r := newResource(nil, api.Document{"name": "web", "size_gb": 10})

	if v, err := r.StringAttr("name"); err != nil || v != "web" {
		t.Errorf("Expected web, got %q (%v)", v, err)
	}
	if _, err := r.StringAttr("size_gb"); err == nil {
		t.Error("Expected a type error for a non-string attribute")
	}
}

func TestResource_CreatedFollowsHref(t *testing.T) {
	t.Parallel()

	r := newResource(nil, api.Document{})
	if r.Created() {
		t.Error("Expected a fresh resource to be uncreated")
	}

	r.Info = api.Document{"href": "/v1/servers/42", "status": "running"}
	if !r.Created() {
		t.Error("Expected a resource with an href to count as created")
	}
	if r.Status() != "running" {
		t.Errorf("Expected the observed status, got: %q", r.Status())
	}
}

func TestResource_RefreshReplacesWholesale(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/servers/42", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"href": "/v1/servers/42", "status": "running"}`))
	})

	r := fastResource(newTestClient(t, mux), api.Document{})
	r.Info = api.Document{"href": "/v1/servers/42", "stale_field": "stale"}

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, ok := r.Info["stale_field"]; ok {
		t.Error("Expected the old observed state to be replaced, not merged")
	}
	if r.Status() != "running" {
		t.Errorf("Expected the fresh status, got: %q", r.Status())
	}
}

func TestResource_WaitFor(t *testing.T) {
	t.Parallel()

	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/servers/42", func(w http.ResponseWriter, r *http.Request) {
		polls++
		status := "changing"
		if polls >= 3 {
			status = "running"
		}
		w.Write([]byte(`{"href": "/v1/servers/42", "status": "` + status + `"}`))
	})

	r := fastResource(newTestClient(t, mux), api.Document{})
	r.Info = api.Document{"href": "/v1/servers/42"}

	if err := r.WaitFor(context.Background(), "running", time.Second); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if polls != 3 {
		t.Errorf("Expected 3 polls, got: %d", polls)
	}
}

func TestResource_WaitForNegated(t *testing.T) {
	t.Parallel()

	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/servers/42", func(w http.ResponseWriter, r *http.Request) {
		polls++
		status := "changing"
		if polls >= 2 {
			status = "stopped"
		}
		w.Write([]byte(`{"href": "/v1/servers/42", "status": "` + status + `"}`))
	})

	r := fastResource(newTestClient(t, mux), api.Document{})
	r.Info = api.Document{"href": "/v1/servers/42"}

	// Waiting for "not changing" completes on any other status.
	if err := r.WaitFor(context.Background(), "!changing", time.Second); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if r.Status() != "stopped" {
		t.Errorf("Expected the final status, got: %q", r.Status())
	}
}

func TestResource_WaitForTimeout(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/servers/42", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"href": "/v1/servers/42", "status": "changing"}`))
	})

	r := fastResource(newTestClient(t, mux), api.Document{})
	r.Info = api.Document{"href": "/v1/servers/42"}

	err := r.WaitFor(context.Background(), "running", 20*time.Millisecond)
	if !wait.IsTimeout(err) {
		t.Fatalf("Expected a timeout, got: %v", err)
	}
}

func TestResource_DeleteIdempotent(t *testing.T) {
	t.Parallel()

	deletes := 0
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /v1/servers/42", func(w http.ResponseWriter, r *http.Request) {
		deletes++
		w.WriteHeader(http.StatusNoContent)
	})

	r := fastResource(newTestClient(t, mux), api.Document{})

	// Deleting an uncreated resource is a no-op.
	if err := r.Delete(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if deletes != 0 {
		t.Error("Expected no request for an uncreated resource")
	}

	r.Info = api.Document{"href": "/v1/servers/42"}

	if err := r.Delete(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if r.Created() {
		t.Error("Expected the resource to be uncreated after deletion")
	}

	// A second delete is again a no-op.
	if err := r.Delete(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if deletes != 1 {
		t.Errorf("Expected exactly one DELETE, got: %d", deletes)
	}
}
