// Package resource wraps one cloud resource in its lifecycle state
// machine: build a spec, create it through the tagging client, poll it
// into the desired status, mutate it, and delete it idempotently.
package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimbusinfra/acctest/internal/api"
	"github.com/nimbusinfra/acctest/internal/events"
	"github.com/nimbusinfra/acctest/internal/wait"
)

const (
	// defaultPollInterval paces status polls. Checking too eagerly
	// mostly produces log noise.
	defaultPollInterval = 2500 * time.Millisecond

	defaultWaitTimeout = 60 * time.Second
)

// ErrAttrNotFound is returned when an attribute exists neither in the
// observed nor in the desired state of a resource.
var ErrAttrNotFound = errors.New("attribute does not exist")

// Resource is the base state machine shared by every resource kind.
//
// Spec is the desired state sent to the provider, mutable until
// creation. Info is the observed state, replaced wholesale on creation
// and refresh, and empty before creation and after deletion. A
// resource counts as created exactly when Info carries an href.
type Resource struct {
	Spec api.Document
	Info api.Document

	// PollInterval overrides the default status-poll pacing; tests set
	// it low to keep waits fast.
	PollInterval time.Duration

	client *api.Client
}

func newResource(client *api.Client, spec api.Document) Resource {
	if spec == nil {
		spec = api.Document{}
	}
	return Resource{
		Spec:   spec,
		Info:   api.Document{},
		client: client,
	}
}

// Client returns the API client this resource was built with.
func (r *Resource) Client() *api.Client { return r.client }

// observe runs fn and fires a named operation event with its duration
// and outcome.
func (r *Resource) observe(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.client.Emit(ctx, events.Operation(name, time.Since(start), err, nil))
	return err
}

// Created reports whether the resource exists on the provider side.
func (r *Resource) Created() bool { return r.Info.Href() != "" }

// Href returns the resource's self-link, or "" if uncreated.
func (r *Resource) Href() string { return r.Info.Href() }

// Status returns the observed status field, or "".
func (r *Resource) Status() string { return r.Info.Status() }

// Attr looks an attribute up in the observed state first, then in the
// desired state. The precedence is deliberate: once the provider has
// told us something, their view wins over what we asked for.
func (r *Resource) Attr(name string) (any, error) {
	if v, ok := r.Info[name]; ok {
		return v, nil
	}
	if v, ok := r.Spec[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAttrNotFound, name)
}

// MustAttr is Attr for attributes that are known to exist; it panics
// otherwise. Meant for test assertions on required fields.
func (r *Resource) MustAttr(name string) any {
	v, err := r.Attr(name)
	if err != nil {
		panic(err)
	}
	return v
}

// StringAttr is Attr for string-valued attributes.
func (r *Resource) StringAttr(name string) (string, error) {
	v, err := r.Attr(name)
	if err != nil {
		return "", err
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("attribute %s is %T, not a string", name, v)
	}
	return s, nil
}

// UUID returns the provider-assigned uuid of a created resource.
func (r *Resource) UUID() string { return r.Info.String("uuid") }

// Refresh re-fetches the observed state, replacing it wholesale. It
// never merges partially and is safe to call repeatedly.
func (r *Resource) Refresh(ctx context.Context) error {
	info, err := r.client.Get(ctx, r.Href())
	if err != nil {
		return err
	}

	r.Info = info
	return nil
}

// WaitFor polls Refresh until the observed status equals the target,
// or, for a target prefixed with '!', until it no longer equals it.
// On deadline expiry a Timeout naming the awaited status is returned.
func (r *Resource) WaitFor(ctx context.Context, status string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultWaitTimeout
	}

	target, negate := strings.CutPrefix(status, "!")

	interval := r.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}

	return wait.Poll(ctx, interval, timeout, fmt.Sprintf("%q status", status),
		func(ctx context.Context) (bool, error) {
			if err := r.Refresh(ctx); err != nil {
				return false, err
			}
			return (r.Status() == target) != negate, nil
		})
}

// Delete removes the resource through the client's delete dispatch and
// clears the observed state. Deleting an uncreated (or already
// deleted) resource is a no-op.
func (r *Resource) Delete(ctx context.Context) error {
	if !r.Created() {
		return nil
	}

	if err := r.client.Delete(ctx, r.Href()); err != nil {
		return err
	}

	r.Info = api.Document{}
	return nil
}
