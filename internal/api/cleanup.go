package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimbusinfra/acctest/internal/events"
)

// CleanupError accumulates per-resource failures from a cleanup sweep.
// The sweep always runs to completion; callers see every failure, not
// just the first.
type CleanupError struct {
	Errors []error
}

func (e *CleanupError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cleanup encountered %d errors: %v", len(e.Errors), errors.Join(e.Errors...))
}

func (e *CleanupError) Unwrap() []error {
	return e.Errors
}

func (e *CleanupError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *CleanupError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Cleanup deletes resources created by this runner, walking every
// collection endpoint in deletion-safe order.
//
// With both limits set, only resources of this process and scope are
// deleted (the normal per-fixture sweep). With both unset, everything
// the runner ever created goes. That is the crash-recovery sweep run at
// session boundaries, which also collects leftovers of killed workers.
//
// A single resource failing to delete never aborts the sweep; all
// failures are returned together as a CleanupError afterwards.
func (c *Client) Cleanup(ctx context.Context, limitToScope, limitToProcess bool) error {
	start := time.Now()
	sweepErr := &CleanupError{}
	deleted := 0

	for doc, err := range c.RunnerResources(ctx) {
		if err != nil {
			sweepErr.Add(err)
			continue
		}

		tags := doc.Tags()

		// The collection filter already scoped us to this runner; a
		// mismatch here means the filter is broken, and deleting would
		// touch someone else's resources.
		if tags["runner"] != c.cfg.Runner {
			sweepErr.Add(fmt.Errorf("unexpected runner tag %q on %s", tags["runner"], doc.Href()))
			continue
		}

		if limitToScope && tags["scope"] != string(c.cfg.Scope) {
			continue
		}
		if limitToProcess && tags["process"] != c.cfg.Process {
			continue
		}

		if err := c.Delete(ctx, doc.Href()); err != nil {
			sweepErr.Add(fmt.Errorf("failed to delete %s: %w", doc.Href(), err))
			continue
		}
		deleted++
	}

	var failed error
	if sweepErr.HasErrors() {
		failed = sweepErr
	}

	c.sink.Record(ctx, events.Operation("cleanup.sweep", time.Since(start), failed, map[string]any{
		"deleted":          deleted,
		"limit_to_scope":   limitToScope,
		"limit_to_process": limitToProcess,
	}))

	return failed
}
