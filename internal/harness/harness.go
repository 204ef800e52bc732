// Package harness assembles the entry point acceptance tests share: it
// loads the configuration, derives the runner and process identity,
// and connects a tagging API client wired for coordination with
// sibling worker processes on the same machine.
package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nimbusinfra/acctest/internal/api"
	"github.com/nimbusinfra/acctest/internal/config"
	"github.com/nimbusinfra/acctest/internal/events"
	"github.com/nimbusinfra/acctest/internal/resource"
)

// Harness ties the configuration, the identity, and the client of one
// test process together.
type Harness struct {
	Config   *config.Config
	Identity config.Identity
	Client   *api.Client
}

// New loads the configuration and connects a client for the given
// fixture scope. Everything the client creates is tagged with the
// derived identity, so a later sweep can find it again.
func New(scope api.Scope) (*Harness, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	identity := config.NewIdentity(cfg.APIToken)

	if err := os.MkdirAll(cfg.LocksPath(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	client, err := api.New(api.Config{
		BaseURL:  cfg.APIURL,
		Token:    cfg.APIToken,
		Runner:   identity.Runner,
		Process:  identity.Process,
		Scope:    scope,
		Zone:     cfg.Zone,
		LockPath: filepath.Join(cfg.LocksPath(), identity.Runner+".lock"),
		Sink: events.Sinks{
			events.NewSlogSink(nil),
			events.NewFileSink(cfg.EventsPath, filepath.Join(cfg.LocksPath(), "events.lock"), identity.Process),
		},
		Handlers: api.DefaultHandlers(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return &Harness{Config: cfg, Identity: identity, Client: client}, nil
}

// ServerFactory returns a create-on-call server factory seeded with
// the configured zone, image, and flavor. Overrides passed to the
// factory win over the configured defaults.
func (h *Harness) ServerFactory(sshKeys []string) func(ctx context.Context, overrides api.Document) (*resource.Server, error) {
	defaults := resource.DefaultServerSpec(
		h.Config.Zone, h.Config.DefaultImage, h.Config.DefaultFlavor, sshKeys)

	return resource.Factory(func(spec api.Document) *resource.Server {
		return resource.NewServer(h.Client, spec,
			resource.WithStartTimeout(h.Config.ServerStartTimeout))
	}, defaults)
}

// CreateServers invokes the factory count times in parallel, bounded
// by the configured creation concurrency, and returns the servers in
// creation order. On failure the partial results are returned so the
// caller can tear down the siblings that did come up.
func (h *Harness) CreateServers(ctx context.Context, count int, create func(ctx context.Context, overrides api.Document) (*resource.Server, error)) ([]*resource.Server, error) {
	return resource.NInParallel(ctx, h.Config.CreationConcurrency,
		func(ctx context.Context) (*resource.Server, error) {
			return create(ctx, nil)
		}, count)
}

// Cleanup deletes every resource this process created in this scope.
// Fixture teardown calls it once per scope.
func (h *Harness) Cleanup(ctx context.Context) error {
	return h.Client.Cleanup(ctx, true, true)
}
