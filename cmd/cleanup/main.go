// Package main provides a standalone cleanup utility for acceptance
// test resources.
//
// It sweeps everything the current runner identity has created, which
// is useful after crashed test runs or for CI jobs that periodically
// remove orphaned resources.
//
// Usage:
//
//	# Delete everything tagged with this runner's identity
//	cleanup
//
//	# Only resources created by this process
//	cleanup --process-only
//
//	# Only session-scoped (or function-scoped) resources
//	cleanup --scope session
//
//	# List matching resources without deleting them
//	cleanup --dry-run
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nimbusinfra/acctest/internal/api"
	"github.com/nimbusinfra/acctest/internal/config"
	"github.com/nimbusinfra/acctest/internal/events"
	"github.com/nimbusinfra/acctest/internal/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		scope       string
		processOnly bool
		dryRun      bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:           "cleanup",
		Short:         "Delete resources created by this acceptance test runner",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logging.Setup(level)

			if scope != "" && scope != string(api.ScopeSession) && scope != string(api.ScopeFunction) {
				return fmt.Errorf("invalid scope %q, must be %q or %q",
					scope, api.ScopeSession, api.ScopeFunction)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, scope, processOnly, dryRun)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "limit to resources of one scope (session or function)")
	cmd.Flags().BoolVar(&processOnly, "process-only", false, "limit to resources created by this process")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list matching resources without deleting them")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(ctx context.Context, scope string, processOnly, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	identity := config.NewIdentity(cfg.APIToken)

	// Sibling test workers may still be running; share their request
	// lock and their event log.
	if err := os.MkdirAll(cfg.LocksPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	client, err := api.New(api.Config{
		BaseURL:  cfg.APIURL,
		Token:    cfg.APIToken,
		Runner:   identity.Runner,
		Process:  identity.Process,
		Scope:    api.Scope(scope),
		Zone:     cfg.Zone,
		ReadOnly: dryRun,
		LockPath: filepath.Join(cfg.LocksPath(), identity.Runner+".lock"),
		Sink: events.Sinks{
			events.NewSlogSink(nil),
			events.NewFileSink(cfg.EventsPath, filepath.Join(cfg.LocksPath(), "events.lock"), identity.Process),
		},
		Handlers: api.DefaultHandlers(),
	})
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	slog.Info("sweeping resources", "runner", identity.Runner, "process", identity.Process)

	if dryRun {
		return list(ctx, client, scope, processOnly)
	}

	if err := client.Cleanup(ctx, scope != "", processOnly); err != nil {
		return fmt.Errorf("cleanup finished with errors: %w", err)
	}

	slog.Info("cleanup complete")
	return nil
}

func list(ctx context.Context, client *api.Client, scope string, processOnly bool) error {
	count := 0
	for doc, err := range client.RunnerResources(ctx) {
		if err != nil {
			slog.Warn("failed to list resources", "error", err)
			continue
		}
		tags := doc.Tags()
		if scope != "" && tags["scope"] != scope {
			continue
		}
		if processOnly && tags["process"] != client.Process() {
			continue
		}
		slog.Info("would delete", "name", doc.String("name"), "href", doc.Href(), "tags", tags)
		count++
	}
	slog.Info("dry run complete", "matched", count)
	return nil
}
