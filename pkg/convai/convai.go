// Package convai provides the public Go library API for embedding the
// agent reconciliation engine in other programs.
//
// # Basic Usage
//
//	client, err := convai.New(convai.Options{
//	    ProjectRoot: "/path/to/project",
//	    Remote:      remoteClient,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// One reconciliation pass
//	report, err := client.Sync(ctx, convai.SyncOptions{})
//
//	// Continuous reconciliation
//	err = client.Watch(ctx, convai.WatchOptions{Interval: time.Minute})
package convai

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bianoble/convai/internal/engine"
	"github.com/bianoble/convai/internal/remote"
	"github.com/bianoble/convai/internal/snapshot"
	"github.com/bianoble/convai/internal/watch"
)

// Options configures a convai client.
type Options struct {
	// ProjectRoot is the directory containing agents.yaml.
	// If empty, defaults to the directory containing ManifestPath.
	ProjectRoot string

	// ManifestPath is the path to the manifest. Default: "agents.yaml".
	ManifestPath string

	// LockPath is the path to the lock file. Default: "convai.lock".
	LockPath string

	// SnapshotDir stores pushed payloads. If empty, uses the default
	// (~/.cache/convai).
	SnapshotDir string

	// Remote is the agents API client. Required for Sync and Watch; Status
	// works without one.
	Remote remote.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// SyncOptions configures one reconciliation pass.
type SyncOptions struct {
	DryRun      bool
	Environment string
	CheckDrift  bool
}

// WatchOptions configures continuous reconciliation.
type WatchOptions struct {
	// Interval between timer-driven passes. Zero disables the ticker when
	// file events are enabled, otherwise a 30s default applies.
	Interval time.Duration

	// Debounce for file-change events. Zero means 500ms.
	Debounce time.Duration

	// DisableFSEvents turns off the filesystem trigger, leaving only the
	// interval timer.
	DisableFSEvents bool

	Environment string
	CheckDrift  bool
}

// Client is the main entry point for the convai library.
type Client struct {
	eng *engine.Engine
}

// New creates a convai Client.
func New(opts Options) (*Client, error) {
	if opts.ManifestPath == "" {
		opts.ManifestPath = "agents.yaml"
	}
	if opts.LockPath == "" {
		opts.LockPath = "convai.lock"
	}

	root := opts.ProjectRoot
	if root == "" {
		abs, err := filepath.Abs(opts.ManifestPath)
		if err != nil {
			return nil, fmt.Errorf("resolving manifest path: %w", err)
		}
		root = filepath.Dir(abs)
	}
	if !filepath.IsAbs(opts.ManifestPath) {
		opts.ManifestPath = filepath.Join(root, opts.ManifestPath)
	}
	if !filepath.IsAbs(opts.LockPath) {
		opts.LockPath = filepath.Join(root, opts.LockPath)
	}

	snapDir := opts.SnapshotDir
	if snapDir == "" {
		snapDir = snapshot.DefaultDir()
	}
	snaps, err := snapshot.New(snapDir)
	if err != nil {
		return nil, fmt.Errorf("initializing snapshot store: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		eng: &engine.Engine{
			Root:         root,
			ManifestPath: opts.ManifestPath,
			LockPath:     opts.LockPath,
			Client:       opts.Remote,
			Snapshots:    snaps,
			Logger:       logger,
		},
	}, nil
}

// Sync runs one reconciliation pass and returns its report.
func (c *Client) Sync(ctx context.Context, opts SyncOptions) (*Report, error) {
	if c.eng.Client == nil && !opts.DryRun {
		return nil, fmt.Errorf("no remote client configured")
	}
	return c.eng.Run(ctx, engine.Options{
		DryRun:      opts.DryRun,
		Environment: opts.Environment,
		CheckDrift:  opts.CheckDrift,
	})
}

// Status reports each declared agent's local state without contacting the
// remote.
func (c *Client) Status(opts SyncOptions) (*StatusReport, error) {
	return c.eng.Status(engine.Options{Environment: opts.Environment})
}

// Watch reconciles continuously until the context is cancelled. Each
// cycle's failures are logged and the loop continues.
func (c *Client) Watch(ctx context.Context, opts WatchOptions) error {
	if c.eng.Client == nil {
		return fmt.Errorf("no remote client configured")
	}

	w := &watch.Watcher{
		Interval: opts.Interval,
		Debounce: opts.Debounce,
		FSEvents: !opts.DisableFSEvents,
		Logger:   c.eng.Logger,
		Run: func(ctx context.Context) ([]string, error) {
			report, err := c.eng.Run(ctx, engine.Options{
				Environment: opts.Environment,
				CheckDrift:  opts.CheckDrift,
			})
			if err != nil {
				return nil, err
			}
			for _, failure := range report.Failures() {
				c.eng.Logger.Warn("agent failed", "agent", failure.Agent, "error", failure.Err)
			}
			return c.eng.TrackedPaths()
		},
	}
	return w.Start(ctx)
}
