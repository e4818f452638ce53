package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bianoble/convai/internal/engine"
	"github.com/bianoble/convai/internal/manifest"
	"github.com/bianoble/convai/internal/reconcile"
	"github.com/bianoble/convai/internal/remote"
	"github.com/bianoble/convai/internal/snapshot"
)

// projectRoot returns the directory containing the manifest.
func projectRoot() (string, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return "", fmt.Errorf("resolving manifest path: %w", err)
	}
	return filepath.Dir(abs), nil
}

// lockAbsPath resolves the lock file path relative to the project root.
func lockAbsPath(root string) string {
	if filepath.IsAbs(lockPath) {
		return lockPath
	}
	return filepath.Join(root, lockPath)
}

// loadManifest reads and validates the manifest.
func loadManifest() (*manifest.Manifest, error) {
	return manifest.Load(manifestPath)
}

// newEngine assembles an engine for the current checkout. The remote client
// is built from the environment credential unless needsRemote is false
// (dry-run and status work offline).
func newEngine(needsRemote bool) (*engine.Engine, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}

	var client remote.Client
	if needsRemote {
		c, err := remote.NewFromEnv(remote.WithLogger(log))
		if err != nil {
			return nil, err
		}
		client = c
	}

	snaps, err := snapshot.New(snapshot.DefaultDir())
	if err != nil {
		return nil, fmt.Errorf("initializing snapshot store: %w", err)
	}

	absManifest, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path: %w", err)
	}
	return &engine.Engine{
		Root:         root,
		ManifestPath: absManifest,
		LockPath:     lockAbsPath(root),
		Client:       client,
		Snapshots:    snaps,
		Logger:       log,
	}, nil
}

// safeName converts an agent name into a config file name.
func safeName(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.NewReplacer("[", "", "]", "", "/", "_").Replace(s)
	return s
}

// printReport writes per-agent outcomes and a summary line.
func printReport(report *engine.Report, dryRun bool) {
	for _, res := range report.Results {
		switch {
		case res.Failed():
			errorf("%s: %s: %v", res.Agent, res.Action, res.Err)
		case dryRun:
			info("  would %-7s %s", res.Action, res.Agent)
		case res.Action == reconcile.NoOp:
			detail("  %-9s %s", res.Action, res.Agent)
		default:
			line := fmt.Sprintf("  %-9s %s", res.Action, res.Agent)
			if res.RemoteID != "" {
				line += fmt.Sprintf("  (id: %s)", res.RemoteID)
			}
			info("%s", line)
		}
	}

	info("")
	info("%s", summaryLine(report, dryRun))
}

// summaryLine renders the pass summary. A dry run is labeled as a plan:
// nothing was created or updated, only decided.
func summaryLine(report *engine.Report, dryRun bool) string {
	created, updated, unchanged, failed := report.Counts()
	if dryRun {
		return fmt.Sprintf("Plan: would create %d, update %d, leave %d unchanged (%d failed).",
			created, updated, unchanged, failed)
	}
	return fmt.Sprintf("Sync complete: %d created, %d updated, %d unchanged, %d failed.",
		created, updated, unchanged, failed)
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
