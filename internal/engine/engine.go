// Package engine orchestrates one reconciliation pass: it walks the
// manifest in declaration order, decides an action per agent, executes it
// against the remote client, and records each success in the lock store
// before moving on. One agent's failure never aborts the pass.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bianoble/convai/internal/fingerprint"
	"github.com/bianoble/convai/internal/lockfile"
	"github.com/bianoble/convai/internal/manifest"
	"github.com/bianoble/convai/internal/reconcile"
	"github.com/bianoble/convai/internal/remote"
	"github.com/bianoble/convai/internal/snapshot"
)

// ErrConflict marks an agent whose remote state diverged from the last
// recorded push. Conflicts are reported, never auto-resolved.
var ErrConflict = errors.New("conflict: remote state diverged")

// Engine runs reconciliation passes for one project checkout.
type Engine struct {
	Root         string
	ManifestPath string
	LockPath     string
	Client       remote.Client
	Snapshots    *snapshot.Store
	Logger       *slog.Logger

	now func() time.Time // for testing
}

// Options configures one pass.
type Options struct {
	// DryRun computes and reports actions without mutating the remote or
	// the lock store. Drift probes (CheckDrift) are read-only and still
	// run, so the plan matches what a live pass would decide.
	DryRun bool

	// Environment processes only declarations with a matching environment
	// tag. Empty processes everything.
	Environment string

	// CheckDrift fetches remote state before deciding, turning out-of-band
	// remote edits into Conflict results. Off by default: the engine then
	// optimistically overwrites, trading drift detection for speed.
	CheckDrift bool
}

// Run executes one reconciliation pass. The manifest is re-read on every
// call so watch cycles pick up added or removed declarations. Agent-local
// failures land in the report; manifest and lock-store failures abort the
// pass and are returned as errors.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	m, err := manifest.Load(e.ManifestPath)
	if err != nil {
		return nil, err
	}

	store, err := lockfile.Open(e.LockPath)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, decl := range m.Agents {
		if err := ctx.Err(); err != nil {
			// Cooperative cancellation between agents: everything decided so
			// far is already durably recorded.
			return report, err
		}
		if opts.Environment != "" && decl.Environment != opts.Environment {
			continue
		}

		res := e.reconcileAgent(ctx, m, store, decl, opts)
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// TrackedPaths returns the manifest path plus every declared config path.
// The watch loop calls this after each pass so manifest edits adjust the
// watch set without a restart.
func (e *Engine) TrackedPaths() ([]string, error) {
	m, err := manifest.Load(e.ManifestPath)
	if err != nil {
		return nil, err
	}
	return append([]string{filepath.Clean(e.ManifestPath)}, m.ConfigPaths(e.Root)...), nil
}

func (e *Engine) reconcileAgent(ctx context.Context, m *manifest.Manifest, store *lockfile.Store, decl manifest.AgentDeclaration, opts Options) AgentResult {
	env := decl.Environment
	if env == "" {
		env = lockfile.DefaultEnvironment
	}
	res := AgentResult{Agent: decl.Name, Environment: env, Planned: opts.DryRun}

	doc, err := m.ResolveConfig(e.Root, decl)
	if err != nil {
		res.Err = err
		return res
	}

	payload, err := fingerprint.Canonical(doc)
	if err != nil {
		res.Err = err
		return res
	}
	res.Fingerprint = fingerprint.SumBytes(payload)

	var lockEntry *lockfile.Entry
	if entry, ok := store.Get(decl.Name, env); ok {
		lockEntry = &entry
	}

	// The remote stores the pushed form of the document (environment tag
	// and display name included), so that form's fingerprint is what remote
	// comparisons and the lock's pushed baseline use.
	name := displayName(decl, doc)
	pushDoc := PushDocument(doc, decl.Environment)
	pushedFP, err := fingerprint.Compute(remote.PushBody(pushDoc, name))
	if err != nil {
		res.Err = err
		return res
	}

	act := reconcile.Decide(reconcile.Input{
		Declaration:       decl,
		Fingerprint:       res.Fingerprint,
		PushedFingerprint: pushedFP,
		Lock:              lockEntry,
		Remote:            e.probeRemote(ctx, decl, lockEntry, opts),
	})
	res.Action = act.Kind
	res.Reason = act.Reason

	if lockEntry != nil {
		res.RemoteID = lockEntry.ID
	} else if decl.ID != "" {
		res.RemoteID = decl.ID
	}

	// A conflict is decided, not executed, so it is reported the same way
	// in a dry run as in a live pass.
	if act.Kind == reconcile.Conflict {
		res.Err = fmt.Errorf("%w: %s", ErrConflict, act.Reason)
		return res
	}
	if opts.DryRun {
		return res
	}

	switch act.Kind {
	case reconcile.NoOp:
		return res
	case reconcile.Create:
		id, err := e.Client.CreateAgent(ctx, name, pushDoc)
		if err != nil {
			res.Err = fmt.Errorf("creating agent: %w", err)
			return res
		}
		res.RemoteID = id
	case reconcile.Update:
		if res.RemoteID == "" {
			res.Err = fmt.Errorf("no remote id for agent '%s'", decl.Name)
			return res
		}
		if err := e.Client.UpdateAgent(ctx, res.RemoteID, name, pushDoc); err != nil {
			res.Err = fmt.Errorf("updating agent: %w", err)
			return res
		}
	}

	// Record the push durably before moving to the next agent, so a crash
	// partway through a pass leaves already-synced agents synced.
	store.Upsert(decl.Name, env, lockfile.Entry{
		ID:         res.RemoteID,
		Hash:       res.Fingerprint,
		PushedHash: pushedFP,
		SyncedAt:   e.clock()(),
	})
	if err := store.Save(); err != nil {
		res.Err = fmt.Errorf("saving lock store: %w", err)
		return res
	}

	if e.Snapshots != nil {
		if err := e.Snapshots.Put(res.Fingerprint, payload); err != nil {
			e.logger().Warn("storing config snapshot failed", "agent", decl.Name, "error", err)
		}
	}
	return res
}

// probeRemote fetches the remote's current fingerprint when drift checking
// is enabled. Probing is best-effort: on any failure other than a definite
// not-found the pass proceeds without a probe, i.e. optimistically. Probes
// are read-only and therefore run in dry-run passes too.
func (e *Engine) probeRemote(ctx context.Context, decl manifest.AgentDeclaration, lockEntry *lockfile.Entry, opts Options) *reconcile.RemoteProbe {
	if !opts.CheckDrift {
		return nil
	}
	if e.Client == nil {
		e.logger().Warn("drift check requested but no remote client is configured; plan may miss conflicts", "agent", decl.Name)
		return nil
	}

	id := decl.ID
	if lockEntry != nil {
		id = lockEntry.ID
	}
	if id == "" {
		return nil
	}

	state, err := e.Client.GetAgent(ctx, id)
	if errors.Is(err, remote.ErrNotFound) {
		return &reconcile.RemoteProbe{Exists: false}
	}
	if err != nil {
		e.logger().Warn("drift probe failed, proceeding optimistically", "agent", decl.Name, "error", err)
		return nil
	}

	fp, err := fingerprint.Compute(state.Config)
	if err != nil {
		e.logger().Warn("remote state not fingerprintable, proceeding optimistically", "agent", decl.Name, "error", err)
		return nil
	}
	return &reconcile.RemoteProbe{Exists: true, Fingerprint: fp}
}

// displayName prefers the name inside the config document, matching what
// the remote will show; the declaration name is the fallback.
func displayName(decl manifest.AgentDeclaration, doc map[string]any) string {
	if name, ok := doc["name"].(string); ok && name != "" {
		return name
	}
	return decl.Name
}

// PushDocument returns the document to send to the remote. When the
// declaration carries an environment tag it is appended to the document's
// tags for the push only: change detection fingerprints the document as
// declared, so tagging never causes spurious diffs. Every code path that
// creates or updates a remote agent shapes its payload through this
// function, so all of them produce the same remote state.
func PushDocument(doc map[string]any, environment string) map[string]any {
	if environment == "" {
		return doc
	}

	tags, _ := doc["tags"].([]any)
	for _, t := range tags {
		if t == environment {
			return doc
		}
	}

	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	out["tags"] = append(append([]any{}, tags...), environment)
	return out
}

func (e *Engine) clock() func() time.Time {
	if e.now != nil {
		return e.now
	}
	return time.Now
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
