package engine

import (
	"github.com/bianoble/convai/internal/fingerprint"
	"github.com/bianoble/convai/internal/lockfile"
	"github.com/bianoble/convai/internal/manifest"
)

// AgentState classifies an agent's local standing without any remote call.
type AgentState string

const (
	// StateSynced: the declared config matches the last recorded push.
	StateSynced AgentState = "synced"
	// StateChanged: the declared config differs from the last recorded push.
	StateChanged AgentState = "changed"
	// StateNew: no lock entry exists yet.
	StateNew AgentState = "new"
	// StateBroken: the config document is missing or malformed.
	StateBroken AgentState = "broken"
)

// StatusEntry is one agent's row in a status report.
type StatusEntry struct {
	Agent       string
	Environment string
	RemoteID    string
	Fingerprint string
	State       AgentState

	// BaselineCached reports whether the last-pushed payload is available
	// in the snapshot store for comparison.
	BaselineCached bool

	Err error
}

// StatusReport summarizes every declared agent.
type StatusReport struct {
	Entries []StatusEntry
}

// Status computes the local state of every declared agent: fingerprints are
// compared against the lock store only. The remote is never contacted.
func (e *Engine) Status(opts Options) (*StatusReport, error) {
	m, err := manifest.Load(e.ManifestPath)
	if err != nil {
		return nil, err
	}
	store, err := lockfile.Open(e.LockPath)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{}
	for _, decl := range m.Agents {
		if opts.Environment != "" && decl.Environment != opts.Environment {
			continue
		}
		report.Entries = append(report.Entries, e.statusEntry(m, store, decl))
	}
	return report, nil
}

func (e *Engine) statusEntry(m *manifest.Manifest, store *lockfile.Store, decl manifest.AgentDeclaration) StatusEntry {
	env := decl.Environment
	if env == "" {
		env = lockfile.DefaultEnvironment
	}
	entry := StatusEntry{Agent: decl.Name, Environment: env, RemoteID: decl.ID}

	doc, err := m.ResolveConfig(e.Root, decl)
	if err != nil {
		entry.State = StateBroken
		entry.Err = err
		return entry
	}
	fp, err := fingerprint.Compute(doc)
	if err != nil {
		entry.State = StateBroken
		entry.Err = err
		return entry
	}
	entry.Fingerprint = fp

	locked, ok := store.Get(decl.Name, env)
	if !ok {
		entry.State = StateNew
		return entry
	}
	entry.RemoteID = locked.ID
	if e.Snapshots != nil {
		entry.BaselineCached = e.Snapshots.Has(locked.Hash)
	}

	if locked.Hash == fp {
		entry.State = StateSynced
	} else {
		entry.State = StateChanged
	}
	return entry
}
