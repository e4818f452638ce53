package reconcile

import (
	"fmt"

	"github.com/bianoble/convai/internal/lockfile"
	"github.com/bianoble/convai/internal/manifest"
)

// RemoteProbe is the observed remote state, supplied only when drift
// checking is enabled. Probing is a best-effort freshness check, never
// required for correctness: the lock fingerprint alone answers "did the
// desired config change since we last pushed".
type RemoteProbe struct {
	// Exists reports whether the remote agent was found.
	Exists bool

	// Fingerprint is the canonical fingerprint of the remote's current
	// configuration. Empty when Exists is false.
	Fingerprint string
}

// Input carries everything Decide needs for one agent.
type Input struct {
	Declaration manifest.AgentDeclaration

	// Fingerprint of the currently declared config document.
	Fingerprint string

	// PushedFingerprint is the fingerprint of the current document as it
	// would be sent to the remote (display name and environment tag
	// included). The remote stores that pushed form, so comparisons against
	// observed remote state use this, never Fingerprint. Falls back to
	// Fingerprint when empty.
	PushedFingerprint string

	// Lock is the recorded last-synced state, nil if never synced.
	Lock *lockfile.Entry

	// Remote is the observed remote state, nil when unknown (the default:
	// remote reads are optional, and without one the engine optimistically
	// overwrites rather than detecting concurrent external edits).
	Remote *RemoteProbe
}

// Decide computes the Action for one agent.
//
// The lock fingerprint, not the remote's current content, is the basis for
// change detection: this keeps repeated passes idempotent without a remote
// read per agent. Conflict is raised only when a remote probe positively
// shows the remote diverged from the last recorded push; with no probe the
// engine proceeds optimistically and overwrites, a deliberate trade-off
// favoring velocity over concurrent-edit detection.
func Decide(in Input) Action {
	act := Action{
		Agent:       in.Declaration.Name,
		Fingerprint: in.Fingerprint,
		Prior:       in.Lock,
	}

	if in.Remote != nil {
		if in.Lock != nil {
			if !in.Remote.Exists {
				act.Kind = Conflict
				act.Reason = "remote agent is gone but a lock entry exists"
				return act
			}
			// The remote holds the pushed form of the last sync, so the
			// baseline is the recorded pushed fingerprint. Entries written
			// before PushedHash existed fall back to the declared hash.
			baseline := in.Lock.PushedHash
			if baseline == "" {
				baseline = in.Lock.Hash
			}
			if in.Remote.Fingerprint != baseline {
				act.Kind = Conflict
				act.Reason = "remote config was modified since the last recorded push"
				return act
			}
		} else if in.Declaration.ID != "" && in.Remote.Exists {
			current := in.PushedFingerprint
			if current == "" {
				current = in.Fingerprint
			}
			if in.Remote.Fingerprint != current {
				act.Kind = Conflict
				act.Reason = fmt.Sprintf("remote agent %s does not match the declared config and no lock entry exists", in.Declaration.ID)
				return act
			}
		}
	}

	switch {
	case in.Lock != nil && in.Lock.Hash == in.Fingerprint:
		act.Kind = NoOp
	case in.Lock != nil:
		act.Kind = Update
	case in.Declaration.ID != "":
		// Adopt: the declared ID is authoritative. Push the current config
		// and record a lock entry on success.
		act.Kind = Update
		act.Reason = fmt.Sprintf("adopting remote agent %s", in.Declaration.ID)
	default:
		act.Kind = Create
	}
	return act
}
