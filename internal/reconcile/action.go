// Package reconcile decides what to do about a single declared agent: given
// the current config fingerprint, the lock entry, and optionally the
// remote's observed state, it produces an Action. Decide is a pure function
// with no side effects, so the decision table is testable apart from any
// remote execution.
package reconcile

import "github.com/bianoble/convai/internal/lockfile"

// Kind enumerates the possible reconciliation outcomes.
type Kind int

const (
	// Create: the agent has never been pushed and has no declared remote ID.
	Create Kind = iota
	// Update: the desired config changed since the last recorded push, or a
	// declared remote ID is being adopted.
	Update
	// NoOp: the desired config matches the last recorded push.
	NoOp
	// Conflict: the remote was positively observed to have diverged from the
	// last recorded push. Requires operator intervention; never auto-resolved.
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "create"
	case Update:
		return "update"
	case NoOp:
		return "no-op"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Action is the computed outcome for one agent in one pass. It is ephemeral:
// nothing persists it.
type Action struct {
	Agent       string
	Kind        Kind
	Fingerprint string

	// Prior is the lock entry the decision was based on, nil if none existed.
	Prior *lockfile.Entry

	// Reason is a short operator-facing explanation, set for Conflict and
	// adoption decisions.
	Reason string
}
