package engine

import (
	"fmt"

	"github.com/bianoble/convai/internal/reconcile"
)

// AgentResult records the outcome for one agent in one pass.
type AgentResult struct {
	Agent       string
	Environment string
	Action      reconcile.Kind
	Fingerprint string

	// RemoteID is the remote identifier the agent ended up with (set on
	// successful create/update/adopt).
	RemoteID string

	// Planned is true in dry-run mode: the action was computed but not
	// executed.
	Planned bool

	// Reason carries the reconciler's explanation, when it gave one.
	Reason string

	// Err is the per-agent failure, nil on success. Conflicts are reported
	// here so the operator sees them in the failure count.
	Err error
}

// Failed reports whether this agent's reconciliation failed.
func (r AgentResult) Failed() bool {
	return r.Err != nil
}

// Report is the artifact of one orchestrator pass, consumed by both the
// one-shot sync command and each watch cycle.
type Report struct {
	Results []AgentResult
}

// Failures returns the results that failed.
func (r *Report) Failures() []AgentResult {
	var failed []AgentResult
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err returns a summary error if any agent failed, nil otherwise.
func (r *Report) Err() error {
	if n := len(r.Failures()); n > 0 {
		return fmt.Errorf("%d agent(s) failed", n)
	}
	return nil
}

// Counts tallies results by action for summary output. Failed results count
// toward failed regardless of their action.
func (r *Report) Counts() (created, updated, unchanged, failed int) {
	for _, res := range r.Results {
		if res.Failed() {
			failed++
			continue
		}
		switch res.Action {
		case reconcile.Create:
			created++
		case reconcile.Update:
			updated++
		case reconcile.NoOp:
			unchanged++
		}
	}
	return
}
