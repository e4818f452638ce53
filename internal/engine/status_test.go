package engine

import (
	"context"
	"testing"

	"github.com/bianoble/convai/internal/reconcile"
)

func TestStatusStates(t *testing.T) {
	p := newProject(t, threeAgents, map[string]string{
		"agent_configs/alpha.yaml": "a: 1\n",
		"agent_configs/beta.yaml":  "b: 2\n",
		// gamma's config missing
	})

	// Sync alpha and beta, then edit beta.
	if _, err := p.engine.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	p.writeConfig(t, "agent_configs/beta.yaml", "b: 3\n")

	report, err := p.engine.Status(Options{})
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(report.Entries) != 3 {
		t.Fatalf("entries = %d", len(report.Entries))
	}

	byAgent := map[string]StatusEntry{}
	for _, e := range report.Entries {
		byAgent[e.Agent] = e
	}

	if byAgent["alpha"].State != StateSynced {
		t.Errorf("alpha state = %s", byAgent["alpha"].State)
	}
	if byAgent["beta"].State != StateChanged {
		t.Errorf("beta state = %s", byAgent["beta"].State)
	}
	if byAgent["gamma"].State != StateBroken {
		t.Errorf("gamma state = %s", byAgent["gamma"].State)
	}
	if byAgent["gamma"].Err == nil {
		t.Error("broken entry should carry its error")
	}
	if !byAgent["alpha"].BaselineCached {
		t.Error("alpha's pushed payload should be cached as the baseline")
	}

	// Status never talks to the remote.
	creates, updates, fetches := p.client.calls()
	if creates != 2 || updates != 0 || fetches != 0 {
		t.Errorf("unexpected remote traffic: %d/%d/%d", creates, updates, fetches)
	}
}

func TestStatusNewAgent(t *testing.T) {
	p := newProject(t, `version: 1
agents:
  - name: fresh
    config: agent_configs/fresh.yaml
`, map[string]string{
		"agent_configs/fresh.yaml": "a: 1\n",
	})

	report, err := p.engine.Status(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Entries[0].State != StateNew {
		t.Errorf("state = %s, want new", report.Entries[0].State)
	}
}

func TestReportCounts(t *testing.T) {
	r := &Report{Results: []AgentResult{
		{Agent: "a", Action: reconcile.Create},
		{Agent: "b", Action: reconcile.Update},
		{Agent: "c", Action: reconcile.NoOp},
		{Agent: "d", Action: reconcile.Update, Err: ErrConflict},
	}}
	created, updated, unchanged, failed := r.Counts()
	if created != 1 || updated != 1 || unchanged != 1 || failed != 1 {
		t.Errorf("counts = %d/%d/%d/%d", created, updated, unchanged, failed)
	}
	if r.Err() == nil {
		t.Error("Err() should be non-nil with failures present")
	}
}
