package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bianoble/convai/internal/lockfile"
	"github.com/bianoble/convai/internal/reconcile"
	"github.com/bianoble/convai/internal/remote"
	"github.com/bianoble/convai/internal/snapshot"
)

// fakeClient is a test double for the remote agents API. It records every
// call, stores agent state the way the API does (pushed body with the
// display name set), and can be primed with per-agent failures or
// out-of-band state edits.
type fakeClient struct {
	mu      sync.Mutex
	nextID  int
	creates []string
	updates []string
	fetches []string

	failCreate map[string]error
	failUpdate map[string]error
	states     map[string]*remote.AgentState
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		failCreate: map[string]error{},
		failUpdate: map[string]error{},
		states:     map[string]*remote.AgentState{},
	}
}

func (f *fakeClient) CreateAgent(ctx context.Context, name string, config map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCreate[name]; err != nil {
		return "", err
	}
	f.nextID++
	id := fmt.Sprintf("agent_%d", f.nextID)
	f.creates = append(f.creates, name)
	f.states[id] = &remote.AgentState{ID: id, Name: name, Config: remote.PushBody(config, name)}
	return id, nil
}

func (f *fakeClient) UpdateAgent(ctx context.Context, id, name string, config map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failUpdate[id]; err != nil {
		return err
	}
	f.updates = append(f.updates, id)
	f.states[id] = &remote.AgentState{ID: id, Name: name, Config: remote.PushBody(config, name)}
	return nil
}

func (f *fakeClient) GetAgent(ctx context.Context, id string) (*remote.AgentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, id)
	state, ok := f.states[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return state, nil
}

func (f *fakeClient) DeleteAgent(ctx context.Context, id string) error {
	return nil
}

func (f *fakeClient) calls() (creates, updates, fetches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates), len(f.updates), len(f.fetches)
}

// project scaffolds a manifest plus config documents in a temp dir and
// returns a ready engine.
type project struct {
	root   string
	engine *Engine
	client *fakeClient
}

func newProject(t *testing.T, manifestYAML string, configs map[string]string) *project {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "agents.yaml"), []byte(manifestYAML), 0644); err != nil {
		t.Fatal(err)
	}
	for rel, content := range configs {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	snaps, err := snapshot.New(filepath.Join(root, ".snapshots"))
	if err != nil {
		t.Fatal(err)
	}
	client := newFakeClient()
	return &project{
		root:   root,
		client: client,
		engine: &Engine{
			Root:         root,
			ManifestPath: filepath.Join(root, "agents.yaml"),
			LockPath:     filepath.Join(root, "convai.lock"),
			Client:       client,
			Snapshots:    snaps,
			Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
			now:          func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
		},
	}
}

func (p *project) writeConfig(t *testing.T, rel, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(p.root, rel), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func (p *project) lockEntry(t *testing.T, name, env string) (lockfile.Entry, bool) {
	t.Helper()
	store, err := lockfile.Open(p.engine.LockPath)
	if err != nil {
		t.Fatal(err)
	}
	return store.Get(name, env)
}

const threeAgents = `version: 1
agents:
  - name: alpha
    config: agent_configs/alpha.yaml
  - name: beta
    config: agent_configs/beta.yaml
  - name: gamma
    config: agent_configs/gamma.yaml
`

func TestCreateThenUpdate(t *testing.T) {
	p := newProject(t, `version: 1
agents:
  - name: support
    config: agent_configs/support.yaml
`, map[string]string{
		"agent_configs/support.yaml": "conversation_config:\n  temperature: 0.7\n",
	})

	report, err := p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Action != reconcile.Create {
		t.Fatalf("first pass results: %+v", report.Results)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report.Err: %v", err)
	}

	entry, ok := p.lockEntry(t, "support", lockfile.DefaultEnvironment)
	if !ok {
		t.Fatal("lock entry missing after create")
	}
	if entry.ID != report.Results[0].RemoteID || entry.Hash != report.Results[0].Fingerprint {
		t.Errorf("lock entry = %+v, result = %+v", entry, report.Results[0])
	}

	// Edit the config and run again: must update, not re-create.
	p.writeConfig(t, "agent_configs/support.yaml", "conversation_config:\n  temperature: 0.9\n")
	report, err = p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Results[0].Action != reconcile.Update {
		t.Errorf("second pass action = %s, want update", report.Results[0].Action)
	}
	creates, updates, _ := p.client.calls()
	if creates != 1 || updates != 1 {
		t.Errorf("creates=%d updates=%d", creates, updates)
	}
}

func TestSecondPassIsNoOp(t *testing.T) {
	p := newProject(t, threeAgents, map[string]string{
		"agent_configs/alpha.yaml": "a: 1\n",
		"agent_configs/beta.yaml":  "b: 2\n",
		"agent_configs/gamma.yaml": "c: 3\n",
	})

	if _, err := p.engine.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	lockBefore, err := os.ReadFile(p.engine.LockPath)
	if err != nil {
		t.Fatal(err)
	}

	report, err := p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range report.Results {
		if res.Action != reconcile.NoOp {
			t.Errorf("agent %s second-pass action = %s, want no-op", res.Agent, res.Action)
		}
	}

	creates, updates, _ := p.client.calls()
	if creates != 3 || updates != 0 {
		t.Errorf("remote mutated on idempotent pass: creates=%d updates=%d", creates, updates)
	}
	lockAfter, _ := os.ReadFile(p.engine.LockPath)
	if string(lockBefore) != string(lockAfter) {
		t.Error("lock file changed on a no-op pass")
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	p := newProject(t, threeAgents, map[string]string{
		"agent_configs/alpha.yaml": "a: 1\n",
		// beta's config intentionally missing
		"agent_configs/gamma.yaml": "c: 3\n",
	})

	report, err := p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("pass aborted instead of isolating the failure: %v", err)
	}
	if len(report.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(report.Results))
	}

	if report.Results[0].Failed() || report.Results[2].Failed() {
		t.Error("healthy agents failed")
	}
	if !report.Results[1].Failed() {
		t.Fatal("beta should have failed")
	}
	if report.Results[1].Agent != "beta" {
		t.Errorf("failed agent = %s", report.Results[1].Agent)
	}

	if _, ok := p.lockEntry(t, "alpha", lockfile.DefaultEnvironment); !ok {
		t.Error("alpha not recorded despite succeeding")
	}
	if _, ok := p.lockEntry(t, "gamma", lockfile.DefaultEnvironment); !ok {
		t.Error("gamma not recorded despite succeeding")
	}
	if report.Err() == nil {
		t.Error("report should summarize the failure")
	}
}

func TestDryRunPurity(t *testing.T) {
	p := newProject(t, threeAgents, map[string]string{
		"agent_configs/alpha.yaml": "a: 1\n",
		"agent_configs/beta.yaml":  "b: 2\n",
		"agent_configs/gamma.yaml": "c: 3\n",
	})

	report, err := p.engine.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range report.Results {
		if !res.Planned {
			t.Errorf("agent %s result not marked planned", res.Agent)
		}
		if res.Action != reconcile.Create {
			t.Errorf("agent %s planned action = %s", res.Agent, res.Action)
		}
	}

	creates, updates, fetches := p.client.calls()
	if creates+updates+fetches != 0 {
		t.Error("dry run called the remote client")
	}
	if _, err := os.Stat(p.engine.LockPath); !os.IsNotExist(err) {
		t.Error("dry run wrote the lock file")
	}
}

func TestPerAgentDurability(t *testing.T) {
	p := newProject(t, threeAgents, map[string]string{
		"agent_configs/alpha.yaml": "a: 1\n",
		"agent_configs/beta.yaml":  "b: 2\n",
		"agent_configs/gamma.yaml": "c: 3\n",
	})
	// gamma's create fails mid-pass; alpha and beta must already be durable.
	p.client.failCreate["gamma"] = remote.ErrUnreachable

	report, err := p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures()) != 1 {
		t.Fatalf("failures = %+v", report.Failures())
	}

	for _, name := range []string{"alpha", "beta"} {
		if _, ok := p.lockEntry(t, name, lockfile.DefaultEnvironment); !ok {
			t.Errorf("%s lock entry not durable after mid-pass failure", name)
		}
	}

	// Re-run with gamma fixed: alpha and beta are no-ops, not re-creates.
	delete(p.client.failCreate, "gamma")
	report, err = p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range report.Results {
		switch res.Agent {
		case "gamma":
			if res.Action != reconcile.Create {
				t.Errorf("gamma action = %s, want create", res.Action)
			}
		default:
			if res.Action != reconcile.NoOp {
				t.Errorf("%s action = %s, want no-op", res.Agent, res.Action)
			}
		}
	}
}

func TestEnvironmentFilter(t *testing.T) {
	p := newProject(t, `version: 1
agents:
  - name: prod-bot
    config: agent_configs/prod.yaml
    environment: prod
  - name: staging-bot
    config: agent_configs/staging.yaml
    environment: staging
`, map[string]string{
		"agent_configs/prod.yaml":    "a: 1\n",
		"agent_configs/staging.yaml": "b: 2\n",
	})

	report, err := p.engine.Run(context.Background(), Options{Environment: "prod"})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 1 || report.Results[0].Agent != "prod-bot" {
		t.Errorf("results = %+v", report.Results)
	}
	if _, ok := p.lockEntry(t, "prod-bot", "prod"); !ok {
		t.Error("prod-bot lock entry missing under env key 'prod'")
	}
	if _, ok := p.lockEntry(t, "staging-bot", "staging"); ok {
		t.Error("staging-bot synced despite filter")
	}
}

func TestAdoptDeclaredID(t *testing.T) {
	p := newProject(t, `version: 1
agents:
  - name: adopted
    id: agent_preexisting
    config: agent_configs/adopted.yaml
`, map[string]string{
		"agent_configs/adopted.yaml": "a: 1\n",
	})

	report, err := p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	res := report.Results[0]
	if res.Action != reconcile.Update || res.RemoteID != "agent_preexisting" {
		t.Errorf("result = %+v", res)
	}
	entry, ok := p.lockEntry(t, "adopted", lockfile.DefaultEnvironment)
	if !ok || entry.ID != "agent_preexisting" {
		t.Errorf("adoption not recorded: %+v", entry)
	}
	creates, updates, _ := p.client.calls()
	if creates != 0 || updates != 1 {
		t.Errorf("creates=%d updates=%d", creates, updates)
	}
}

func TestDriftCheckConflict(t *testing.T) {
	p := newProject(t, `version: 1
agents:
  - name: support
    config: agent_configs/support.yaml
`, map[string]string{
		"agent_configs/support.yaml": "a: 1\n",
	})

	// First pass creates the agent.
	report, err := p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	id := report.Results[0].RemoteID

	// Someone edits the remote out-of-band.
	p.client.states[id] = &remote.AgentState{
		ID:     id,
		Config: map[string]any{"a": 99},
	}

	// Local change + drift check: must conflict, not overwrite.
	p.writeConfig(t, "agent_configs/support.yaml", "a: 2\n")
	report, err = p.engine.Run(context.Background(), Options{CheckDrift: true})
	if err != nil {
		t.Fatal(err)
	}
	res := report.Results[0]
	if res.Action != reconcile.Conflict {
		t.Fatalf("action = %s, want conflict", res.Action)
	}
	if !errors.Is(res.Err, ErrConflict) {
		t.Errorf("err = %v", res.Err)
	}
	_, updates, _ := p.client.calls()
	if updates != 0 {
		t.Error("conflicting agent was overwritten")
	}

	// Without the drift check the same edit overwrites optimistically.
	report, err = p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Results[0].Action != reconcile.Update {
		t.Errorf("optimistic action = %s, want update", report.Results[0].Action)
	}
}

func TestDriftCheckCleanRemoteIsNoOp(t *testing.T) {
	// An environment-tagged agent whose pushed form differs from the
	// declared form (tag appended, name injected). With an untouched
	// remote, a drift-checked pass must be a no-op, never a conflict.
	p := newProject(t, `version: 1
agents:
  - name: tagged
    config: agent_configs/tagged.yaml
    environment: prod
`, map[string]string{
		"agent_configs/tagged.yaml": "conversation_config:\n  temperature: 0.7\n",
	})

	if _, err := p.engine.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	report, err := p.engine.Run(context.Background(), Options{CheckDrift: true})
	if err != nil {
		t.Fatal(err)
	}
	res := report.Results[0]
	if res.Action != reconcile.NoOp {
		t.Fatalf("untouched remote: action = %s (reason %q), want no-op", res.Action, res.Reason)
	}
	if res.Err != nil {
		t.Errorf("untouched remote reported as failure: %v", res.Err)
	}

	_, _, fetches := p.client.calls()
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1", fetches)
	}

	entry, _ := p.lockEntry(t, "tagged", "prod")
	if entry.PushedHash == "" || entry.PushedHash == entry.Hash {
		t.Errorf("pushed hash not recorded distinctly: %+v", entry)
	}
}

func TestDryRunDriftCheckMatchesLiveRun(t *testing.T) {
	p := newProject(t, `version: 1
agents:
  - name: support
    config: agent_configs/support.yaml
`, map[string]string{
		"agent_configs/support.yaml": "a: 1\n",
	})

	report, err := p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	id := report.Results[0].RemoteID

	// Someone edits the remote out-of-band.
	p.client.states[id] = &remote.AgentState{ID: id, Config: map[string]any{"a": 99}}

	// The plan must show the same conflict a live pass would report. The
	// probe is a read; it does not break dry-run's no-mutation guarantee.
	report, err = p.engine.Run(context.Background(), Options{DryRun: true, CheckDrift: true})
	if err != nil {
		t.Fatal(err)
	}
	res := report.Results[0]
	if res.Action != reconcile.Conflict || !res.Planned {
		t.Fatalf("planned action = %s (planned=%v), want conflict", res.Action, res.Planned)
	}
	if !errors.Is(res.Err, ErrConflict) {
		t.Errorf("err = %v", res.Err)
	}

	creates, updates, fetches := p.client.calls()
	if creates != 1 || updates != 0 {
		t.Errorf("dry run mutated the remote: creates=%d updates=%d", creates, updates)
	}
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1", fetches)
	}
}

func TestEnvironmentTagAddedToPushOnly(t *testing.T) {
	var pushed map[string]any
	p := newProject(t, `version: 1
agents:
  - name: tagged
    config: agent_configs/tagged.yaml
    environment: prod
`, map[string]string{
		"agent_configs/tagged.yaml": "tags:\n  - existing\n",
	})
	client := &capturingClient{inner: p.client, onCreate: func(cfg map[string]any) { pushed = cfg }}
	p.engine.Client = client

	report, err := p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	tags, _ := pushed["tags"].([]any)
	if len(tags) != 2 || tags[0] != "existing" || tags[1] != "prod" {
		t.Errorf("pushed tags = %v", tags)
	}

	// The fingerprint reflects the declared document, so re-running with the
	// same config is still a no-op.
	report, err = p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Results[0].Action != reconcile.NoOp {
		t.Errorf("second pass action = %s, want no-op", report.Results[0].Action)
	}
}

// capturingClient forwards to an inner client while observing payloads.
type capturingClient struct {
	inner    remote.Client
	onCreate func(config map[string]any)
}

func (c *capturingClient) CreateAgent(ctx context.Context, name string, config map[string]any) (string, error) {
	if c.onCreate != nil {
		c.onCreate(config)
	}
	return c.inner.CreateAgent(ctx, name, config)
}

func (c *capturingClient) UpdateAgent(ctx context.Context, id, name string, config map[string]any) error {
	return c.inner.UpdateAgent(ctx, id, name, config)
}

func (c *capturingClient) GetAgent(ctx context.Context, id string) (*remote.AgentState, error) {
	return c.inner.GetAgent(ctx, id)
}

func (c *capturingClient) DeleteAgent(ctx context.Context, id string) error {
	return c.inner.DeleteAgent(ctx, id)
}

func TestCorruptLockAbortsPass(t *testing.T) {
	p := newProject(t, threeAgents, map[string]string{
		"agent_configs/alpha.yaml": "a: 1\n",
		"agent_configs/beta.yaml":  "b: 2\n",
		"agent_configs/gamma.yaml": "c: 3\n",
	})
	if err := os.WriteFile(p.engine.LockPath, []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := p.engine.Run(context.Background(), Options{})
	if !errors.Is(err, lockfile.ErrCorrupt) {
		t.Errorf("expected ErrCorrupt to abort the pass, got %v", err)
	}
	creates, updates, _ := p.client.calls()
	if creates+updates != 0 {
		t.Error("remote touched despite corrupt lock store")
	}
}

func TestCancellationBetweenAgents(t *testing.T) {
	p := newProject(t, threeAgents, map[string]string{
		"agent_configs/alpha.yaml": "a: 1\n",
		"agent_configs/beta.yaml":  "b: 2\n",
		"agent_configs/gamma.yaml": "c: 3\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := p.engine.Run(ctx, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if len(report.Results) != 0 {
		t.Errorf("results = %+v", report.Results)
	}
}

func TestSnapshotStoredOnPush(t *testing.T) {
	p := newProject(t, `version: 1
agents:
  - name: support
    config: agent_configs/support.yaml
`, map[string]string{
		"agent_configs/support.yaml": "a: 1\n",
	})

	report, err := p.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !p.engine.Snapshots.Has(report.Results[0].Fingerprint) {
		t.Error("pushed payload not recorded in snapshot store")
	}
}
