package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bianoble/convai/internal/engine"
	"github.com/bianoble/convai/internal/fingerprint"
	"github.com/bianoble/convai/internal/lockfile"
	"github.com/bianoble/convai/internal/manifest"
	"github.com/bianoble/convai/internal/remote"
	"github.com/bianoble/convai/internal/sandbox"
	"github.com/bianoble/convai/internal/template"
)

var (
	addConfig     string
	addTemplate   string
	addEnv        string
	addSkipUpload bool
)

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Declare a new agent and create it remotely",
	Long: `Add scaffolds a config file from a template, appends the agent to the
manifest, creates it on the remote platform, and records the result in
the lock file so the next sync is a no-op.

With --skip-upload the agent is only declared locally; the first sync
creates it remotely.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		root, err := projectRoot()
		if err != nil {
			return err
		}
		m, err := loadManifest()
		if err != nil {
			return err
		}
		if _, ok := m.Find(name); ok {
			return fmt.Errorf("agent '%s' is already declared", name)
		}

		catalog := template.NewCatalog(m.Templates)
		doc, err := catalog.Resolve(addTemplate)
		if err != nil {
			return err
		}
		doc["name"] = name

		relConfig := addConfig
		if relConfig == "" {
			relConfig = filepath.Join("agent_configs", safeName(name)+".yaml")
		}
		payload, err := yaml.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		if err := sandbox.SafeWrite(root, relConfig, payload, 0644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		m.Agents = append(m.Agents, manifest.AgentDeclaration{
			Name:        name,
			Config:      relConfig,
			Environment: addEnv,
		})
		if err := manifest.Save(manifestPath, m); err != nil {
			return fmt.Errorf("updating manifest: %w", err)
		}
		info("  created %s", relConfig)
		info("  declared '%s' in %s", name, manifestPath)

		if addSkipUpload {
			info("Skipped upload. Run 'convai sync' to create the agent remotely.")
			return nil
		}

		client, err := remote.NewFromEnv(remote.WithLogger(log))
		if err != nil {
			return err
		}
		id, err := createRemoteAgent(cmd.Context(), client, lockAbsPath(root), name, addEnv, doc)
		if err != nil {
			if id == "" {
				// Roll back the scaffold so a retried add starts clean. Once
				// the remote agent exists the declaration stays: removing it
				// would orphan the agent.
				m.Agents = m.Agents[:len(m.Agents)-1]
				if serr := manifest.Save(manifestPath, m); serr != nil {
					log.Warn("rollback: restoring manifest failed", "error", serr)
				}
				if rerr := sandbox.SafeRemove(root, relConfig); rerr != nil {
					log.Warn("rollback: removing config failed", "path", relConfig, "error", rerr)
				}
			}
			return fmt.Errorf("creating agent remotely: %w", err)
		}

		info("  created remotely (id: %s)", id)
		return nil
	},
}

// createRemoteAgent pushes a newly declared agent using the same document
// shaping a sync pass uses (environment tag appended, display name set) and
// records the lock entry, so add-created and sync-created agents end up
// identical remotely and the next sync is a no-op. Returns the remote ID
// even when recording the lock entry fails, so callers know the agent
// exists.
func createRemoteAgent(ctx context.Context, client remote.Client, lockPath, name, env string, doc map[string]any) (string, error) {
	pushDoc := engine.PushDocument(doc, env)
	id, err := client.CreateAgent(ctx, name, pushDoc)
	if err != nil {
		return "", err
	}

	fp, err := fingerprint.Compute(doc)
	if err != nil {
		return id, fmt.Errorf("fingerprinting config: %w", err)
	}
	pushedFP, err := fingerprint.Compute(remote.PushBody(pushDoc, name))
	if err != nil {
		return id, fmt.Errorf("fingerprinting pushed config: %w", err)
	}

	lockEnv := env
	if lockEnv == "" {
		lockEnv = lockfile.DefaultEnvironment
	}
	store, err := lockfile.Open(lockPath)
	if err != nil {
		return id, err
	}
	store.Upsert(name, lockEnv, lockfile.Entry{ID: id, Hash: fp, PushedHash: pushedFP, SyncedAt: time.Now().UTC()})
	if err := store.Save(); err != nil {
		return id, fmt.Errorf("saving lock file: %w", err)
	}
	return id, nil
}

func init() {
	addCmd.Flags().StringVar(&addConfig, "config", "", "config file path (default agent_configs/<name>.yaml)")
	addCmd.Flags().StringVar(&addTemplate, "template", "default", "starter template for the config")
	addCmd.Flags().StringVar(&addEnv, "env", "", "environment to declare the agent for")
	addCmd.Flags().BoolVar(&addSkipUpload, "skip-upload", false, "declare locally without creating the agent remotely")
	rootCmd.AddCommand(addCmd)
}
