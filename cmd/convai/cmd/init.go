package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bianoble/convai/internal/sandbox"
)

const starterManifest = `# Declarative registry of conversational agents.
# Run 'convai add <name>' to declare an agent, 'convai sync' to push.
version: 1

# Values available to config files via {{.name}} templating.
variables: {}

agents: []
`

const starterLock = `version: 1
agents: {}
`

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Scaffold a new agent project",
	Long: `Init creates the agents.yaml manifest, an empty convai.lock, and the
agent_configs/ directory in the given path (default: current directory).
Existing files are left untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		root, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolving project path: %w", err)
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return fmt.Errorf("creating project directory: %w", err)
		}

		manifestRel := filepath.Base(manifestPath)
		if _, err := os.Stat(filepath.Join(root, manifestRel)); err == nil {
			return fmt.Errorf("%s already exists — project is already initialized", manifestRel)
		}

		if err := sandbox.SafeWrite(root, manifestRel, []byte(starterManifest), 0644); err != nil {
			return fmt.Errorf("writing manifest: %w", err)
		}
		lockRel := filepath.Base(lockPath)
		if _, err := os.Stat(filepath.Join(root, lockRel)); os.IsNotExist(err) {
			if err := sandbox.SafeWrite(root, lockRel, []byte(starterLock), 0644); err != nil {
				return fmt.Errorf("writing lock file: %w", err)
			}
		}
		if err := sandbox.SafeMkdirAll(root, "agent_configs", 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		info("Initialized agent project in %s", root)
		info("  created %s", manifestRel)
		info("  created %s", lockRel)
		info("  created agent_configs/")
		info("")
		info("Next: set ELEVENLABS_API_KEY and run 'convai add <name>'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
