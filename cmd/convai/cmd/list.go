package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bianoble/convai/internal/lockfile"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List declared agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}
		root, err := projectRoot()
		if err != nil {
			return err
		}
		store, err := lockfile.Open(lockAbsPath(root))
		if err != nil {
			return err
		}

		if len(m.Agents) == 0 {
			info("No agents declared. Add one with 'convai add <name>'.")
			return nil
		}

		for _, decl := range m.Agents {
			env := decl.Environment
			if env == "" {
				env = lockfile.DefaultEnvironment
			}
			line := fmt.Sprintf("  %-24s env=%-10s %s", decl.Name, env, decl.Config)
			if entry, ok := store.Get(decl.Name, env); ok {
				line += fmt.Sprintf("  (id: %s)", entry.ID)
			}
			info("%s", line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
