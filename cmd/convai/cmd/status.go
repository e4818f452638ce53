package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bianoble/convai/internal/engine"
)

var statusEnv string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show each agent's state relative to the lock file",
	Long: `Status compares declared configs against the lock file without talking
to the remote platform. An agent is reported as synced, changed (config
edited since the last push), or new (never pushed). Agents whose config
cannot be read or parsed are reported as broken.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(false)
		if err != nil {
			return err
		}

		report, err := eng.Status(engine.Options{Environment: statusEnv})
		if err != nil {
			return err
		}

		for _, entry := range report.Entries {
			line := fmt.Sprintf("  %-9s %s", entry.State, entry.Agent)
			if entry.RemoteID != "" {
				line += fmt.Sprintf("  (id: %s)", entry.RemoteID)
			}
			if entry.State == engine.StateBroken && entry.Err != nil {
				line += fmt.Sprintf("  %v", entry.Err)
			}
			info("%s", line)
			if entry.BaselineCached {
				detail("            baseline snapshot cached")
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusEnv, "env", "", "only report agents declared for this environment")
	rootCmd.AddCommand(statusCmd)
}
