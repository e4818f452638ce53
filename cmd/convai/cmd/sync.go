package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/convai/internal/engine"
)

var (
	syncDryRun     bool
	syncEnv        string
	syncCheckDrift bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile declared agents with the remote platform",
	Long: `Sync compares every declared agent against the lock file and pushes
whatever changed. Agents whose fingerprint matches the lock entry are
skipped. Failures are isolated per agent: the pass continues and the
command exits non-zero if any agent failed.

With --dry-run nothing is mutated: no creates or updates are sent and
the lock file is untouched. With --check-drift the remote copy of each
tracked agent is fetched first and a remote edit that diverges from the
last recorded push is reported as a conflict instead of being
overwritten; the fetch happens in dry runs too, so the plan shows the
same conflicts a live pass would.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Drift checking reads the remote even under --dry-run, so the plan
		// reports the same conflicts a live pass would.
		eng, err := newEngine(!syncDryRun || syncCheckDrift)
		if err != nil {
			return err
		}

		report, err := eng.Run(cmd.Context(), engine.Options{
			DryRun:      syncDryRun,
			Environment: syncEnv,
			CheckDrift:  syncCheckDrift,
		})
		if err != nil {
			return err
		}

		printReport(report, syncDryRun)
		return report.Err()
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "plan only, without remote calls or lock writes")
	syncCmd.Flags().StringVar(&syncEnv, "env", "", "only sync agents declared for this environment")
	syncCmd.Flags().BoolVar(&syncCheckDrift, "check-drift", false, "probe remote state and report out-of-band edits as conflicts")
	rootCmd.AddCommand(syncCmd)
}
