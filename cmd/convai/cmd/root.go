package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bianoble/convai/internal/logging"
	"github.com/spf13/cobra"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	manifestPath string
	lockPath     string
	verbose      bool
	quiet        bool
)

var log *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "convai",
	Short: "Declarative management of conversational AI agents",
	Long: `convai reconciles locally declared conversational AI agents against their
remote copies. Agents are declared in agents.yaml, their configurations live
in version-controlled documents, and convai decides per agent whether the
remote needs a create, an update, or nothing — based on a content fingerprint
recorded in convai.lock at each successful push.

Only one convai process may reconcile a given checkout at a time: the lock
file assumes a single writer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.Setup(verbose, quiet)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("convai %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "agents.yaml", "path to the agent manifest")
	rootCmd.PersistentFlags().StringVar(&lockPath, "lockfile", "convai.lock", "path to the lock file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
