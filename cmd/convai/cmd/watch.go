package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bianoble/convai/internal/engine"
	"github.com/bianoble/convai/internal/watch"
)

var (
	watchInterval   time.Duration
	watchDebounce   time.Duration
	watchEnv        string
	watchCheckDrift bool
	watchNoFSEvents bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously sync agents as their configs change",
	Long: `Watch runs an initial sync and then re-syncs whenever the manifest or
a referenced config file changes, coalescing editor save bursts into a
single pass. A failed pass is logged and the loop keeps running.

File change notification is used when available; --interval adds a
periodic re-sync on top, and --no-fsevents falls back to polling only.
Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(true)
		if err != nil {
			return err
		}

		opts := engine.Options{Environment: watchEnv, CheckDrift: watchCheckDrift}
		w := &watch.Watcher{
			Interval: watchInterval,
			Debounce: watchDebounce,
			FSEvents: !watchNoFSEvents,
			Logger:   log,
			Run: func(ctx context.Context) ([]string, error) {
				report, err := eng.Run(ctx, opts)
				if err != nil {
					return nil, err
				}
				printReport(report, false)
				paths, err := eng.TrackedPaths()
				if err != nil {
					return nil, err
				}
				return paths, report.Err()
			},
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		info("Watching for changes (Ctrl-C to stop)...")
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "also re-sync on this period (0 disables polling)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", time.Second, "quiet period after a file change before syncing")
	watchCmd.Flags().StringVar(&watchEnv, "env", "", "only sync agents declared for this environment")
	watchCmd.Flags().BoolVar(&watchCheckDrift, "check-drift", false, "probe remote state before each push")
	watchCmd.Flags().BoolVar(&watchNoFSEvents, "no-fsevents", false, "disable file notification and rely on --interval polling")
	rootCmd.AddCommand(watchCmd)
}
