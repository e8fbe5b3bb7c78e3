package cli

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/signalgate/internal/pipeline"
	"github.com/ppiankov/signalgate/internal/watch"
)

var (
	watchPoll     bool
	watchInterval time.Duration
)

func init() {
	watchCmd.Flags().BoolVar(&watchPoll, "poll", false, "Poll the inbox instead of using filesystem notifications")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Second, "Poll interval with --poll")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run every event dropped into data/inbox through the pipeline",
	Long: `Processes event files already in data/inbox, then watches for new ones.
Each file is run as with "signalgate run" and moved to inbox/processed
(or inbox/failed). Interrupt messages are printed to stdout. Stops on
SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	p, err := paths()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Configs are reloaded per file so edits apply without a restart.
	proc := &watch.Processor{
		Paths:    p,
		Out:      cmd.OutOrStdout(),
		AfterRun: writeMetrics,
		Logger:   logger,
	}
	proc.Load = func() (*pipeline.Runner, error) {
		return pipeline.Open(p, collect, logger)
	}
	return proc.Serve(ctx, watchPoll, watchInterval)
}
