package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/signalgate/internal/ingest"
	"github.com/ppiankov/signalgate/internal/pipeline"
)

var (
	runInput  string
	runDryRun bool
)

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "Path to event.json")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Evaluate only; write nothing and always print a preview")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify one event and fire an interrupt if warranted",
	Long: `Runs the decision engine on one event. Without --dry-run the event goes
through the observation buffer, cold archive and circuit breaker, and the
interrupt message is printed only if one actually fires.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	p, err := paths()
	if err != nil {
		return err
	}
	input, err := filepath.Abs(runInput)
	if err != nil {
		return err
	}
	ev, err := ingest.LoadEvent(input, time.Now().UTC())
	if err != nil {
		return err
	}

	var r *pipeline.Runner
	if runDryRun {
		r, err = pipeline.Preview(p, logger)
	} else {
		r, err = pipeline.Open(p, collect, logger)
	}
	if err != nil {
		return err
	}

	out, err := r.Run(cmd.Context(), ev, runDryRun)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	switch {
	case runDryRun:
		fmt.Fprintln(w, out.Message)
	case out.Message != "":
		fmt.Fprint(w, out.Message)
	}
	return nil
}
