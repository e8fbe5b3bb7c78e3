package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/signalgate/internal/ingest"
	"github.com/ppiankov/signalgate/internal/layout"
	"github.com/ppiankov/signalgate/internal/store"
)

var (
	ingestInput      string
	ingestGlob       string
	ingestPrintCount bool
)

func init() {
	ingestCmd.Flags().StringVar(&ingestInput, "input", "", "Event file or directory of event files")
	ingestCmd.Flags().StringVar(&ingestGlob, "glob", ingest.DefaultGlob, "File pattern when --input is a directory")
	ingestCmd.Flags().BoolVar(&ingestPrintCount, "print-count", false, "Print the number of archived events")
	_ = ingestCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Archive event files to cold storage without classification",
	Args:  cobra.NoArgs,
	RunE:  runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	p, err := paths()
	if err != nil {
		return err
	}
	if err := layout.EnsureDirs(p); err != nil {
		return err
	}
	cold, err := store.NewDirStore(p.ColdDir())
	if err != nil {
		return err
	}

	n, err := ingest.IngestPath(ingestInput, ingestGlob, cold, time.Now().UTC())
	if err != nil {
		return err
	}
	logger.Info("ingested", "count", n, "input", ingestInput)
	if ingestPrintCount {
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested: %d\n", n)
	}
	return nil
}
