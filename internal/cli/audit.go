package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/signalgate/internal/audit"
	"github.com/ppiankov/signalgate/internal/model"
)

var (
	tailLines    int
	tailJSON     bool
	reportEntity string
	reportAction string
	reportSince  time.Duration
	reportJSON   bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditReportCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditTailCmd.Flags().BoolVar(&tailJSON, "json", false, "Print records as JSON")
	auditReportCmd.Flags().StringVar(&reportEntity, "entity", "", "Only records for this entity")
	auditReportCmd.Flags().StringVar(&reportAction, "action", "", "Only records with this action")
	auditReportCmd.Flags().DurationVar(&reportSince, "since", 0, "Only records newer than this (e.g. 24h)")
	auditReportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the interrupt count",
	Long:  "Prints the number of recorded interrupts. Subcommands verify and inspect the hash-chained log.",
	Args:  cobra.NoArgs,
	RunE:  runAudit,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify hash chain integrity of the interrupt log",
	Long:  "Walks data/audit/interrupts.jsonl and checks that every entry's prev_hash\nmatches the SHA-256 of the previous line. Fails if the log was edited.",
	Args:  cobra.NoArgs,
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent interrupts",
	Args:  cobra.NoArgs,
	RunE:  runAuditTail,
}

var auditReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Filter interrupts and summarize them by action",
	Args:  cobra.NoArgs,
	RunE:  runAuditReport,
}

func runAudit(cmd *cobra.Command, args []string) error {
	p, err := paths()
	if err != nil {
		return err
	}
	summary, err := audit.Summary(p.AuditLog())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	p, err := paths()
	if err != nil {
		return err
	}
	result := audit.Verify(p.AuditLog())
	if !result.Valid {
		return fmt.Errorf("audit chain broken at line %d: %s", result.ErrorLine, result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	p, err := paths()
	if err != nil {
		return err
	}
	records, err := audit.Tail(p.AuditLog(), tailLines)
	if err != nil {
		return err
	}
	return printRecords(cmd, records, tailJSON)
}

func runAuditReport(cmd *cobra.Command, args []string) error {
	p, err := paths()
	if err != nil {
		return err
	}
	filter := audit.Filter{
		Entity: reportEntity,
		Action: model.Action(strings.ToUpper(reportAction)),
	}
	if reportSince > 0 {
		filter.From = time.Now().UTC().Add(-reportSince)
	}
	report, err := audit.Query(p.AuditLog(), filter)
	if err != nil {
		return err
	}
	if reportJSON {
		out, err := audit.FormatJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(report.Records))
	return nil
}

func printRecords(cmd *cobra.Command, records []model.InterruptRecord, asJSON bool) error {
	if !asJSON {
		fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(records))
		return nil
	}
	if records == nil {
		records = []model.InterruptRecord{}
	}
	out, err := audit.FormatJSON(records)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
