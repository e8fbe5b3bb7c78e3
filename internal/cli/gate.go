package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/signalgate/internal/audit"
	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/gate"
)

func init() {
	rootCmd.AddCommand(resetGateCmd)
	rootCmd.AddCommand(gateCmd)
	gateCmd.AddCommand(gateStatusCmd)
}

var resetGateCmd = &cobra.Command{
	Use:   "reset-gate",
	Short: "Clear the circuit breaker (manual only)",
	Args:  cobra.NoArgs,
	RunE:  runResetGate,
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Circuit breaker operations",
}

var gateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted circuit breaker state",
	Args:  cobra.NoArgs,
	RunE:  runGateStatus,
}

func openGate() (*gate.Gate, error) {
	p, err := paths()
	if err != nil {
		return nil, err
	}
	rules, err := config.LoadRules(p.ConfigDir())
	if err != nil {
		return nil, err
	}
	fs, err := gate.NewFileStore(p.StateDir())
	if err != nil {
		return nil, err
	}
	return gate.New(fs, rules.BurstWindow(), rules.BurstLimit(), logger), nil
}

func runResetGate(cmd *cobra.Command, args []string) error {
	g, err := openGate()
	if err != nil {
		return err
	}
	if err := g.Reset(); err != nil {
		return err
	}
	collect.ObserveGate(false)
	logger.Info("gate reset")
	fmt.Fprintln(cmd.OutOrStdout(), "OK: gate reset.")
	return nil
}

func runGateStatus(cmd *cobra.Command, args []string) error {
	g, err := openGate()
	if err != nil {
		return err
	}
	st, err := g.Status()
	if err != nil {
		return err
	}
	out, err := audit.FormatJSON(st)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
