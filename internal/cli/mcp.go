package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	sgmcp "github.com/ppiankov/signalgate/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: `Runs signalgate as an MCP (Model Context Protocol) server over stdio.
Exposes read-only tools: evaluate (dry-run), gate_status, audit_count, audit_tail.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	p, err := paths()
	if err != nil {
		return err
	}
	srv := sgmcp.New(sgmcp.Config{Paths: p, Version: version, Logger: logger})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "signalgate MCP server running on stdio (root %s)\n", p.Root)
	return srv.Run(ctx)
}
