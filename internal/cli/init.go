package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/layout"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the project layout and default config files",
	Long: `Creates config/ and data/ under the project root and writes commented
default bets.yaml and rules.yaml. Existing files are kept unless --force.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	p, err := paths()
	if err != nil {
		return err
	}
	if err := layout.EnsureDirs(p); err != nil {
		return err
	}
	if err := os.MkdirAll(p.InboxDir(), 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	var created []string
	files := []struct {
		name    string
		content string
	}{
		{config.BetsFile, config.DefaultBetsYAML()},
		{config.RulesFile, config.DefaultRulesYAML()},
	}
	for _, f := range files {
		path := filepath.Join(p.ConfigDir(), f.name)
		wrote, err := writeIfMissing(path, f.content)
		if err != nil {
			return err
		}
		if wrote {
			created = append(created, path)
		}
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "signalgate init complete (root %s).\n\n", p.Root)
	if len(created) > 0 {
		fmt.Fprintln(w, "Created:")
		for _, path := range created {
			fmt.Fprintf(w, "  %s\n", path)
		}
	} else {
		fmt.Fprintln(w, "All files already exist (use --force to overwrite).")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Try a dry run:")
	fmt.Fprintln(w, "  signalgate run --dry-run --input event.json")
	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
