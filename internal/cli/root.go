package cli

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/signalgate/internal/layout"
	"github.com/ppiankov/signalgate/internal/logging"
	"github.com/ppiankov/signalgate/internal/metrics"
)

// settings holds runtime configuration: persistent flags overlaid by
// SIGNALGATE_* environment variables.
var settings = viper.New()

// Per-invocation state set up in PersistentPreRunE.
var (
	logger  = slog.Default()
	collect *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "signalgate",
	Short: "Silence-by-default interrupt filter for external signals",
	Long: `Classifies events against your bets and a rule set. An event interrupts only
when it is a structural change, affects a tracked bet and requires action;
everything else is archived silently. A circuit breaker caps bursts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.Setup(settings.GetString("log_level"), settings.GetString("log_format"), cmd.ErrOrStderr())
		collect = metrics.New()
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		writeMetrics()
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("root", "", "Project root (default $SIGNALGATE_HOME, then current directory)")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	pf.Duration("http-timeout", 0, "Timeout for feed and push requests (0 keeps each command's default)")

	settings.SetEnvPrefix("SIGNALGATE")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	_ = settings.BindPFlag("root", pf.Lookup("root"))
	_ = settings.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = settings.BindPFlag("log_format", pf.Lookup("log-format"))
	_ = settings.BindPFlag("metrics_textfile", pf.Lookup("metrics-textfile"))
	_ = settings.BindPFlag("http_timeout", pf.Lookup("http-timeout"))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// paths resolves the project root: --root, then SIGNALGATE_HOME, then cwd.
func paths() (layout.Paths, error) {
	root, err := layout.ResolveRoot(settings.GetString("root"))
	if err != nil {
		return layout.Paths{}, err
	}
	return layout.New(root), nil
}

// httpClient returns nil unless --http-timeout is set, so each client
// falls back to its own default timeout.
func httpClient() *http.Client {
	if d := settings.GetDuration("http_timeout"); d > 0 {
		return &http.Client{Timeout: d}
	}
	return nil
}

// writeMetrics exports the run's counters when --metrics-textfile is set.
// Failures are logged only.
func writeMetrics() {
	path := settings.GetString("metrics_textfile")
	if path == "" || collect == nil {
		return
	}
	if err := collect.WriteTextfile(path); err != nil {
		logger.Warn("metrics textfile not written", "path", path, "error", err)
	}
}
