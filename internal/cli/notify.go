package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/signalgate/internal/notify"
)

var (
	notifyText    string
	notifyDesp    string
	notifyPushKey string
	notifyURL     string
)

func init() {
	notifyCmd.Flags().StringVar(&notifyText, "text", "", "Title / short text")
	notifyCmd.Flags().StringVar(&notifyDesp, "desp", "", "Body / description")
	notifyCmd.Flags().StringVar(&notifyPushKey, "pushkey", "", "Push key (overrides "+notify.EnvKey+")")
	notifyCmd.Flags().StringVar(&notifyURL, "url", "", "Push endpoint (overrides "+notify.EnvURL+")")
	_ = notifyCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(notifyCmd)
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a PushDeer notification directly",
	Args:  cobra.NoArgs,
	RunE:  runNotify,
}

func runNotify(cmd *cobra.Command, args []string) error {
	pd := notify.FromEnv(notifyPushKey, notifyURL)
	pd.Client = httpClient()
	if err := pd.Send(cmd.Context(), notify.Message{Text: notifyText, Desp: notifyDesp}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK: pushed.")
	return nil
}
