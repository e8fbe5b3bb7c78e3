package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/signalgate/internal/feed"
	"github.com/ppiankov/signalgate/internal/store"
)

var (
	fetchURL        string
	fetchLimit      int
	fetchPrintCount bool
)

func init() {
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "RSS or Atom feed URL")
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", feed.DefaultLimit, "Maximum entries to write")
	fetchCmd.Flags().BoolVar(&fetchPrintCount, "print-count", false, "Print the number of events written")
	_ = fetchCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull a feed into the inbox as tier-B events",
	Long: `Downloads an RSS 2.0 or Atom feed and writes each entry to data/inbox as an
event file (source_tier B, no tags). Entries are not classified; use run or
watch for that. Single attempt, no retries.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	p, err := paths()
	if err != nil {
		return err
	}
	inbox, err := store.NewDirStore(p.InboxDir())
	if err != nil {
		return err
	}

	f := &feed.Fetcher{Client: httpClient()}
	items, err := f.Fetch(cmd.Context(), fetchURL)
	if err != nil {
		return err
	}
	n, err := feed.WriteInbox(inbox, items, fetchLimit, time.Now().UTC())
	if err != nil {
		return err
	}
	logger.Info("feed fetched", "url", fetchURL, "items", len(items), "written", n)
	if fetchPrintCount {
		fmt.Fprintf(cmd.OutOrStdout(), "Fetched: %d\n", n)
	}
	return nil
}
