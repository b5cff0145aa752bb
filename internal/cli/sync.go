package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dayahead/internal/app"
)

var (
	syncFrom      string
	syncTo        string
	syncInDomain  string
	syncOutDomain string
	syncDryRun    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch and store day-ahead prices for an explicit range",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncFrom == "" || syncTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := time.Parse(time.RFC3339, syncFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}

		to, err := time.Parse(time.RFC3339, syncTo)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}

		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}

		opts := app.SyncOptions{
			From:      from,
			To:        to,
			InDomain:  syncInDomain,
			OutDomain: syncOutDomain,
			DryRun:    syncDryRun,
		}

		return getApp().Sync(cmd.Context(), opts)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "End timestamp (RFC3339, exclusive)")
	syncCmd.Flags().StringVar(&syncInDomain, "in-domain", "", "Override entsoe.in_domain")
	syncCmd.Flags().StringVar(&syncOutDomain, "out-domain", "", "Override entsoe.out_domain")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Fetch and expand without writing to storage")
}
