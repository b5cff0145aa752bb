package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"dayahead/internal/app"
)

var (
	inspectFile  string
	inspectLimit int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Parse a saved price document and print the expanded series",
	RunE: func(cmd *cobra.Command, args []string) error {
		if inspectFile == "" {
			return errors.New("--file must be provided")
		}
		return getApp().Inspect(app.InspectOptions{Path: inspectFile, Limit: inspectLimit})
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFile, "file", "", "Path to a Publication_MarketDocument XML file")
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 0, "Maximum rows to print (0 prints all)")
}
