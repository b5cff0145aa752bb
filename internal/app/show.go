package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints the most recent stored prices.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show prices")
	}
	if closeStore != nil {
		defer closeStore()
	}

	pair := a.Config.Entsoe.Pair()
	prices, err := store.ListRecentPrices(ctx, pair, opts.Limit)
	if err != nil {
		return err
	}
	if len(prices) == 0 {
		fmt.Fprintln(os.Stdout, "no prices found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tDomains\tPrice\tTax%\tWith tax\tUnit")

	for _, p := range prices {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%.2f\t%s\t%s\n",
			p.Time.UTC().Format(time.RFC3339),
			p.Domains.String(),
			formatDecimal(p.Price, 2),
			p.TaxPercentage,
			formatDecimal(p.PriceWithTax(), 2),
			unitLabel(p.Currency, p.PriceMeasureUnit),
		)
	}

	writer.Flush()
	return nil
}

func unitLabel(currency, measure string) string {
	if currency == "" && measure == "" {
		return "-"
	}
	return currency + "/" + measure
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
