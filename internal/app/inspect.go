package app

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"dayahead/internal/fetcher"
	"dayahead/internal/model"
	"dayahead/internal/service"
)

// Inspect parses a saved price document and prints the expanded, taxed series
// without touching any backend.
func (a *App) Inspect(opts InspectOptions) error {
	raw, err := os.ReadFile(opts.Path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	records, err := a.expandDocument(raw)
	if err != nil {
		return err
	}

	printRecords(os.Stdout, records, opts.Limit)
	return nil
}

func (a *App) expandDocument(raw []byte) ([]model.PriceRecord, error) {
	doc, err := fetcher.ParseDocument(raw)
	if err != nil {
		return nil, err
	}

	schedule, err := a.newSchedule()
	if err != nil {
		return nil, err
	}

	pair := a.Config.Entsoe.Pair()
	if len(doc.TimeSeries) > 0 && doc.TimeSeries[0].InDomain != "" {
		pair = model.DomainPair{In: doc.TimeSeries[0].InDomain, Out: doc.TimeSeries[0].OutDomain}
	}

	svc := a.newService(service.Dependencies{Schedule: schedule})
	return svc.Expand(doc, pair)
}

func printRecords(w io.Writer, records []model.PriceRecord, limit int) {
	if len(records) == 0 {
		fmt.Fprintln(w, "document contains no prices")
		return
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tDomains\tPrice\tTax%\tWith tax\tUnit")
	for i, r := range records {
		if limit > 0 && i >= limit {
			fmt.Fprintf(writer, "... %d more\t\t\t\t\t\n", len(records)-limit)
			break
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
			r.Time.UTC().Format(time.RFC3339),
			r.Domains.String(),
			formatDecimal(r.Price, 2),
			r.TaxPercentage,
			formatDecimal(r.PriceWithTax(), 2),
			unitLabel(r.Currency, r.PriceMeasureUnit),
		)
	}
	writer.Flush()
}
