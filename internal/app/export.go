package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"dayahead/internal/storage"
)

// Export renders stored prices as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.AddDate(0, 0, -30)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	prices, err := store.ListPricesBetween(ctx, a.Config.Entsoe.Pair(), from, to)
	if err != nil {
		return err
	}
	if len(prices) == 0 {
		a.Logger.Info().Msg("no prices found for export window")
		return nil
	}

	downsampled := downsamplePrices(prices, opts.MaxPoints)
	a.Logger.Info().Int("total", len(prices)).Int("exported", len(downsampled)).Msg("exporting prices")

	if opts.CSVPath != "" {
		if err := writePricesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePricesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsamplePrices(prices []storage.StoredPrice, max int) []storage.StoredPrice {
	if max <= 0 || len(prices) <= max {
		return prices
	}
	if max == 1 {
		return prices[:1]
	}

	result := make([]storage.StoredPrice, 0, max)
	step := float64(len(prices)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(prices) {
			idx = len(prices) - 1
		}
		result = append(result, prices[idx])
	}
	return result
}

func writePricesCSV(path string, prices []storage.StoredPrice) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"time", "in_domain", "out_domain", "currency", "price_measure_unit", "price", "tax_percentage", "price_with_tax"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range prices {
		record := []string{
			p.Time.UTC().Format(time.RFC3339),
			p.Domains.In,
			p.Domains.Out,
			p.Currency,
			p.PriceMeasureUnit,
			p.Price.String(),
			strconv.FormatFloat(p.TaxPercentage, 'f', -1, 64),
			p.PriceWithTax().StringFixed(4),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writePricesPNG(path string, prices []storage.StoredPrice) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(prices))
	price := make([]float64, len(prices))
	withTax := make([]float64, len(prices))
	taxRate := make([]float64, len(prices))

	for i, p := range prices {
		x[i] = p.Time
		price[i] = p.Price.InexactFloat64()
		withTax[i] = p.PriceWithTax().InexactFloat64()
		taxRate[i] = p.TaxPercentage
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (" + unitLabel(prices[0].Currency, prices[0].PriceMeasureUnit) + ")",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Tax (%)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Day-ahead",
				XValues: x,
				YValues: price,
			},
			chart.TimeSeries{
				Name:    "With tax",
				XValues: x,
				YValues: withTax,
			},
			chart.TimeSeries{
				Name:    "Tax %",
				XValues: x,
				YValues: taxRate,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
