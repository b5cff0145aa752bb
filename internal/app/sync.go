package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"dayahead/internal/model"
	"dayahead/internal/service"
)

// Sync fetches and replicates an explicit range.
func (a *App) Sync(ctx context.Context, opts SyncOptions) error {
	pair := pairFromOptions(a.Config.Entsoe.Pair(), opts.InDomain, opts.OutDomain)

	schedule, err := a.newSchedule()
	if err != nil {
		return err
	}

	deps := service.Dependencies{
		Fetcher:  a.newFetcher(),
		Schedule: schedule,
		Notifier: a.newNotifier(),
	}

	if opts.DryRun {
		a.Logger.Warn().Msg("sync dry-run: documents are fetched and expanded but not stored")
	} else {
		opened, err := a.openBackends(ctx)
		if err != nil {
			return err
		}
		defer opened.close()
		if len(opened.list) == 0 {
			return errors.New("no storage backend enabled; use --dry-run to only fetch")
		}
		deps.Backends = opened.list
		if opened.store != nil {
			deps.Locker = opened.store
		}
	}

	svc := a.newService(deps)
	result, err := svc.Synchronize(ctx, opts.From, opts.To, pair)
	if err != nil {
		return err
	}

	printResult(os.Stdout, result)
	a.Logger.Info().
		Str("pass_id", result.PassID).
		Int("chunks", len(result.Chunks)).
		Int("records", result.Records()).
		Msg("sync finished")
	if result.Failed() {
		return fmt.Errorf("sync partially failed: %w", result.Err())
	}
	return nil
}

func printResult(w io.Writer, result service.Result) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Start (UTC)\tEnd (UTC)\tRecords\tBackend\tWritten\tStatus")

	for _, chunk := range result.Chunks {
		start := chunk.Window.Start.UTC().Format(time.RFC3339)
		end := chunk.Window.End.UTC().Format(time.RFC3339)
		if chunk.Err != nil {
			fmt.Fprintf(writer, "%s\t%s\t%d\t-\t-\t%s\n", start, end, chunk.Records, sanitizeInline(chunk.Err.Error()))
			continue
		}
		if len(chunk.Backends) == 0 {
			fmt.Fprintf(writer, "%s\t%s\t%d\t-\t-\tok\n", start, end, chunk.Records)
			continue
		}
		for _, b := range chunk.Backends {
			status := "ok"
			if b.Err != nil {
				status = sanitizeInline(b.Err.Error())
			}
			fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%d\t%s\n", start, end, chunk.Records, b.Backend, b.Summary.Written, status)
		}
	}
	writer.Flush()
}

func pairFromOptions(def model.DomainPair, in, out string) model.DomainPair {
	if in != "" {
		def.In = in
	}
	if out != "" {
		def.Out = out
	}
	return def
}
