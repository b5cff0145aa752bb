package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"dayahead/internal/model"
)

const (
	upsertPriceSQL = `INSERT INTO day_ahead_prices (
        time,
        in_domain,
        out_domain,
        document_type,
        currency,
        price_measure_unit,
        curve_type,
        price,
        tax_percentage
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (time, in_domain, out_domain) DO UPDATE
    SET
        document_type      = EXCLUDED.document_type,
        currency           = EXCLUDED.currency,
        price_measure_unit = EXCLUDED.price_measure_unit,
        curve_type         = EXCLUDED.curve_type,
        price              = EXCLUDED.price,
        tax_percentage     = EXCLUDED.tax_percentage;`

	latestPriceTimeSQL = `SELECT time
    FROM day_ahead_prices
    WHERE in_domain = $1
      AND out_domain = $2
      AND document_type = $3
    ORDER BY time DESC
    LIMIT 1;`

	refreshAggregateSQL = `CALL refresh_continuous_aggregate($1, NULL, NULL);`
)

// pgxDB is the subset of *pgxpool.Pool the transactional backend needs.
type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TimescaleOptions tune the transactional backend.
type TimescaleOptions struct {
	// RefreshViews are continuous aggregates refreshed after each commit.
	RefreshViews []string
	// DocumentType scopes the watermark query. Defaults to day-ahead.
	DocumentType string
}

// TimescaleBackend writes each document in a single transaction.
type TimescaleBackend struct {
	db     pgxDB
	opts   TimescaleOptions
	logger zerolog.Logger
}

// NewTimescaleBackend wires a pool into the transactional backend.
func NewTimescaleBackend(db pgxDB, opts TimescaleOptions, logger zerolog.Logger) *TimescaleBackend {
	if opts.DocumentType == "" {
		opts.DocumentType = model.DocumentTypeDayAhead
	}
	return &TimescaleBackend{
		db:     db,
		opts:   opts,
		logger: logger.With().Str("component", "timescale_backend").Logger(),
	}
}

// Name implements Backend.
func (b *TimescaleBackend) Name() string { return "timescale" }

// Upsert writes records in one transaction; any failure rolls back the batch.
func (b *TimescaleBackend) Upsert(ctx context.Context, records []model.PriceRecord) (Summary, error) {
	summary := Summary{Backend: b.Name()}
	if len(records) == 0 {
		return summary, nil
	}
	if b.db == nil {
		return summary, ErrNotConfigured
	}

	tx, err := b.db.Begin(ctx)
	if err != nil {
		return summary, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(context.Background())
	}()

	for _, rec := range records {
		if _, err := tx.Exec(ctx, upsertPriceSQL,
			rec.Time.UTC(),
			rec.Domains.In,
			rec.Domains.Out,
			rec.DocumentType,
			rec.Currency,
			rec.PriceMeasureUnit,
			rec.CurveType,
			rec.Price.String(),
			rec.TaxPercentage,
		); err != nil {
			return summary, fmt.Errorf("upsert price %s: %w", rec.Key(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("commit prices: %w", err)
	}
	summary.Written = len(records)

	b.refreshViews(ctx)
	return summary, nil
}

func (b *TimescaleBackend) refreshViews(ctx context.Context) {
	for _, view := range b.opts.RefreshViews {
		if _, err := b.db.Exec(ctx, refreshAggregateSQL, view); err != nil {
			b.logger.Warn().Err(err).Str("view", view).Msg("refresh continuous aggregate failed")
		}
	}
}

// LatestTime implements Backend.
func (b *TimescaleBackend) LatestTime(ctx context.Context, pair model.DomainPair) (time.Time, bool) {
	if b.db == nil {
		return time.Time{}, false
	}
	var latest time.Time
	if err := b.db.QueryRow(ctx, latestPriceTimeSQL, pair.In, pair.Out, b.opts.DocumentType).Scan(&latest); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			b.logger.Warn().Err(err).Str("pair", pair.String()).Msg("latest time lookup failed")
		}
		return time.Time{}, false
	}
	return latest.UTC(), true
}

var _ Backend = (*TimescaleBackend)(nil)
