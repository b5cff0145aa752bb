package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"

	"dayahead/internal/model"
)

const (
	countDirtySQL = `SELECT count()
    FROM day_ahead_prices
    WHERE time = ?
      AND in_domain = ?
      AND out_domain = ?
      AND document_type = ?
      AND dirty = 1`

	deleteDirtySQL = `DELETE FROM day_ahead_prices
    WHERE time = ?
      AND in_domain = ?
      AND out_domain = ?
      AND document_type = ?
      AND dirty = 1`

	insertPricesSQL = `INSERT INTO day_ahead_prices (
        time,
        in_domain,
        out_domain,
        document_type,
        currency,
        price_measure_unit,
        curve_type,
        price,
        tax_percentage,
        dirty
    )`

	latestCleanTimeSQL = `SELECT time
    FROM day_ahead_prices
    WHERE in_domain = ?
      AND out_domain = ?
      AND document_type = ?
      AND dirty = 0
    ORDER BY time DESC
    LIMIT 1`
)

// appendTable is the set of primitives the append backend composes.
type appendTable interface {
	dirtyExists(ctx context.Context, key model.RecordKey, documentType string) (bool, error)
	deleteDirty(ctx context.Context, key model.RecordKey, documentType string) error
	insert(ctx context.Context, records []model.PriceRecord) error
	latest(ctx context.Context, pair model.DomainPair, documentType string) (time.Time, bool, error)
}

// clickhouseTable implements appendTable over a ClickHouse connection.
type clickhouseTable struct {
	conn driver.Conn
}

func (t clickhouseTable) dirtyExists(ctx context.Context, key model.RecordKey, documentType string) (bool, error) {
	var count uint64
	if err := t.conn.QueryRow(ctx, countDirtySQL, key.Time, key.In, key.Out, documentType).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t clickhouseTable) deleteDirty(ctx context.Context, key model.RecordKey, documentType string) error {
	return t.conn.Exec(ctx, deleteDirtySQL, key.Time, key.In, key.Out, documentType)
}

func (t clickhouseTable) insert(ctx context.Context, records []model.PriceRecord) error {
	batch, err := t.conn.PrepareBatch(ctx, insertPricesSQL)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, rec := range records {
		if err := batch.Append(
			rec.Time.UTC(),
			rec.Domains.In,
			rec.Domains.Out,
			rec.DocumentType,
			rec.Currency,
			rec.PriceMeasureUnit,
			rec.CurveType,
			rec.Price.InexactFloat64(),
			rec.TaxPercentage,
			uint8(0),
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	return batch.Send()
}

func (t clickhouseTable) latest(ctx context.Context, pair model.DomainPair, documentType string) (time.Time, bool, error) {
	rows, err := t.conn.Query(ctx, latestCleanTimeSQL, pair.In, pair.Out, documentType)
	if err != nil {
		return time.Time{}, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return time.Time{}, false, rows.Err()
	}
	var latest time.Time
	if err := rows.Scan(&latest); err != nil {
		return time.Time{}, false, err
	}
	return latest.UTC(), true, nil
}

// AppendBackend writes into an append-only ReplacingMergeTree table. Rows
// flagged dirty at a key are deleted before the fresh value is inserted; clean
// duplicates collapse on merge.
type AppendBackend struct {
	table        appendTable
	documentType string
	logger       zerolog.Logger
}

// NewAppendBackend wraps a ClickHouse connection.
func NewAppendBackend(conn driver.Conn, documentType string, logger zerolog.Logger) *AppendBackend {
	return newAppendBackend(clickhouseTable{conn: conn}, documentType, logger)
}

func newAppendBackend(table appendTable, documentType string, logger zerolog.Logger) *AppendBackend {
	if documentType == "" {
		documentType = model.DocumentTypeDayAhead
	}
	return &AppendBackend{
		table:        table,
		documentType: documentType,
		logger:       logger.With().Str("component", "clickhouse_backend").Logger(),
	}
}

// Name implements Backend.
func (b *AppendBackend) Name() string { return "clickhouse" }

// Upsert replaces dirty rows and inserts the records as one batch. Records whose
// dirty check fails are left out and reported in Summary.Failed.
func (b *AppendBackend) Upsert(ctx context.Context, records []model.PriceRecord) (Summary, error) {
	summary := Summary{Backend: b.Name()}
	if len(records) == 0 {
		return summary, nil
	}

	pending := make([]model.PriceRecord, 0, len(records))
	for _, rec := range records {
		key := rec.Key()
		dirty, err := b.table.dirtyExists(ctx, key, b.documentType)
		if err != nil {
			b.logger.Warn().Err(err).Str("key", key.String()).Msg("dirty check failed")
			summary.Failed = append(summary.Failed, key)
			continue
		}
		if dirty {
			if err := b.table.deleteDirty(ctx, key, b.documentType); err != nil {
				b.logger.Warn().Err(err).Str("key", key.String()).Msg("delete dirty row failed")
				summary.Failed = append(summary.Failed, key)
				continue
			}
			summary.Replaced++
		}
		pending = append(pending, rec)
	}

	if len(pending) > 0 {
		if err := b.table.insert(ctx, pending); err != nil {
			for _, rec := range pending {
				summary.Failed = append(summary.Failed, rec.Key())
			}
			return summary, fmt.Errorf("insert prices: %w", err)
		}
		summary.Written = len(pending)
	}

	if len(summary.Failed) > 0 {
		return summary, fmt.Errorf("%w: %d of %d records", ErrPartialWrite, len(summary.Failed), len(records))
	}
	return summary, nil
}

// LatestTime implements Backend. Dirty rows are not considered durable.
func (b *AppendBackend) LatestTime(ctx context.Context, pair model.DomainPair) (time.Time, bool) {
	latest, ok, err := b.table.latest(ctx, pair, b.documentType)
	if err != nil {
		b.logger.Warn().Err(err).Str("pair", pair.String()).Msg("latest time lookup failed")
		return time.Time{}, false
	}
	return latest, ok
}

var _ Backend = (*AppendBackend)(nil)
