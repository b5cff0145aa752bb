package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dayahead/internal/model"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	listPricesBetweenSQL = `SELECT
        time,
        in_domain,
        out_domain,
        document_type,
        currency,
        price_measure_unit,
        curve_type,
        price::text,
        tax_percentage
    FROM day_ahead_prices
    WHERE in_domain = $1
      AND out_domain = $2
      AND time >= $3
      AND time < $4
    ORDER BY time;`

	listRecentPricesSQL = `SELECT
        time,
        in_domain,
        out_domain,
        document_type,
        currency,
        price_measure_unit,
        curve_type,
        price::text,
        tax_percentage
    FROM day_ahead_prices
    WHERE in_domain = $1
      AND out_domain = $2
    ORDER BY time DESC
    LIMIT $3;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PriceReader lists stored prices for reporting commands.
type PriceReader interface {
	ListPricesBetween(ctx context.Context, pair model.DomainPair, from, to time.Time) ([]StoredPrice, error)
	ListRecentPrices(ctx context.Context, pair model.DomainPair, limit int) ([]StoredPrice, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store gives read access to stored prices and cross-process locking.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
// The lock is session scoped, so the connection is held until unlock.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// a broken session drops its locks anyway
			conn.Conn().Close(ctxUnlock)
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListPricesBetween lists prices for pair within [from, to).
func (s *Store) ListPricesBetween(ctx context.Context, pair model.DomainPair, from, to time.Time) ([]StoredPrice, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPricesBetweenSQL, pair.In, pair.Out, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list prices between: %w", queryErr)
	}
	defer rows.Close()

	return collectPrices(rows, 0)
}

// ListRecentPrices lists the most recent prices ordered by descending time.
func (s *Store) ListRecentPrices(ctx context.Context, pair model.DomainPair, limit int) ([]StoredPrice, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPricesSQL, pair.In, pair.Out, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent prices: %w", queryErr)
	}
	defer rows.Close()

	return collectPrices(rows, limit)
}

func collectPrices(rows pgx.Rows, capacity int) ([]StoredPrice, error) {
	prices := make([]StoredPrice, 0, capacity)
	for rows.Next() {
		price, scanErr := scanPrice(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		prices = append(prices, price)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return prices, nil
}

func scanPrice(rows pgx.Rows) (StoredPrice, error) {
	var (
		p        StoredPrice
		priceStr string
	)
	if err := rows.Scan(
		&p.Time,
		&p.Domains.In,
		&p.Domains.Out,
		&p.DocumentType,
		&p.Currency,
		&p.PriceMeasureUnit,
		&p.CurveType,
		&priceStr,
		&p.TaxPercentage,
	); err != nil {
		return StoredPrice{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return StoredPrice{}, fmt.Errorf("parse price: %w", err)
	}
	p.Price = price
	p.Time = p.Time.UTC()
	return p, nil
}

var (
	_ PriceReader    = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
