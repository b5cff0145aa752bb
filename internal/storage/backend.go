package storage

import (
	"context"
	"errors"
	"time"

	"dayahead/internal/model"
)

// ErrPartialWrite reports that some records of a batch could not be written.
var ErrPartialWrite = errors.New("storage: partial write")

// Summary describes the outcome of one Upsert call.
type Summary struct {
	Backend  string
	Written  int
	Replaced int
	Failed   []model.RecordKey
}

// Backend is a time-series store the synchronizer replicates prices into.
// Upsert must be safe to repeat with the same records.
type Backend interface {
	Name() string
	Upsert(ctx context.Context, records []model.PriceRecord) (Summary, error)
	// LatestTime returns the most recent durable sample for pair. Lookup
	// failures are reported as absent.
	LatestTime(ctx context.Context, pair model.DomainPair) (time.Time, bool)
}
