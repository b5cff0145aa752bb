package series

import (
	"fmt"
	"iter"
	"time"

	"github.com/shopspring/decimal"
)

// Period is one published reporting period: a half-open interval stepped by
// Resolution, with prices keyed by 1-based position. Positions may be missing.
type Period struct {
	Start      time.Time
	End        time.Time
	Resolution time.Duration
	Points     map[int]decimal.Decimal
}

// Sample is a single expanded timestamp.
type Sample struct {
	Time     time.Time
	Position int
	Price    decimal.Decimal
	// Filled is true when the price was carried forward from an earlier position.
	Filled bool
}

// Expand returns every timestamp of the period in order. Missing positions
// repeat the last published price, or zero before the first one. The returned
// sequence holds no state between iterations.
func Expand(p Period) (iter.Seq[Sample], error) {
	if p.Resolution <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResolution, p.Resolution)
	}
	if p.End.Before(p.Start) {
		return nil, fmt.Errorf("series: period ends %s before it starts %s", p.End.Format(time.RFC3339), p.Start.Format(time.RFC3339))
	}

	return func(yield func(Sample) bool) {
		last := decimal.Zero
		for current := p.Start; current.Before(p.End); current = current.Add(p.Resolution) {
			position := 1 + int(current.Sub(p.Start)/p.Resolution)
			sample := Sample{Time: current, Position: position}
			if price, ok := p.Points[position]; ok {
				last = price
				sample.Price = price
			} else {
				sample.Price = last
				sample.Filled = true
			}
			if !yield(sample) {
				return
			}
		}
	}, nil
}

// Len returns the number of samples Expand would produce.
func (p Period) Len() int {
	if p.Resolution <= 0 || !p.Start.Before(p.End) {
		return 0
	}
	n := p.End.Sub(p.Start) / p.Resolution
	if p.Start.Add(n * p.Resolution).Before(p.End) {
		n++
	}
	return int(n)
}
