package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentTypeDayAhead is the ENTSO-E code for day-ahead price documents.
const DocumentTypeDayAhead = "A44"

// DomainPair identifies the inbound/outbound market areas a series belongs to.
type DomainPair struct {
	In  string `json:"in_domain"`
	Out string `json:"out_domain"`
}

// String renders the pair as "in/out".
func (p DomainPair) String() string {
	return p.In + "/" + p.Out
}

// Validate reports whether both domains are set.
func (p DomainPair) Validate() error {
	if strings.TrimSpace(p.In) == "" || strings.TrimSpace(p.Out) == "" {
		return errors.New("in and out domain are required")
	}
	return nil
}

// RecordKey is the upsert identity of a PriceRecord.
type RecordKey struct {
	Time time.Time
	In   string
	Out  string
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s %s/%s", k.Time.UTC().Format(time.RFC3339), k.In, k.Out)
}

// PriceRecord is one enriched day-ahead price sample.
type PriceRecord struct {
	Time             time.Time
	Domains          DomainPair
	DocumentType     string
	Currency         string
	PriceMeasureUnit string
	CurveType        string
	Price            decimal.Decimal
	TaxPercentage    float64
}

// Key returns the identity used by the storage backends.
func (r PriceRecord) Key() RecordKey {
	return RecordKey{Time: r.Time.UTC(), In: r.Domains.In, Out: r.Domains.Out}
}

// PriceWithTax applies the tax percentage to the price.
func (r PriceRecord) PriceWithTax() decimal.Decimal {
	factor := decimal.NewFromFloat(r.TaxPercentage).Div(decimal.NewFromInt(100)).Add(decimal.NewFromInt(1))
	return r.Price.Mul(factor)
}
