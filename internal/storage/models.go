package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"dayahead/internal/model"
)

// StoredPrice is a persisted day-ahead price row as read back from TimescaleDB.
type StoredPrice struct {
	Time             time.Time
	Domains          model.DomainPair
	DocumentType     string
	Currency         string
	PriceMeasureUnit string
	CurveType        string
	Price            decimal.Decimal
	TaxPercentage    float64
}

// Record converts the row back to its domain form.
func (p StoredPrice) Record() model.PriceRecord {
	return model.PriceRecord{
		Time:             p.Time,
		Domains:          p.Domains,
		DocumentType:     p.DocumentType,
		Currency:         p.Currency,
		PriceMeasureUnit: p.PriceMeasureUnit,
		CurveType:        p.CurveType,
		Price:            p.Price,
		TaxPercentage:    p.TaxPercentage,
	}
}

// PriceWithTax applies the stored tax percentage.
func (p StoredPrice) PriceWithTax() decimal.Decimal {
	return p.Record().PriceWithTax()
}
