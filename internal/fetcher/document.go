package fetcher

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dayahead/internal/series"
)

// intervalLayout is the minute-precision format used in time intervals.
const intervalLayout = "2006-01-02T15:04Z"

// Document is a Publication_MarketDocument.
type Document struct {
	XMLName         xml.Name     `xml:"Publication_MarketDocument"`
	MRID            string       `xml:"mRID"`
	RevisionNumber  string       `xml:"revisionNumber"`
	Type            string       `xml:"type"`
	CreatedDateTime string       `xml:"createdDateTime"`
	TimeInterval    TimeInterval `xml:"period.timeInterval"`
	TimeSeries      []TimeSeries `xml:"TimeSeries"`
}

// TimeSeries groups the periods of one published curve.
type TimeSeries struct {
	MRID             string   `xml:"mRID"`
	BusinessType     string   `xml:"businessType"`
	InDomain         string   `xml:"in_Domain.mRID"`
	OutDomain        string   `xml:"out_Domain.mRID"`
	Currency         string   `xml:"currency_Unit.name"`
	PriceMeasureUnit string   `xml:"price_Measure_Unit.name"`
	CurveType        string   `xml:"curveType"`
	Periods          []Period `xml:"Period"`
}

// TimeInterval is a start/end pair as published.
type TimeInterval struct {
	Start string `xml:"start"`
	End   string `xml:"end"`
}

// Period is one reporting period with sparse points.
type Period struct {
	TimeInterval TimeInterval `xml:"timeInterval"`
	Resolution   string       `xml:"resolution"`
	Points       []Point      `xml:"Point"`
}

// Point is a published price at a 1-based position.
type Point struct {
	Position int             `xml:"position"`
	Price    decimal.Decimal `xml:"price.amount"`
}

// CreatedAt parses the document creation timestamp.
func (d *Document) CreatedAt() (time.Time, error) {
	return ParseInstant(d.CreatedDateTime)
}

// Series converts the period into an expandable series.Period.
func (p Period) Series() (series.Period, error) {
	start, err := ParseInstant(p.TimeInterval.Start)
	if err != nil {
		return series.Period{}, fmt.Errorf("period start: %w", err)
	}
	end, err := ParseInstant(p.TimeInterval.End)
	if err != nil {
		return series.Period{}, fmt.Errorf("period end: %w", err)
	}
	resolution, err := series.ParseResolution(strings.TrimSpace(p.Resolution))
	if err != nil {
		return series.Period{}, err
	}

	points := make(map[int]decimal.Decimal, len(p.Points))
	for _, pt := range p.Points {
		if pt.Position < 1 {
			return series.Period{}, fmt.Errorf("point position %d out of range", pt.Position)
		}
		points[pt.Position] = pt.Price
	}

	return series.Period{Start: start, End: end, Resolution: resolution, Points: points}, nil
}

// ParseDocument decodes a price document. Acknowledgement documents, which the
// platform sends instead of data, are reported as *TransportError.
func ParseDocument(payload []byte) (*Document, error) {
	root, err := rootElement(payload)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	switch root {
	case "Publication_MarketDocument":
		var doc Document
		if err := xml.Unmarshal(payload, &doc); err != nil {
			return nil, &ParseError{Err: err}
		}
		return &doc, nil
	case "Acknowledgement_MarketDocument":
		return nil, &TransportError{StatusCode: 200, Reason: acknowledgementReason(payload)}
	default:
		return nil, &ParseError{Err: fmt.Errorf("unexpected root element %q", root)}
	}
}

type acknowledgement struct {
	Reasons []struct {
		Code string `xml:"code"`
		Text string `xml:"text"`
	} `xml:"Reason"`
}

func acknowledgementReason(payload []byte) string {
	var ack acknowledgement
	if err := xml.Unmarshal(payload, &ack); err != nil || len(ack.Reasons) == 0 {
		return strings.TrimSpace(string(payload))
	}
	parts := make([]string, 0, len(ack.Reasons))
	for _, r := range ack.Reasons {
		text := strings.TrimSpace(r.Text)
		if r.Code != "" {
			text = r.Code + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "; ")
}

func rootElement(payload []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New("empty document")
			}
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// ParseInstant accepts the platform's minute layout or RFC3339.
func ParseInstant(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(intervalLayout, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", v)
	}
	return t.UTC(), nil
}
