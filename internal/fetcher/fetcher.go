package fetcher

import (
	"context"
	"fmt"

	"dayahead/internal/model"
	"dayahead/internal/planner"
)

// DocumentFetcher retrieves the day-ahead price document covering a window.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, pair model.DomainPair, window planner.Window) (*Document, error)
}

// TransportError reports a failed request or a non-success answer from the platform.
type TransportError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("entsoe transport: %v", e.Err)
	case e.Reason != "":
		return fmt.Sprintf("entsoe api error (%d): %s", e.StatusCode, e.Reason)
	default:
		return fmt.Sprintf("entsoe api error (%d)", e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a document that could not be decoded or interpreted.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("entsoe document: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
