package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dayahead/internal/model"
	"dayahead/internal/planner"
)

const defaultBaseURL = "https://web-api.tp.entsoe.eu/api"

// Options parameterise the transparency platform client.
type Options struct {
	BaseURL       string
	SecurityToken string
	DocumentType  string
	Timeout       time.Duration
	UserAgent     string
}

// Client fetches day-ahead price documents from the ENTSO-E transparency platform.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a platform client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if opts.DocumentType == "" {
		opts.DocumentType = model.DocumentTypeDayAhead
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "entsoe_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchDocument requests the document for pair covering window.
func (c *Client) FetchDocument(ctx context.Context, pair model.DomainPair, window planner.Window) (*Document, error) {
	if c.opts.SecurityToken == "" {
		return nil, &TransportError{Err: fmt.Errorf("security token not configured")}
	}
	if err := pair.Validate(); err != nil {
		return nil, &TransportError{Err: err}
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("invalid base url: %w", err)}
	}

	q := endpoint.Query()
	q.Set("securityToken", c.opts.SecurityToken)
	q.Set("documentType", c.opts.DocumentType)
	q.Set("in_Domain", pair.In)
	q.Set("out_Domain", pair.Out)
	q.Set("TimeInterval", FormatInterval(window))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/xml")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "dayahead/1.0")
	}

	c.logger.Debug().Str("pair", pair.String()).
		Str("interval", FormatInterval(window)).
		Msg("requesting document")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: resp.StatusCode, Reason: acknowledgementReason(payload)}
	}

	doc, err := ParseDocument(payload)
	if err != nil {
		return nil, err
	}

	if created, err := doc.CreatedAt(); err == nil {
		c.logger.Info().Str("pair", pair.String()).
			Time("created_at", created).
			Int("time_series", len(doc.TimeSeries)).
			Msg("fetched document")
	}
	return doc, nil
}

// FormatInterval renders a window as the platform's TimeInterval parameter.
// Only whole hours are accepted upstream.
func FormatInterval(w planner.Window) string {
	return w.Start.UTC().Format("2006-01-02T15:00Z") + "/" + w.End.UTC().Format("2006-01-02T15:00Z")
}

var _ DocumentFetcher = (*Client)(nil)
