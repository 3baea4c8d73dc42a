package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Lookuper fetches suggestion records for a query.
type Lookuper interface {
	Lookup(ctx context.Context, query string) ([]SuggestionRecord, error)
}

// Client queries the city search endpoint with GET <endpoint>?q=<query>.
type Client struct {
	endpoint  *url.URL
	client    *http.Client
	userAgent string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client = &http.Client{Timeout: d}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient validates endpoint and builds a lookup client. Query
// parameters already present on the endpoint are kept.
func NewClient(endpoint string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse lookup endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("lookup endpoint must be http(s), got %q", endpoint)
	}

	c := &Client{
		endpoint:  u,
		client:    &http.Client{Timeout: 5 * time.Second},
		userAgent: "meteo-citysuggest/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup issues one GET request. A blank query never touches the network.
// Non-2xx statuses return *RemoteError, unparsable bodies *DecodeError.
func (c *Client) Lookup(ctx context.Context, query string) ([]SuggestionRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	reqURL := *c.endpoint
	params := reqURL.Query()
	params.Set("q", query)
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &RemoteError{StatusCode: resp.StatusCode, URL: reqURL.String()}
	}

	var records []SuggestionRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&records); err != nil {
		return nil, &DecodeError{Source: "response", Err: err}
	}

	return records, nil
}

var _ Lookuper = (*Client)(nil)
