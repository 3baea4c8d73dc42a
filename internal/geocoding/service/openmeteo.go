package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"meteo_backend/internal/geocoding/transport"
	"meteo_backend/platform/config"
	"meteo_backend/platform/logger"
	"meteo_backend/platform/metrics"
)

const upstreamName = "geocoding"

// Query is one request to the geocoding API.
type Query struct {
	Name        string
	CountryCode string
	Language    string
	Count       int
}

// Upstream searches cities by name.
type Upstream interface {
	Search(ctx context.Context, q Query) ([]transport.City, error)
}

// OpenMeteoClient talks to geocoding-api.open-meteo.com.
type OpenMeteoClient struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func NewOpenMeteoClient(cfg config.GeocodingConfig, log *logger.Logger) *OpenMeteoClient {
	return &OpenMeteoClient{
		baseURL: cfg.GetGeocodingURL(),
		client:  &http.Client{Timeout: cfg.GetGeocodingTimeout()},
		log:     log,
	}
}

func (c *OpenMeteoClient) Search(ctx context.Context, q Query) ([]transport.City, error) {
	params := url.Values{}
	params.Set("name", q.Name)
	params.Set("count", strconv.Itoa(q.Count))
	if q.CountryCode != "" {
		params.Set("countryCode", q.CountryCode)
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "MeteoBackend/1.0")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveUpstream(upstreamName, "transport_error", time.Since(start))
		c.log.UpstreamError(upstreamName, 0, err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveUpstream(upstreamName, "bad_status", time.Since(start))
		c.log.UpstreamError(upstreamName, resp.StatusCode, nil)
		return nil, fmt.Errorf("geocoding upstream returned %d", resp.StatusCode)
	}

	var payload transport.UpstreamResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		metrics.ObserveUpstream(upstreamName, "decode_error", time.Since(start))
		c.log.UpstreamError(upstreamName, resp.StatusCode, err)
		return nil, fmt.Errorf("decode geocoding payload: %w", err)
	}

	metrics.ObserveUpstream(upstreamName, "ok", time.Since(start))
	return payload.Results, nil
}

var _ Upstream = (*OpenMeteoClient)(nil)
