package calgaryapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"calmap/internal/domain"
)

// DefaultBaseURL is the Calgary 3D Buildings Citywide dataset (cchr-krqg).
const DefaultBaseURL = "https://data.calgary.ca/resource/cchr-krqg.json"

const (
	// areaLimit bounds an explicit target-area or bbox request.
	areaLimit = 5000
	// retryLimit is used for the one-shot fallback after a zone timeout.
	retryLimit = 300

	defaultAreaTimeout  = 30 * time.Second
	defaultZoneTimeout  = 15 * time.Second
	defaultRetryTimeout = 10 * time.Second
)

// Client fetches raw building records from the Calgary open-data API.
// The endpoint has no server-side bbox filtering, so callers always get a
// size-limited batch and filter client-side.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	areaTimeout  time.Duration
	zoneTimeout  time.Duration
	retryTimeout time.Duration
}

func New(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:       logger.With("component", "calgary_api"),
		areaTimeout:  defaultAreaTimeout,
		zoneTimeout:  defaultZoneTimeout,
		retryTimeout: defaultRetryTimeout,
	}
}

// WithTimeouts overrides the per-mode request timeouts. Zero values keep
// the current setting.
func (c *Client) WithTimeouts(area, zone, retry time.Duration) *Client {
	if area > 0 {
		c.areaTimeout = area
	}
	if zone > 0 {
		c.zoneTimeout = zone
	}
	if retry > 0 {
		c.retryTimeout = retry
	}
	return c
}

// FetchArea issues one fixed-size request for a target-area or bbox
// pipeline. Failures propagate: explicit area requests fail loud.
func (c *Client) FetchArea(ctx context.Context) ([]domain.RawBuilding, error) {
	return c.fetch(ctx, areaLimit, c.areaTimeout)
}

// FetchZone issues an adaptively sized request for an interactive zone.
// On timeout it retries once with a much smaller limit; if that also
// fails, or on any other request error, the error is returned for the
// caller to degrade to an empty result.
func (c *Client) FetchZone(ctx context.Context, bbox domain.BoundingBox) ([]domain.RawBuilding, error) {
	limit := zoneLimit(bbox.Area())

	records, err := c.fetch(ctx, limit, c.zoneTimeout)
	if err == nil {
		return records, nil
	}
	if !isTimeout(err) {
		return nil, err
	}

	c.logger.Warn("zone fetch timed out, retrying with reduced limit",
		"bbox", bbox.String(),
		"limit", limit,
		"retry_limit", retryLimit,
	)

	records, err = c.fetch(ctx, retryLimit, c.retryTimeout)
	if err != nil {
		return nil, fmt.Errorf("zone fetch retry: %w", err)
	}
	return records, nil
}

// zoneLimit picks a request size from the zone's area in square degrees.
// Small zones get small batches to keep interactive panning responsive.
func zoneLimit(areaDeg float64) int {
	switch {
	case areaDeg < 0.001:
		return 500
	case areaDeg < 0.01:
		return 1000
	default:
		return 1500
	}
}

func (c *Client) fetch(ctx context.Context, limit int, timeout time.Duration) ([]domain.RawBuilding, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := url.Values{}
	params.Set("$limit", strconv.Itoa(limit))
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var records []domain.RawBuilding
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	c.logger.Debug("fetched buildings",
		"count", len(records),
		"limit", limit,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
