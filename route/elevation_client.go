package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/time/rate"
)

const (
	// DefaultFetchTimeout is the default HTTP request timeout for elevation lookups.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of attempts per batch.
	DefaultMaxRetries = 3

	// defaultBaseBackoff is the base delay for exponential backoff.
	defaultBaseBackoff = 500 * time.Millisecond

	// maxResponseBytes limits the response body to 10 MB.
	maxResponseBytes = 10 << 20
)

// FetchOption configures the elevation client.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	client      *http.Client
}

func defaultFetchConfig() fetchConfig {
	return fetchConfig{
		timeout:     DefaultFetchTimeout,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of attempts per batch.
func WithMaxRetries(n int) FetchOption {
	return func(c *fetchConfig) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the base delay for exponential backoff between retries.
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.baseBackoff = d
	}
}

// WithHTTPClient overrides the default HTTP client (useful for testing).
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) {
		c.client = client
	}
}

type elevationLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type elevationRequest struct {
	Locations []elevationLocation `json:"locations"`
}

type elevationResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

// ElevationClient queries an Open-Elevation compatible lookup service.
// Batches are paced so consecutive requests are at least the configured
// delay apart.
type ElevationClient struct {
	url       string
	batchSize int
	limiter   *rate.Limiter
	cfg       fetchConfig
	client    *http.Client
}

// NewElevationClient creates a client from the elevation config section.
func NewElevationClient(ec ElevationConfig, opts ...FetchOption) *ElevationClient {
	cfg := defaultFetchConfig()
	if ec.Timeout > 0 {
		cfg.timeout = ec.Timeout
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}

	limit := rate.Inf
	if ec.BatchDelay > 0 {
		limit = rate.Every(ec.BatchDelay)
	}
	url := ec.URL
	if url == "" {
		url = DefaultElevationURL
	}
	batch := ec.BatchSize
	if batch <= 0 {
		batch = DefaultElevationBatchSize
	}

	return &ElevationClient{
		url:       url,
		batchSize: batch,
		limiter:   rate.NewLimiter(limit, 1),
		cfg:       cfg,
		client:    client,
	}
}

// Lookup returns one elevation per point, in order.
func (c *ElevationClient) Lookup(ctx context.Context, points []GeoPoint) ([]float64, error) {
	out := make([]float64, 0, len(points))
	for start := 0; start < len(points); start += c.batchSize {
		end := min(start+c.batchSize, len(points))
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("elevation lookup: %w", err)
		}
		elevations, err := c.lookupBatch(ctx, points[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, elevations...)
	}
	return out, nil
}

func (c *ElevationClient) lookupBatch(ctx context.Context, points []GeoPoint) ([]float64, error) {
	req := elevationRequest{Locations: make([]elevationLocation, len(points))}
	for i, p := range points {
		req.Locations[i] = elevationLocation{Latitude: p.Lat, Longitude: p.Lon}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling elevation request: %w", err)
	}

	var lastErr error
	for attempt := range c.cfg.maxRetries {
		if attempt > 0 {
			backoff := c.cfg.baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("elevation lookup: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		body, err := doPost(ctx, c.client, c.url, payload)
		if err != nil {
			lastErr = err
			continue
		}

		var resp elevationResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			// Parse errors are not transient; do not retry.
			return nil, fmt.Errorf("elevation lookup: parsing response: %w", err)
		}
		if len(resp.Results) != len(points) {
			return nil, fmt.Errorf("elevation lookup: got %d results for %d locations", len(resp.Results), len(points))
		}
		out := make([]float64, len(resp.Results))
		for i, r := range resp.Results {
			out[i] = r.Elevation
		}
		return out, nil
	}

	return nil, fmt.Errorf("elevation lookup: all %d attempts failed: %w", c.cfg.maxRetries, lastErr)
}

// doPost performs a single JSON POST and returns the response body bytes.
func doPost(ctx context.Context, client *http.Client, url string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP POST %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP POST %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}

// ElevationCheck compares a track's own elevations with the service's.
type ElevationCheck struct {
	Samples  int     `json:"samples"`
	MeanDiff float64 `json:"meanDiff"`
	MaxDiff  float64 `json:"maxDiff"`
}

// CrossCheck samples up to samples elevated points of t and reports how far
// their elevations are from the service's. It does not change t.
func (c *ElevationClient) CrossCheck(ctx context.Context, t *Track, samples int) (*ElevationCheck, error) {
	var elevated []GeoPoint
	for _, p := range t.pointsOrNil() {
		if p.HasElevation() {
			elevated = append(elevated, p)
		}
	}
	picked := samplePoints(elevated, samples)
	if len(picked) == 0 {
		return nil, fmt.Errorf("cross-check %s: no elevated points", t.Name)
	}

	remote, err := c.Lookup(ctx, picked)
	if err != nil {
		return nil, err
	}

	diffs := make(stats.Float64Data, len(picked))
	for i, p := range picked {
		diffs[i] = math.Abs(*p.Ele - remote[i])
	}
	check := &ElevationCheck{Samples: len(picked)}
	check.MeanDiff, _ = diffs.Mean()
	check.MaxDiff, _ = diffs.Max()
	log.Printf("[elevation] %s: %d samples, mean diff %.1fm, max %.1fm", t.Name, check.Samples, check.MeanDiff, check.MaxDiff)
	return check, nil
}
