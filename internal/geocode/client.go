package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Result carries the optional components a geocoder can supply. Missing
// fields stay nil/empty; callers treat a sparse result as a partial success.
type Result struct {
	Latitude  *float64
	Longitude *float64
	City      string
	State     string
	Country   string
}

// Found reports whether the lookup produced coordinates.
func (r Result) Found() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Lookup resolves a free-text address into optional coordinates and
// address components. Failures are expected to be non-fatal to callers.
type Lookup interface {
	Lookup(ctx context.Context, address string) (Result, error)
}

var errMissingBaseURL = errors.New("geocode: base url is required")

// ClientConfig describes the dependencies for the HTTP geocoding client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client queries a Nominatim-style search endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs the geocoding client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errMissingBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: cfg.BaseURL, httpClient: httpClient, logger: logger}, nil
}

type nominatimRow struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// Lookup queries the search endpoint for the first match. An empty match set
// returns a zero Result with no error; only transport and decode problems
// surface as errors.
func (c *Client) Lookup(ctx context.Context, address string) (Result, error) {
	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "jsonv2")
	query.Set("addressdetails", "1")
	query.Set("limit", "1")

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return Result{}, err
	}
	request.Header.Set("User-Agent", "cyrustrack/1.0")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return Result{}, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("geocode: unexpected status %d", response.StatusCode)
	}

	var rows []nominatimRow
	if err := json.NewDecoder(response.Body).Decode(&rows); err != nil {
		return Result{}, fmt.Errorf("geocode: decode response: %w", err)
	}
	if len(rows) == 0 {
		c.logger.Debug("geocode lookup returned no match", zap.String("address", address))
		return Result{}, nil
	}

	row := rows[0]
	result := Result{
		State:   row.Address.State,
		Country: row.Address.Country,
	}
	result.City = firstNonEmpty(row.Address.City, row.Address.Town, row.Address.Village)

	if lat, err := strconv.ParseFloat(row.Lat, 64); err == nil {
		if lon, err := strconv.ParseFloat(row.Lon, 64); err == nil {
			result.Latitude = &lat
			result.Longitude = &lon
		}
	}

	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
