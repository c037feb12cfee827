package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
)

var errMissingBaseURL = errors.New("base URL is required")

// APIBackendConfig describes the remote REST endpoint.
type APIBackendConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// APIBackend talks to the server's /api/sessions endpoints over JSON.
type APIBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIBackend constructs the remote backend.
func NewAPIBackend(cfg APIBackendConfig) (*APIBackend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("persistence: %w", errMissingBaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &APIBackend{baseURL: strings.TrimRight(cfg.BaseURL, "/"), httpClient: client}, nil
}

// GetAll fetches every session from the server.
func (b *APIBackend) GetAll(ctx context.Context) ([]sessions.Record, error) {
	var records []sessions.Record
	if err := b.do(ctx, http.MethodGet, "/api/sessions", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetFiltered fetches sessions matching the filter via query parameters.
func (b *APIBackend) GetFiltered(ctx context.Context, filter sessions.Filter) ([]sessions.Record, error) {
	values := url.Values{}
	setNonEmpty(values, "start_date", filter.StartDate)
	setNonEmpty(values, "end_date", filter.EndDate)
	setNonEmpty(values, "strain", filter.Strain)
	setNonEmpty(values, "location", filter.Location)
	setNonEmpty(values, "vessel", filter.Vessel)
	setNonEmpty(values, "vessel_exact", filter.VesselExact)
	setNonEmpty(values, "vessel_category", filter.VesselCategory)
	if filter.Limit > 0 {
		values.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		values.Set("offset", strconv.Itoa(filter.Offset))
	}

	path := "/api/sessions"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var records []sessions.Record
	if err := b.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Create posts a new session and returns the stored record.
func (b *APIBackend) Create(ctx context.Context, record sessions.Record) (sessions.Record, error) {
	var created sessions.Record
	if err := b.do(ctx, http.MethodPost, "/api/sessions", record, &created); err != nil {
		return sessions.Record{}, err
	}
	return created, nil
}

// Update replaces the session with the given id.
func (b *APIBackend) Update(ctx context.Context, id string, record sessions.Record) (sessions.Record, error) {
	var updated sessions.Record
	path := "/api/sessions/" + url.PathEscape(id)
	if err := b.do(ctx, http.MethodPut, path, record, &updated); err != nil {
		return sessions.Record{}, err
	}
	return updated, nil
}

// Delete removes the session with the given id.
func (b *APIBackend) Delete(ctx context.Context, id string) (bool, error) {
	path := "/api/sessions/" + url.PathEscape(id)
	err := b.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Clear removes every session from the server.
func (b *APIBackend) Clear(ctx context.Context) error {
	return b.do(ctx, http.MethodDelete, "/api/sessions", nil, nil)
}

// StatusError reports a non-2xx response from the remote API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("persistence: remote responded %d: %s", e.StatusCode, e.Body)
}

func (b *APIBackend) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("persistence: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("persistence: build request: %w", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := b.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("persistence: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return &StatusError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("persistence: decode response: %w", err)
	}
	return nil
}

func setNonEmpty(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}
