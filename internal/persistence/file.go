package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/identity"
	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
)

var (
	errMissingPath       = errors.New("file path is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrRecordNotFound indicates an unknown record id in the local file.
	ErrRecordNotFound = errors.New("persistence: record not found")
)

// FileBackendConfig describes the on-device store.
type FileBackendConfig struct {
	Path       string
	Clock      func() time.Time
	IDProvider identity.Provider
}

// FileBackend keeps the whole record set in one JSON array on disk,
// most-recent-first. Writes replace the file atomically via a temp-file
// rename, so a failed write never corrupts existing data.
type FileBackend struct {
	path       string
	clock      func() time.Time
	idProvider identity.Provider

	mu sync.Mutex
}

// NewFileBackend constructs the file-backed store. The file is created on
// first write; a missing file reads as an empty set.
func NewFileBackend(cfg FileBackendConfig) (*FileBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("persistence: %w", errMissingPath)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("persistence: %w", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &FileBackend{path: cfg.Path, clock: clock, idProvider: cfg.IDProvider}, nil
}

// GetAll returns every stored record.
func (b *FileBackend) GetAll(_ context.Context) ([]sessions.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load()
}

// GetFiltered applies the same filter semantics as the session store:
// inclusive lexicographic date bounds, case-insensitive substrings,
// AND-composed, with limit/offset pagination.
func (b *FileBackend) GetFiltered(_ context.Context, filter sessions.Filter) ([]sessions.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.load()
	if err != nil {
		return nil, err
	}

	matched := make([]sessions.Record, 0, len(records))
	for _, record := range records {
		if matchesFilter(record, filter) {
			matched = append(matched, record)
		}
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []sessions.Record{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Create assigns any missing id and timestamps, then prepends the record.
func (b *FileBackend) Create(_ context.Context, record sessions.Record) (sessions.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.load()
	if err != nil {
		return sessions.Record{}, err
	}

	if record.ID == "" {
		id, err := b.idProvider.NewID()
		if err != nil {
			return sessions.Record{}, fmt.Errorf("persistence: generate id: %w", err)
		}
		record.ID = id
	}
	now := b.clock().UTC().Format(time.RFC3339)
	if record.CreatedAt == "" {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	records = append([]sessions.Record{record}, records...)
	if err := b.save(records); err != nil {
		return sessions.Record{}, err
	}
	return record, nil
}

// Update merges the record over the stored entry with the same id.
func (b *FileBackend) Update(_ context.Context, id string, record sessions.Record) (sessions.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.load()
	if err != nil {
		return sessions.Record{}, err
	}

	for index := range records {
		if records[index].ID == id {
			record.ID = id
			if record.CreatedAt == "" {
				record.CreatedAt = records[index].CreatedAt
			}
			record.UpdatedAt = b.clock().UTC().Format(time.RFC3339)
			records[index] = record
			if err := b.save(records); err != nil {
				return sessions.Record{}, err
			}
			return record, nil
		}
	}
	return sessions.Record{}, ErrRecordNotFound
}

// Delete removes the record with the given id, reporting false when absent.
func (b *FileBackend) Delete(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.load()
	if err != nil {
		return false, err
	}

	for index := range records {
		if records[index].ID == id {
			records = append(records[:index], records[index+1:]...)
			if err := b.save(records); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// Clear empties the record set.
func (b *FileBackend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.save([]sessions.Record{})
}

// Replace swaps the whole record set wholesale. Callers parse and validate
// before handing records over, so existing data is never half-replaced.
func (b *FileBackend) Replace(_ context.Context, records []sessions.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.save(records)
}

func (b *FileBackend) load() ([]sessions.Record, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return []sessions.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: read %s: %w", b.path, err)
	}
	if len(data) == 0 {
		return []sessions.Record{}, nil
	}

	var records []sessions.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("persistence: parse %s: %w", b.path, err)
	}
	return records, nil
}

func (b *FileBackend) save(records []sessions.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: encode records: %w", err)
	}

	dir := filepath.Dir(b.path)
	temp, err := os.CreateTemp(dir, ".cyrustrack-*")
	if err != nil {
		return fmt.Errorf("persistence: temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("persistence: write %s: %w", tempPath, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("persistence: close %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, b.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("persistence: replace %s: %w", b.path, err)
	}
	return nil
}

func matchesFilter(record sessions.Record, filter sessions.Filter) bool {
	if filter.StartDate != "" && record.Date < filter.StartDate {
		return false
	}
	if filter.EndDate != "" && record.Date > filter.EndDate {
		return false
	}
	if filter.Strain != "" && !containsFold(record.StrainName, filter.Strain) {
		return false
	}
	if filter.Location != "" && !containsFold(record.Location, filter.Location) {
		return false
	}
	if filter.Vessel != "" && !containsFold(record.Vessel, filter.Vessel) {
		return false
	}
	if filter.VesselExact != "" && record.Vessel != filter.VesselExact {
		return false
	}
	if filter.VesselCategory != "" && record.VesselCategory != filter.VesselCategory {
		return false
	}
	return true
}

func containsFold(value, term string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(strings.TrimSpace(term)))
}
