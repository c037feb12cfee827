package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
)

var (
	errMissingRemote = errors.New("remote backend is required")
	errMissingLocal  = errors.New("local backend is required")

	noOpLogger = zap.NewNop()
)

// FallbackStoreConfig wires the two backends together.
type FallbackStoreConfig struct {
	Remote Backend
	Local  LocalBackend
	Logger *zap.Logger
}

// FallbackStore tries the remote backend first and falls back to the local
// file store when the remote is unreachable. Records created locally stay
// local until Sync pushes them to the remote; nothing is ever deleted or
// overwritten during a sync.
type FallbackStore struct {
	remote Backend
	local  LocalBackend
	logger *zap.Logger
}

// NewFallbackStore validates the configuration and constructs the store.
func NewFallbackStore(cfg FallbackStoreConfig) (*FallbackStore, error) {
	if cfg.Remote == nil {
		return nil, fmt.Errorf("persistence: %w", errMissingRemote)
	}
	if cfg.Local == nil {
		return nil, fmt.Errorf("persistence: %w", errMissingLocal)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &FallbackStore{remote: cfg.Remote, local: cfg.Local, logger: logger}, nil
}

// GetAll reads from the remote, falling back to the local file.
func (s *FallbackStore) GetAll(ctx context.Context) ([]sessions.Record, error) {
	records, err := s.remote.GetAll(ctx)
	if err == nil {
		return records, nil
	}
	s.warnFallback("get_all", err)
	return s.local.GetAll(ctx)
}

// GetFiltered reads matching records from the remote, falling back to the
// local file with the same filter semantics.
func (s *FallbackStore) GetFiltered(ctx context.Context, filter sessions.Filter) ([]sessions.Record, error) {
	records, err := s.remote.GetFiltered(ctx, filter)
	if err == nil {
		return records, nil
	}
	s.warnFallback("get_filtered", err)
	return s.local.GetFiltered(ctx, filter)
}

// Create writes to the remote, falling back to the local file. Locally
// created records get an id and timestamps from the local backend.
func (s *FallbackStore) Create(ctx context.Context, record sessions.Record) (sessions.Record, error) {
	created, err := s.remote.Create(ctx, record)
	if err == nil {
		return created, nil
	}
	s.warnFallback("create", err)
	return s.local.Create(ctx, record)
}

// Update writes to the remote, falling back to the local file.
func (s *FallbackStore) Update(ctx context.Context, id string, record sessions.Record) (sessions.Record, error) {
	updated, err := s.remote.Update(ctx, id, record)
	if err == nil {
		return updated, nil
	}
	s.warnFallback("update", err)
	return s.local.Update(ctx, id, record)
}

// Delete removes from the remote, falling back to the local file.
func (s *FallbackStore) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.remote.Delete(ctx, id)
	if err == nil {
		return deleted, nil
	}
	s.warnFallback("delete", err)
	return s.local.Delete(ctx, id)
}

// Clear empties the remote set, falling back to the local file.
func (s *FallbackStore) Clear(ctx context.Context) error {
	err := s.remote.Clear(ctx)
	if err == nil {
		return nil
	}
	s.warnFallback("clear", err)
	return s.local.Clear(ctx)
}

// SyncReport summarizes a manual sync run.
type SyncReport struct {
	Synced int         `json:"synced"`
	Errors []SyncError `json:"errors,omitempty"`
}

// SyncError records one record that could not be pushed.
type SyncError struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// Sync pushes local-only records to the remote. It compares id sets and
// re-creates any record the remote is missing; it never deletes remote
// records, never overwrites remote records, and never removes local ones.
func (s *FallbackStore) Sync(ctx context.Context) (SyncReport, error) {
	remoteRecords, err := s.remote.GetAll(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("persistence: sync read remote: %w", err)
	}
	localRecords, err := s.local.GetAll(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("persistence: sync read local: %w", err)
	}

	remoteIDs := make(map[string]struct{}, len(remoteRecords))
	for _, record := range remoteRecords {
		remoteIDs[record.ID] = struct{}{}
	}

	report := SyncReport{}
	for _, record := range localRecords {
		if _, exists := remoteIDs[record.ID]; exists {
			continue
		}
		if _, err := s.remote.Create(ctx, record); err != nil {
			report.Errors = append(report.Errors, SyncError{RecordID: record.ID, Reason: err.Error()})
			s.logger.Warn("sync push failed",
				zap.String("record_id", record.ID),
				zap.Error(err),
			)
			continue
		}
		report.Synced++
	}
	return report, nil
}

// ExportData serializes every reachable record as indented JSON.
func (s *FallbackStore) ExportData(ctx context.Context) ([]byte, error) {
	records, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("persistence: encode export: %w", err)
	}
	return data, nil
}

// ImportLocal replaces the local file wholesale from a JSON export.
// Malformed input fails before any write, leaving existing data intact.
func (s *FallbackStore) ImportLocal(ctx context.Context, data []byte) (int, error) {
	var records []sessions.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("persistence: parse import: %w", err)
	}
	if err := s.local.Replace(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *FallbackStore) warnFallback(operation string, err error) {
	s.logger.Warn("remote backend unavailable, using local file",
		zap.String("operation", operation),
		zap.Error(err),
	)
}
