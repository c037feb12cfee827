package locations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/geocode"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opMaintenanceNew = "locations.maintenance.new"
	opBackfill       = "locations.backfill_coordinates"
	opDeduplicate    = "locations.deduplicate"
)

// Matches sessions.Session's table binding. Maintenance repoints session
// foreign keys with raw SQL to avoid importing the sessions package.
const sessionsTable = "consumption_sessions"

var errMissingGeocoder = errors.New("geocoder is required")

// BatchError records a single failed record in a batch run.
type BatchError struct {
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

// BackfillReport summarizes a coordinate backfill run.
type BackfillReport struct {
	Processed int          `json:"processed"`
	Updated   int          `json:"updated"`
	Errors    []BatchError `json:"errors"`
}

// DedupeReport summarizes a deduplication run.
type DedupeReport struct {
	Groups int          `json:"groups"`
	Merged int          `json:"merged"`
	Errors []BatchError `json:"errors"`
}

// MaintenanceConfig describes the dependencies for batch location upkeep.
type MaintenanceConfig struct {
	Database *gorm.DB
	Geocoder geocode.Lookup
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Maintenance runs the manual batch routines: geocoding backfill and
// duplicate merging. Both process records sequentially and keep partial
// progress; a bad record never aborts the batch.
type Maintenance struct {
	db       *gorm.DB
	geocoder geocode.Lookup
	clock    func() time.Time
	logger   *zap.Logger
}

// NewMaintenance constructs the maintenance service. The geocoder may be nil
// when only deduplication is needed.
func NewMaintenance(cfg MaintenanceConfig) (*Maintenance, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opMaintenanceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Maintenance{db: cfg.Database, geocoder: cfg.Geocoder, clock: clock, logger: logger}, nil
}

// BackfillCoordinates geocodes every location without coordinates. Geocoding
// failures and empty matches leave the record untouched; address components
// are filled only when currently blank.
func (m *Maintenance) BackfillCoordinates(ctx context.Context) (BackfillReport, error) {
	if m.geocoder == nil {
		return BackfillReport{}, newServiceError(opBackfill, "missing_geocoder", errMissingGeocoder)
	}

	var pending []Location
	if err := m.db.WithContext(ctx).
		Where("latitude IS NULL OR longitude IS NULL").
		Order("created_at ASC").
		Find(&pending).Error; err != nil {
		return BackfillReport{}, newServiceError(opBackfill, "query_failed", err)
	}

	report := BackfillReport{Errors: []BatchError{}}
	for _, record := range pending {
		report.Processed++

		result, err := m.geocoder.Lookup(ctx, record.FullAddress)
		if err != nil {
			report.Errors = append(report.Errors, BatchError{
				LocationID: record.LocationID,
				Name:       record.Name,
				Reason:     err.Error(),
			})
			m.logger.Warn("geocode backfill failed for location",
				zap.String("location_id", record.LocationID),
				zap.Error(err))
			continue
		}
		if !result.Found() {
			continue
		}

		updates := map[string]interface{}{
			"latitude":  *result.Latitude,
			"longitude": *result.Longitude,
		}
		if record.City == "" && result.City != "" {
			updates["city"] = result.City
		}
		if record.State == "" && result.State != "" {
			updates["state"] = result.State
		}
		if record.Country == "" && result.Country != "" {
			updates["country"] = result.Country
		}

		if err := m.db.WithContext(ctx).Model(&Location{}).
			Where("location_id = ?", record.LocationID).
			Updates(updates).Error; err != nil {
			report.Errors = append(report.Errors, BatchError{
				LocationID: record.LocationID,
				Name:       record.Name,
				Reason:     err.Error(),
			})
			continue
		}
		report.Updated++
	}

	m.logger.Info("coordinate backfill finished",
		zap.Int("processed", report.Processed),
		zap.Int("updated", report.Updated),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

// Deduplicate merges locations sharing the same name key into the earliest
// record: usage counts are summed, session references repointed, and the
// duplicates removed. This is the sanctioned cleanup for the resolve race.
func (m *Maintenance) Deduplicate(ctx context.Context) (DedupeReport, error) {
	var records []Location
	if err := m.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return DedupeReport{}, newServiceError(opDeduplicate, "query_failed", err)
	}

	groups := make(map[string][]Location)
	order := make([]string, 0)
	for _, record := range records {
		if _, seen := groups[record.Name]; !seen {
			order = append(order, record.Name)
		}
		groups[record.Name] = append(groups[record.Name], record)
	}

	report := DedupeReport{Errors: []BatchError{}}
	for _, name := range order {
		group := groups[name]
		if len(group) < 2 {
			continue
		}
		report.Groups++

		keeper := group[0]
		extraUsage := int64(0)
		lastUsed := keeper.LastUsedAt

		for _, duplicate := range group[1:] {
			err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				repoint := fmt.Sprintf("UPDATE %s SET location_id = ? WHERE location_id = ?", sessionsTable)
				if err := tx.Exec(repoint, keeper.LocationID, duplicate.LocationID).Error; err != nil {
					return err
				}
				return tx.Where("location_id = ?", duplicate.LocationID).Delete(&Location{}).Error
			})
			if err != nil {
				report.Errors = append(report.Errors, BatchError{
					LocationID: duplicate.LocationID,
					Name:       duplicate.Name,
					Reason:     err.Error(),
				})
				continue
			}
			extraUsage += duplicate.UsageCount
			if duplicate.LastUsedAt.After(lastUsed) {
				lastUsed = duplicate.LastUsedAt
			}
			report.Merged++
		}

		if extraUsage > 0 {
			updates := map[string]interface{}{
				"usage_count":  gorm.Expr("usage_count + ?", extraUsage),
				"last_used_at": lastUsed,
			}
			if err := m.db.WithContext(ctx).Model(&Location{}).
				Where("location_id = ?", keeper.LocationID).
				Updates(updates).Error; err != nil {
				report.Errors = append(report.Errors, BatchError{
					LocationID: keeper.LocationID,
					Name:       keeper.Name,
					Reason:     err.Error(),
				})
			}
		}
	}

	m.logger.Info("location deduplication finished",
		zap.Int("groups", report.Groups),
		zap.Int("merged", report.Merged),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}
