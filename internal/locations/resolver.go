package locations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/identity"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrEmptyLocation indicates free text with no usable name segment.
	ErrEmptyLocation = errors.New("locations: empty location text")
	// ErrNotFound indicates an unknown location identifier.
	ErrNotFound = errors.New("locations: not found")
	noOpLogger  = zap.NewNop()
)

// ServiceError wraps a failure with an operation-scoped code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opResolverNew = "locations.resolver.new"
	opResolve     = "locations.resolve"
	opList        = "locations.list"
	opGet         = "locations.get"
	opEdit        = "locations.edit"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ResolverConfig describes the dependencies for the resolver service.
type ResolverConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identity.Provider
	Logger     *zap.Logger
}

// Resolver matches free-text locations against stored records, creating new
// records on miss. Two concurrent resolutions of the same unseen name may
// both create a record; the dedupe batch is the remediation path.
type Resolver struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identity.Provider
	logger     *zap.Logger
}

// NewResolver constructs the resolver service.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opResolverNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opResolverNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Resolver{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Resolve finds the location matching the free text, or creates one. On a
// match the usage counter is incremented and last_used_at refreshed; missing
// coordinates are backfilled from the caller's values but never overwritten.
func (r *Resolver) Resolve(ctx context.Context, freeText string, latitude, longitude *float64) (Location, error) {
	parsed := Parse(freeText)
	if parsed.Name == "" {
		return Location{}, newServiceError(opResolve, "empty_text", ErrEmptyLocation)
	}

	now := r.clock().UTC()

	var existing Location
	err := r.db.WithContext(ctx).
		Where("name = ? OR full_address = ?", parsed.Name, parsed.FullAddress).
		Take(&existing).Error
	if err == nil {
		updates := map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
		}
		if !existing.HasCoordinates() && latitude != nil && longitude != nil {
			updates["latitude"] = *latitude
			updates["longitude"] = *longitude
			existing.Latitude = latitude
			existing.Longitude = longitude
		}
		if err := r.db.WithContext(ctx).Model(&Location{}).
			Where("location_id = ?", existing.LocationID).
			Updates(updates).Error; err != nil {
			r.logError(opResolve, "usage_update_failed", err, zap.String("location_id", existing.LocationID))
			return Location{}, newServiceError(opResolve, "usage_update_failed", err)
		}
		existing.UsageCount++
		existing.LastUsedAt = now
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		r.logError(opResolve, "lookup_failed", err, zap.String("name", parsed.Name))
		return Location{}, newServiceError(opResolve, "lookup_failed", err)
	}

	locationID, err := r.idProvider.NewID()
	if err != nil {
		r.logError(opResolve, "id_generation_failed", err)
		return Location{}, newServiceError(opResolve, "id_generation_failed", err)
	}

	created := Location{
		LocationID:  locationID,
		Name:        parsed.Name,
		FullAddress: parsed.FullAddress,
		City:        parsed.City,
		State:       parsed.State,
		Latitude:    latitude,
		Longitude:   longitude,
		UsageCount:  1,
		LastUsedAt:  now,
	}
	if err := r.db.WithContext(ctx).Create(&created).Error; err != nil {
		r.logError(opResolve, "create_failed", err, zap.String("name", parsed.Name))
		return Location{}, newServiceError(opResolve, "create_failed", err)
	}

	r.logger.Debug("location created",
		zap.String("location_id", created.LocationID),
		zap.String("name", created.Name))
	return created, nil
}

// List returns all locations, most used first.
func (r *Resolver) List(ctx context.Context) ([]Location, error) {
	var records []Location
	if err := r.db.WithContext(ctx).
		Order("usage_count DESC, name ASC").
		Find(&records).Error; err != nil {
		r.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}
	return records, nil
}

// Get loads a single location by id.
func (r *Resolver) Get(ctx context.Context, locationID string) (Location, error) {
	var record Location
	err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Location{}, newServiceError(opGet, "not_found", ErrNotFound)
	}
	if err != nil {
		r.logError(opGet, "query_failed", err, zap.String("location_id", locationID))
		return Location{}, newServiceError(opGet, "query_failed", err)
	}
	return record, nil
}

// EditFields are the caller-editable attributes of a location. Nil pointers
// leave the stored value unchanged.
type EditFields struct {
	Nickname   *string
	IsFavorite *bool
	IsPrivate  *bool
	Latitude   *float64
	Longitude  *float64
}

// Edit applies an explicit user edit. This is the only session-independent
// write path; normal session CRUD never deletes or rewrites locations.
func (r *Resolver) Edit(ctx context.Context, locationID string, fields EditFields) (Location, error) {
	record, err := r.Get(ctx, locationID)
	if err != nil {
		return Location{}, err
	}

	updates := map[string]interface{}{}
	if fields.Nickname != nil {
		updates["nickname"] = *fields.Nickname
		record.Nickname = *fields.Nickname
	}
	if fields.IsFavorite != nil {
		updates["is_favorite"] = *fields.IsFavorite
		record.IsFavorite = *fields.IsFavorite
	}
	if fields.IsPrivate != nil {
		updates["is_private"] = *fields.IsPrivate
		record.IsPrivate = *fields.IsPrivate
	}
	if fields.Latitude != nil && fields.Longitude != nil {
		updates["latitude"] = *fields.Latitude
		updates["longitude"] = *fields.Longitude
		record.Latitude = fields.Latitude
		record.Longitude = fields.Longitude
	}
	if len(updates) == 0 {
		return record, nil
	}

	if err := r.db.WithContext(ctx).Model(&Location{}).
		Where("location_id = ?", locationID).
		Updates(updates).Error; err != nil {
		r.logError(opEdit, "update_failed", err, zap.String("location_id", locationID))
		return Location{}, newServiceError(opEdit, "update_failed", err)
	}
	return record, nil
}

func (r *Resolver) loggerOrDefault() *zap.Logger {
	if r == nil || r.logger == nil {
		return noOpLogger
	}
	return r.logger
}

func (r *Resolver) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	r.loggerOrDefault().Error("locations service error", attrs...)
}
