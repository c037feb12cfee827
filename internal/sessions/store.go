package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/identity"
	"github.com/BlakeDanielson/cyrustrack/internal/locations"
	"github.com/BlakeDanielson/cyrustrack/internal/quantity"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrNotFound indicates an unknown session identifier.
	ErrNotFound = errors.New("sessions: not found")
	noOpLogger  = zap.NewNop()
)

// ValidationError lists the required fields missing from a draft. It is
// surfaced before any persistence or location-resolution side effect.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "sessions: missing required fields: " + strings.Join(e.Fields, ", ")
}

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
	opStoreNew = "sessions.store.new"
	opCreate   = "sessions.create"
	opGet      = "sessions.get"
	opUpdate   = "sessions.update"
	opDelete   = "sessions.delete"
	opList     = "sessions.list"
	opRefresh  = "sessions.refresh"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// LocationResolver resolves free-text locations into stored records.
type LocationResolver interface {
	Resolve(ctx context.Context, freeText string, latitude, longitude *float64) (locations.Location, error)
}

// ChangeKind enumerates store change notifications.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change describes a single cache mutation delivered to subscribers.
type Change struct {
	Kind    ChangeKind
	Session Session
}

// StoreConfig describes the dependencies for the session store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identity.Provider
	Locations  LocationResolver
	Logger     *zap.Logger
}

// Store owns the canonical session list. It keeps a most-recent-first
// in-memory cache for history and analytics consumers, who subscribe to
// change notifications instead of reading shared global state.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identity.Provider
	locations  LocationResolver
	logger     *zap.Logger

	mu          sync.RWMutex
	cache       []Session
	subscribers []func(Change)
}

// NewStore constructs the session store. The location resolver may be nil
// when drafts always carry a location_id.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		locations:  cfg.Locations,
		logger:     logger,
	}, nil
}

// Draft is the caller-supplied input for a new session. Nil booleans take
// the documented defaults: my_vessel, my_substance and purchased_legally
// true, the additive flags false.
type Draft struct {
	Date             string
	Time             string
	Location         string
	Latitude         *float64
	Longitude        *float64
	LocationID       *string
	VesselCategory   string
	Vessel           string
	StrainName       string
	StrainType       string
	THCPercentage    *float64
	Quantity         quantity.Value
	MyVessel         *bool
	MySubstance      *bool
	PurchasedLegally *bool
	StatePurchased   string
	UsedTobacco      *bool
	TobaccoProduct   string
	Kief             *bool
	Concentrate      *bool
	Lavender         *bool
	AccessoryUsed    string
	Companions       []string
	Comments         string
}

func (d Draft) validate() error {
	missing := []string{}
	if strings.TrimSpace(d.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(d.Time) == "" {
		missing = append(missing, "time")
	}
	if strings.TrimSpace(d.Location) == "" && d.LocationID == nil {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(d.VesselCategory) == "" {
		missing = append(missing, "vessel_category")
	}
	if strings.TrimSpace(d.Vessel) == "" {
		missing = append(missing, "vessel")
	}
	if strings.TrimSpace(d.StrainName) == "" {
		missing = append(missing, "strain_name")
	}
	if d.Quantity.Type == "" {
		missing = append(missing, "quantity")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return quantity.ValidateForVessel(d.Vessel, d.Quantity)
}

// Create validates the draft, resolves its location when no location_id is
// given, persists the record and prepends it to the cache. Validation runs
// before any side effect so a rejected draft never creates an orphan
// location.
func (s *Store) Create(ctx context.Context, draft Draft) (Session, error) {
	if err := draft.validate(); err != nil {
		return Session{}, err
	}

	locationID := draft.LocationID
	if locationID == nil && s.locations != nil {
		resolved, err := s.locations.Resolve(ctx, draft.Location, draft.Latitude, draft.Longitude)
		if err != nil {
			s.logError(opCreate, "location_resolve_failed", err, zap.String("location", draft.Location))
			return Session{}, newServiceError(opCreate, "location_resolve_failed", err)
		}
		locationID = &resolved.LocationID
	}

	sessionID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Session{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	record := Session{
		SessionID:        sessionID,
		Date:             strings.TrimSpace(draft.Date),
		Time:             strings.TrimSpace(draft.Time),
		LocationText:     strings.TrimSpace(draft.Location),
		Latitude:         draft.Latitude,
		Longitude:        draft.Longitude,
		LocationID:       locationID,
		VesselCategory:   strings.TrimSpace(draft.VesselCategory),
		Vessel:           strings.TrimSpace(draft.Vessel),
		StrainName:       strings.TrimSpace(draft.StrainName),
		StrainType:       strings.TrimSpace(draft.StrainType),
		THCPercentage:    draft.THCPercentage,
		QuantityAmount:   draft.Quantity.Amount,
		QuantityUnit:     draft.Quantity.Unit,
		QuantityType:     string(draft.Quantity.Type),
		MyVessel:         boolOrDefault(draft.MyVessel, true),
		MySubstance:      boolOrDefault(draft.MySubstance, true),
		PurchasedLegally: boolOrDefault(draft.PurchasedLegally, true),
		StatePurchased:   strings.TrimSpace(draft.StatePurchased),
		UsedTobacco:      boolOrDefault(draft.UsedTobacco, false),
		TobaccoProduct:   strings.TrimSpace(draft.TobaccoProduct),
		Kief:             boolOrDefault(draft.Kief, false),
		Concentrate:      boolOrDefault(draft.Concentrate, false),
		Lavender:         boolOrDefault(draft.Lavender, false),
		AccessoryUsed:    accessoryOrDefault(draft.AccessoryUsed),
		WhoWith:          JoinCompanions(draft.Companions),
		Comments:         draft.Comments,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("session_id", sessionID))
		return Session{}, newServiceError(opCreate, "insert_failed", err)
	}

	s.mu.Lock()
	s.cache = append([]Session{record}, s.cache...)
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeCreated, Session: record})

	return record, nil
}

// Patch holds partial updates for an existing session. Nil pointers leave
// the stored value unchanged.
type Patch struct {
	Date             *string
	Time             *string
	Location         *string
	Latitude         *float64
	Longitude        *float64
	LocationID       *string
	VesselCategory   *string
	Vessel           *string
	StrainName       *string
	StrainType       *string
	THCPercentage    *float64
	Quantity         *quantity.Value
	MyVessel         *bool
	MySubstance      *bool
	PurchasedLegally *bool
	StatePurchased   *string
	UsedTobacco      *bool
	TobaccoProduct   *string
	Kief             *bool
	Concentrate      *bool
	Lavender         *bool
	AccessoryUsed    *string
	Companions       []string
	Comments         *string
}

// Update merges partial fields into the stored record, refreshes updated_at
// and updates the cache entry in place.
func (s *Store) Update(ctx context.Context, sessionID string, patch Patch) (Session, error) {
	record, err := s.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}

	applyPatch(&record, patch)
	record.UpdatedAt = s.clock().UTC()

	if patch.Quantity != nil || patch.Vessel != nil {
		if err := quantity.ValidateForVessel(record.Vessel, record.Quantity()); err != nil {
			return Session{}, err
		}
	}

	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		s.logError(opUpdate, "save_failed", err, zap.String("session_id", sessionID))
		return Session{}, newServiceError(opUpdate, "save_failed", err)
	}

	s.mu.Lock()
	for i := range s.cache {
		if s.cache[i].SessionID == sessionID {
			s.cache[i] = record
			break
		}
	}
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeUpdated, Session: record})

	return record, nil
}

// Delete removes the session from the backing store and the cache. It
// reports false for an unknown id.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&Session{})
	if result.Error != nil {
		s.logError(opDelete, "delete_failed", result.Error, zap.String("session_id", sessionID))
		return false, newServiceError(opDelete, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	var removed *Session
	s.mu.Lock()
	for i := range s.cache {
		if s.cache[i].SessionID == sessionID {
			entry := s.cache[i]
			removed = &entry
			s.cache = append(s.cache[:i], s.cache[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	if removed != nil {
		s.notify(Change{Kind: ChangeDeleted, Session: *removed})
	}

	return true, nil
}

// Get loads a single session by id.
func (s *Store) Get(ctx context.Context, sessionID string) (Session, error) {
	var record Session
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, newServiceError(opGet, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("session_id", sessionID))
		return Session{}, newServiceError(opGet, "query_failed", err)
	}
	return record, nil
}

// Filter narrows List results. All present conditions compose with AND.
// Date bounds are inclusive and compare ISO date strings lexicographically.
type Filter struct {
	StartDate      string
	EndDate        string
	Strain         string
	Location       string
	Vessel         string
	VesselExact    string
	VesselCategory string
	Limit          int
	Offset         int
}

// List returns sessions matching the filter, most recent first. An empty
// filter returns the full set in stored order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Session, error) {
	query := s.db.WithContext(ctx).Model(&Session{})

	if filter.StartDate != "" {
		query = query.Where("date >= ?", filter.StartDate)
	}
	if filter.EndDate != "" {
		query = query.Where("date <= ?", filter.EndDate)
	}
	if filter.Strain != "" {
		query = query.Where("LOWER(strain_name) LIKE ?", substringPattern(filter.Strain))
	}
	if filter.Location != "" {
		query = query.Where("LOWER(location) LIKE ?", substringPattern(filter.Location))
	}
	if filter.Vessel != "" {
		query = query.Where("LOWER(vessel) LIKE ?", substringPattern(filter.Vessel))
	}
	if filter.VesselExact != "" {
		query = query.Where("vessel = ?", filter.VesselExact)
	}
	if filter.VesselCategory != "" {
		query = query.Where("vessel_category = ?", filter.VesselCategory)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []Session
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}
	return records, nil
}

// Refresh reloads the in-memory cache from the backing store.
func (s *Store) Refresh(ctx context.Context) error {
	var records []Session
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		s.logError(opRefresh, "query_failed", err)
		return newServiceError(opRefresh, "query_failed", err)
	}

	s.mu.Lock()
	s.cache = records
	s.mu.Unlock()
	return nil
}

// Cached returns a snapshot of the in-memory cache, most recent first.
func (s *Store) Cached() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make([]Session, len(s.cache))
	copy(snapshot, s.cache)
	return snapshot
}

// Subscribe registers a change callback and returns its remover. Callbacks
// run synchronously on the mutating goroutine.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	index := len(s.subscribers) - 1
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if index < len(s.subscribers) {
			s.subscribers[index] = nil
		}
	}
}

func (s *Store) notify(change Change) {
	s.mu.RLock()
	subscribers := make([]func(Change), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subscribers {
		if fn != nil {
			fn(change)
		}
	}
}

func applyPatch(record *Session, patch Patch) {
	if patch.Date != nil {
		record.Date = strings.TrimSpace(*patch.Date)
	}
	if patch.Time != nil {
		record.Time = strings.TrimSpace(*patch.Time)
	}
	if patch.Location != nil {
		record.LocationText = strings.TrimSpace(*patch.Location)
	}
	if patch.Latitude != nil {
		record.Latitude = patch.Latitude
	}
	if patch.Longitude != nil {
		record.Longitude = patch.Longitude
	}
	if patch.LocationID != nil {
		record.LocationID = patch.LocationID
	}
	if patch.VesselCategory != nil {
		record.VesselCategory = strings.TrimSpace(*patch.VesselCategory)
	}
	if patch.Vessel != nil {
		record.Vessel = strings.TrimSpace(*patch.Vessel)
	}
	if patch.StrainName != nil {
		record.StrainName = strings.TrimSpace(*patch.StrainName)
	}
	if patch.StrainType != nil {
		record.StrainType = strings.TrimSpace(*patch.StrainType)
	}
	if patch.THCPercentage != nil {
		record.THCPercentage = patch.THCPercentage
	}
	if patch.Quantity != nil {
		record.QuantityAmount = patch.Quantity.Amount
		record.QuantityUnit = patch.Quantity.Unit
		record.QuantityType = string(patch.Quantity.Type)
	}
	if patch.MyVessel != nil {
		record.MyVessel = *patch.MyVessel
	}
	if patch.MySubstance != nil {
		record.MySubstance = *patch.MySubstance
	}
	if patch.PurchasedLegally != nil {
		record.PurchasedLegally = *patch.PurchasedLegally
	}
	if patch.StatePurchased != nil {
		record.StatePurchased = strings.TrimSpace(*patch.StatePurchased)
	}
	if patch.UsedTobacco != nil {
		record.UsedTobacco = *patch.UsedTobacco
	}
	if patch.TobaccoProduct != nil {
		record.TobaccoProduct = strings.TrimSpace(*patch.TobaccoProduct)
	}
	if patch.Kief != nil {
		record.Kief = *patch.Kief
	}
	if patch.Concentrate != nil {
		record.Concentrate = *patch.Concentrate
	}
	if patch.Lavender != nil {
		record.Lavender = *patch.Lavender
	}
	if patch.AccessoryUsed != nil {
		record.AccessoryUsed = accessoryOrDefault(*patch.AccessoryUsed)
	}
	if patch.Companions != nil {
		record.WhoWith = JoinCompanions(patch.Companions)
	}
	if patch.Comments != nil {
		record.Comments = *patch.Comments
	}
}

func boolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func accessoryOrDefault(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "N/A"
	}
	return trimmed
}

func substringPattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("sessions store error", attrs...)
}
