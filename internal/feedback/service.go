package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/identity"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrEmptyContent indicates feedback text that is empty after trimming.
	ErrEmptyContent = errors.New("feedback: content is required")
	// ErrNotFound indicates an unknown feedback identifier.
	ErrNotFound = errors.New("feedback: not found")
)

// Entry is a free-form feedback note, unrelated to any session.
type Entry struct {
	FeedbackID string    `gorm:"column:feedback_id;primaryKey;size:190;not null"`
	Content    string    `gorm:"column:content;type:text;not null"`
	Images     []string  `gorm:"column:images;serializer:json"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "feedback_entries"
}

// ServiceConfig describes the dependencies for the feedback service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identity.Provider
	Logger     *zap.Logger
}

// Service manages feedback entries.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identity.Provider
	logger     *zap.Logger
}

// NewService constructs the feedback service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("feedback: %w", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("feedback: %w", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// Create stores a new entry. Content must be non-empty after trimming.
func (s *Service) Create(ctx context.Context, content string, images []string) (Entry, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Entry{}, ErrEmptyContent
	}

	feedbackID, err := s.idProvider.NewID()
	if err != nil {
		return Entry{}, fmt.Errorf("feedback: generate id: %w", err)
	}

	now := s.clock().UTC()
	entry := Entry{
		FeedbackID: feedbackID,
		Content:    trimmed,
		Images:     images,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logger.Error("feedback create failed", zap.Error(err))
		return Entry{}, fmt.Errorf("feedback: create: %w", err)
	}
	return entry, nil
}

// List returns all entries, newest first.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		s.logger.Error("feedback list failed", zap.Error(err))
		return nil, fmt.Errorf("feedback: list: %w", err)
	}
	return entries, nil
}

// Update replaces the content (and images when non-nil) of an entry.
func (s *Service) Update(ctx context.Context, feedbackID, content string, images []string) (Entry, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Entry{}, ErrEmptyContent
	}

	var entry Entry
	err := s.db.WithContext(ctx).
		Where("feedback_id = ?", feedbackID).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("feedback: load: %w", err)
	}

	entry.Content = trimmed
	if images != nil {
		entry.Images = images
	}
	entry.UpdatedAt = s.clock().UTC()

	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		s.logger.Error("feedback update failed", zap.Error(err), zap.String("feedback_id", feedbackID))
		return Entry{}, fmt.Errorf("feedback: update: %w", err)
	}
	return entry, nil
}

// Delete removes an entry, reporting false for an unknown id.
func (s *Service) Delete(ctx context.Context, feedbackID string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("feedback_id = ?", feedbackID).
		Delete(&Entry{})
	if result.Error != nil {
		s.logger.Error("feedback delete failed", zap.Error(result.Error), zap.String("feedback_id", feedbackID))
		return false, fmt.Errorf("feedback: delete: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
