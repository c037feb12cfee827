package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/identity"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxFileSize caps uploads at 5 MB.
const MaxFileSize = 5 * 1024 * 1024

var allowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingStorage    = errors.New("object storage is required")
	// ErrUnsupportedType indicates a MIME type outside the allowed set.
	ErrUnsupportedType = errors.New("images: unsupported content type")
	// ErrTooLarge indicates an upload exceeding MaxFileSize.
	ErrTooLarge = errors.New("images: file exceeds size limit")
	// ErrNotFound indicates an unknown image identifier.
	ErrNotFound = errors.New("images: not found")
)

// Image records the metadata for an uploaded session photo. SessionID may
// hold a temporary placeholder until the parent session is persisted, after
// which RebindSession rewrites it in bulk.
type Image struct {
	ImageID   string    `gorm:"column:image_id;primaryKey;size:190;not null"`
	SessionID string    `gorm:"column:session_id;size:190;not null;index"`
	BlobURL   string    `gorm:"column:blob_url;size:512;not null"`
	Filename  string    `gorm:"column:filename;size:320;not null"`
	FileSize  int64     `gorm:"column:file_size;not null"`
	MIMEType  string    `gorm:"column:mime_type;size:64;not null"`
	Width     *int      `gorm:"column:width"`
	Height    *int      `gorm:"column:height"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Image) TableName() string {
	return "session_images"
}

// ServiceConfig describes the dependencies for the image service.
type ServiceConfig struct {
	Database   *gorm.DB
	Storage    ObjectStorage
	Clock      func() time.Time
	IDProvider identity.Provider
	Logger     *zap.Logger
}

// Service validates, stores and tracks session images.
type Service struct {
	db         *gorm.DB
	storage    ObjectStorage
	clock      func() time.Time
	idProvider identity.Provider
	logger     *zap.Logger
}

// NewService constructs the image service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("images: %w", errMissingDatabase)
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("images: %w", errMissingStorage)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("images: %w", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		storage:    cfg.Storage,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// UploadInput carries one upload. Size is validated against MaxFileSize
// before any storage write.
type UploadInput struct {
	SessionID   string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	Width       *int
	Height      *int
}

// Upload validates the input, writes the blob and records the metadata row.
func (s *Service) Upload(ctx context.Context, input UploadInput) (Image, error) {
	extension, ok := allowedMIMETypes[strings.ToLower(strings.TrimSpace(input.ContentType))]
	if !ok {
		return Image{}, fmt.Errorf("%w: %q", ErrUnsupportedType, input.ContentType)
	}
	if input.Size > MaxFileSize {
		return Image{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, input.Size)
	}

	imageID, err := s.idProvider.NewID()
	if err != nil {
		return Image{}, fmt.Errorf("images: generate id: %w", err)
	}

	key := path.Join("sessions", input.SessionID, imageID+extension)
	if err := s.storage.Save(ctx, key, input.Body, input.ContentType); err != nil {
		s.logger.Error("image blob upload failed", zap.Error(err), zap.String("key", key))
		return Image{}, err
	}

	record := Image{
		ImageID:   imageID,
		SessionID: input.SessionID,
		BlobURL:   s.storage.URL(key),
		Filename:  input.Filename,
		FileSize:  input.Size,
		MIMEType:  strings.ToLower(strings.TrimSpace(input.ContentType)),
		Width:     input.Width,
		Height:    input.Height,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logger.Error("image metadata insert failed", zap.Error(err), zap.String("image_id", imageID))
		return Image{}, fmt.Errorf("images: insert metadata: %w", err)
	}
	return record, nil
}

// ListBySession returns the images attached to a session, oldest first.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]Image, error) {
	var records []Image
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("images: list: %w", err)
	}
	return records, nil
}

// RebindSession rewrites every image attached to a temporary session id to
// the real one, returning the number of rows moved.
func (s *Service) RebindSession(ctx context.Context, temporaryID, sessionID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Image{}).
		Where("session_id = ?", temporaryID).
		Update("session_id", sessionID)
	if result.Error != nil {
		s.logger.Error("image rebind failed", zap.Error(result.Error),
			zap.String("from", temporaryID), zap.String("to", sessionID))
		return 0, fmt.Errorf("images: rebind: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes the metadata row and best-effort deletes the blob. A blob
// deletion failure is logged, not returned.
func (s *Service) Delete(ctx context.Context, imageID string) error {
	var record Image
	err := s.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("images: load: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Delete(&Image{}).Error; err != nil {
		return fmt.Errorf("images: delete metadata: %w", err)
	}

	if key, ok := s.keyFromURL(record.BlobURL); ok {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("image blob deletion failed", zap.Error(err), zap.String("key", key))
		}
	}
	return nil
}

func (s *Service) keyFromURL(blobURL string) (string, bool) {
	marker := "/sessions/"
	index := strings.Index(blobURL, marker)
	if index < 0 {
		return "", false
	}
	return blobURL[index+1:], true
}
