package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BlakeDanielson/cyrustrack/internal/csvimport"
	"github.com/BlakeDanielson/cyrustrack/internal/feedback"
	"github.com/BlakeDanielson/cyrustrack/internal/images"
	"github.com/BlakeDanielson/cyrustrack/internal/locations"
	"github.com/BlakeDanielson/cyrustrack/internal/quantity"
	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
)

var (
	errMissingSessionsStore    = errors.New("sessions store dependency required")
	errMissingLocationResolver = errors.New("location resolver dependency required")
)

// Dependencies carries the wired services the HTTP surface exposes. The
// feedback, image, maintenance and import services are optional; their
// routes respond 503 when absent.
type Dependencies struct {
	Sessions    *sessions.Store
	Locations   *locations.Resolver
	Maintenance *locations.Maintenance
	Feedback    *feedback.Service
	Images      *images.Service
	Importer    *csvimport.Importer
	Logger      *zap.Logger
}

// NewHTTPHandler builds the Gin router with CORS and all API routes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionsStore
	}
	if deps.Locations == nil {
		return nil, errMissingLocationResolver
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		sessions:    deps.Sessions,
		locations:   deps.Locations,
		maintenance: deps.Maintenance,
		feedback:    deps.Feedback,
		images:      deps.Images,
		importer:    deps.Importer,
		logger:      logger,
	}

	api := router.Group("/api")

	api.GET("/sessions", handler.handleListSessions)
	api.POST("/sessions", handler.handleCreateSession)
	api.DELETE("/sessions", handler.handleClearSessions)
	api.GET("/sessions/autocomplete", handler.handleAutocomplete)
	api.GET("/sessions/autofill", handler.handleStrainAutofill)
	api.GET("/sessions/:id", handler.handleGetSession)
	api.PUT("/sessions/:id", handler.handleUpdateSession)
	api.DELETE("/sessions/:id", handler.handleDeleteSession)
	api.GET("/sessions/:id/images", handler.handleListSessionImages)

	api.GET("/locations", handler.handleListLocations)
	api.PATCH("/locations/:id", handler.handleEditLocation)
	api.POST("/locations/backfill-geocode", handler.handleBackfillGeocode)
	api.POST("/locations/dedupe", handler.handleDedupeLocations)

	api.GET("/feedback", handler.handleListFeedback)
	api.POST("/feedback", handler.handleCreateFeedback)
	api.PUT("/feedback/:id", handler.handleUpdateFeedback)
	api.DELETE("/feedback/:id", handler.handleDeleteFeedback)

	api.POST("/images", handler.handleUploadImage)
	api.POST("/images/rebind", handler.handleRebindImages)
	api.DELETE("/images/:id", handler.handleDeleteImage)

	api.GET("/vessels", handler.handleListVessels)
	api.GET("/export", handler.handleExport)
	api.POST("/import/csv", handler.handleImportCSV)

	return router, nil
}

type httpHandler struct {
	sessions    *sessions.Store
	locations   *locations.Resolver
	maintenance *locations.Maintenance
	feedback    *feedback.Service
	images      *images.Service
	importer    *csvimport.Importer
	logger      *zap.Logger
}

// respondError maps service failures onto transport codes. Validation
// details list the offending fields; internal causes are logged but never
// echoed to the client.
func (h *httpHandler) respondError(c *gin.Context, operation string, err error) {
	var validation *sessions.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"fields": validation.Fields,
		})
		return
	}
	switch {
	case errors.Is(err, sessions.ErrNotFound),
		errors.Is(err, locations.ErrNotFound),
		errors.Is(err, feedback.ErrNotFound),
		errors.Is(err, images.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, images.ErrUnsupportedType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_content_type"})
	case errors.Is(err, images.ErrTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_too_large"})
	case errors.Is(err, feedback.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_required"})
	case errors.Is(err, locations.ErrEmptyLocation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "location_required"})
	case errors.Is(err, quantity.ErrTypeMismatch),
		errors.Is(err, quantity.ErrInvalidValue),
		errors.Is(err, quantity.ErrInvalidAmount),
		errors.Is(err, quantity.ErrUnknownSize):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_quantity"})
	default:
		h.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
