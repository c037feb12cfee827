package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BlakeDanielson/cyrustrack/internal/images"
)

type imageResponsePayload struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"file_size"`
	MIMEType  string `json:"mime_type"`
	Width     *int   `json:"width,omitempty"`
	Height    *int   `json:"height,omitempty"`
	CreatedAt string `json:"created_at"`
}

type rebindRequestPayload struct {
	TemporaryID string `json:"temporary_id"`
	SessionID   string `json:"session_id"`
}

func toImagePayload(record images.Image) imageResponsePayload {
	return imageResponsePayload{
		ID:        record.ImageID,
		SessionID: record.SessionID,
		URL:       record.BlobURL,
		Filename:  record.Filename,
		FileSize:  record.FileSize,
		MIMEType:  record.MIMEType,
		Width:     record.Width,
		Height:    record.Height,
		CreatedAt: record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *httpHandler) imagesOrUnavailable(c *gin.Context) *images.Service {
	if h.images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "images_unavailable"})
		return nil
	}
	return h.images
}

func (h *httpHandler) handleUploadImage(c *gin.Context) {
	service := h.imagesOrUnavailable(c)
	if service == nil {
		return
	}

	sessionID := strings.TrimSpace(c.PostForm("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id_required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, "images.upload", err)
		return
	}
	defer file.Close()

	uploaded, err := service.Upload(c.Request.Context(), images.UploadInput{
		SessionID:   sessionID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		h.respondError(c, "images.upload", err)
		return
	}
	c.JSON(http.StatusCreated, toImagePayload(uploaded))
}

func (h *httpHandler) handleListSessionImages(c *gin.Context) {
	service := h.imagesOrUnavailable(c)
	if service == nil {
		return
	}

	records, err := service.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "images.list", err)
		return
	}
	payloads := make([]imageResponsePayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, toImagePayload(record))
	}
	c.JSON(http.StatusOK, payloads)
}

func (h *httpHandler) handleRebindImages(c *gin.Context) {
	service := h.imagesOrUnavailable(c)
	if service == nil {
		return
	}

	var payload rebindRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil ||
		strings.TrimSpace(payload.TemporaryID) == "" ||
		strings.TrimSpace(payload.SessionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	moved, err := service.RebindSession(c.Request.Context(), payload.TemporaryID, payload.SessionID)
	if err != nil {
		h.respondError(c, "images.rebind", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rebound": moved})
}

func (h *httpHandler) handleDeleteImage(c *gin.Context) {
	service := h.imagesOrUnavailable(c)
	if service == nil {
		return
	}

	if err := service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "images.delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
