package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BlakeDanielson/cyrustrack/internal/feedback"
)

type feedbackRequestPayload struct {
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

type feedbackResponsePayload struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Images    []string `json:"images,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func toFeedbackPayload(entry feedback.Entry) feedbackResponsePayload {
	return feedbackResponsePayload{
		ID:        entry.FeedbackID,
		Content:   entry.Content,
		Images:    entry.Images,
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: entry.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *httpHandler) feedbackOrUnavailable(c *gin.Context) *feedback.Service {
	if h.feedback == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feedback_unavailable"})
		return nil
	}
	return h.feedback
}

func (h *httpHandler) handleListFeedback(c *gin.Context) {
	service := h.feedbackOrUnavailable(c)
	if service == nil {
		return
	}

	entries, err := service.List(c.Request.Context())
	if err != nil {
		h.respondError(c, "feedback.list", err)
		return
	}
	payloads := make([]feedbackResponsePayload, 0, len(entries))
	for _, entry := range entries {
		payloads = append(payloads, toFeedbackPayload(entry))
	}
	c.JSON(http.StatusOK, payloads)
}

func (h *httpHandler) handleCreateFeedback(c *gin.Context) {
	service := h.feedbackOrUnavailable(c)
	if service == nil {
		return
	}

	var payload feedbackRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	entry, err := service.Create(c.Request.Context(), payload.Content, payload.Images)
	if err != nil {
		h.respondError(c, "feedback.create", err)
		return
	}
	c.JSON(http.StatusCreated, toFeedbackPayload(entry))
}

func (h *httpHandler) handleUpdateFeedback(c *gin.Context) {
	service := h.feedbackOrUnavailable(c)
	if service == nil {
		return
	}

	var payload feedbackRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	entry, err := service.Update(c.Request.Context(), c.Param("id"), payload.Content, payload.Images)
	if err != nil {
		h.respondError(c, "feedback.update", err)
		return
	}
	c.JSON(http.StatusOK, toFeedbackPayload(entry))
}

func (h *httpHandler) handleDeleteFeedback(c *gin.Context) {
	service := h.feedbackOrUnavailable(c)
	if service == nil {
		return
	}

	deleted, err := service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "feedback.delete", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
