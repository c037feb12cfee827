package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BlakeDanielson/cyrustrack/internal/locations"
)

type locationEditPayload struct {
	Nickname   *string  `json:"nickname"`
	IsFavorite *bool    `json:"is_favorite"`
	IsPrivate  *bool    `json:"is_private"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

type locationResponsePayload struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	FullAddress string   `json:"full_address"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	Country     string   `json:"country,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	IsFavorite  bool     `json:"is_favorite"`
	IsPrivate   bool     `json:"is_private"`
	Nickname    string   `json:"nickname,omitempty"`
	UsageCount  int64    `json:"usage_count"`
	LastUsedAt  string   `json:"last_used_at,omitempty"`
}

func toLocationPayload(record locations.Location) locationResponsePayload {
	payload := locationResponsePayload{
		ID:          record.LocationID,
		Name:        record.Name,
		FullAddress: record.FullAddress,
		City:        record.City,
		State:       record.State,
		Country:     record.Country,
		Latitude:    record.Latitude,
		Longitude:   record.Longitude,
		IsFavorite:  record.IsFavorite,
		IsPrivate:   record.IsPrivate,
		Nickname:    record.Nickname,
		UsageCount:  record.UsageCount,
	}
	if !record.LastUsedAt.IsZero() {
		payload.LastUsedAt = record.LastUsedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func (h *httpHandler) handleListLocations(c *gin.Context) {
	records, err := h.locations.List(c.Request.Context())
	if err != nil {
		h.respondError(c, "locations.list", err)
		return
	}
	payloads := make([]locationResponsePayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, toLocationPayload(record))
	}
	c.JSON(http.StatusOK, payloads)
}

func (h *httpHandler) handleEditLocation(c *gin.Context) {
	var payload locationEditPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	updated, err := h.locations.Edit(c.Request.Context(), c.Param("id"), locations.EditFields{
		Nickname:   payload.Nickname,
		IsFavorite: payload.IsFavorite,
		IsPrivate:  payload.IsPrivate,
		Latitude:   payload.Latitude,
		Longitude:  payload.Longitude,
	})
	if err != nil {
		h.respondError(c, "locations.edit", err)
		return
	}
	c.JSON(http.StatusOK, toLocationPayload(updated))
}

func (h *httpHandler) handleBackfillGeocode(c *gin.Context) {
	if h.maintenance == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "maintenance_unavailable"})
		return
	}

	report, err := h.maintenance.BackfillCoordinates(c.Request.Context())
	if err != nil {
		h.respondError(c, "locations.backfill", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *httpHandler) handleDedupeLocations(c *gin.Context) {
	if h.maintenance == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "maintenance_unavailable"})
		return
	}

	report, err := h.maintenance.Deduplicate(c.Request.Context())
	if err != nil {
		h.respondError(c, "locations.dedupe", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
