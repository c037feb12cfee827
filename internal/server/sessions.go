package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/BlakeDanielson/cyrustrack/internal/quantity"
	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
)

// sessionPayload is the request form shared by create and update. Every
// field is a pointer so update can distinguish "absent" from "zero"; create
// dereferences with the documented defaults.
type sessionPayload struct {
	Date             *string         `json:"date"`
	Time             *string         `json:"time"`
	Location         *string         `json:"location"`
	Latitude         *float64        `json:"latitude"`
	Longitude        *float64        `json:"longitude"`
	LocationID       *string         `json:"location_id"`
	VesselCategory   *string         `json:"vessel_category"`
	Vessel           *string         `json:"vessel"`
	StrainName       *string         `json:"strain_name"`
	StrainType       *string         `json:"strain_type"`
	THCPercentage    *float64        `json:"thc_percentage"`
	Quantity         *quantity.Value `json:"quantity"`
	MyVessel         *bool           `json:"my_vessel"`
	MySubstance      *bool           `json:"my_substance"`
	PurchasedLegally *bool           `json:"purchased_legally"`
	StatePurchased   *string         `json:"state_purchased"`
	UsedTobacco      *bool           `json:"used_tobacco"`
	TobaccoProduct   *string         `json:"tobacco_product"`
	Kief             *bool           `json:"kief"`
	Concentrate      *bool           `json:"concentrate"`
	Lavender         *bool           `json:"lavender"`
	AccessoryUsed    *string         `json:"accessory_used"`
	WhoWith          *string         `json:"who_with"`
	Companions       []string        `json:"companions"`
	Comments         *string         `json:"comments"`
}

func (p sessionPayload) toDraft() sessions.Draft {
	draft := sessions.Draft{
		Date:             stringOrEmpty(p.Date),
		Time:             stringOrEmpty(p.Time),
		Location:         stringOrEmpty(p.Location),
		Latitude:         p.Latitude,
		Longitude:        p.Longitude,
		LocationID:       p.LocationID,
		VesselCategory:   stringOrEmpty(p.VesselCategory),
		Vessel:           stringOrEmpty(p.Vessel),
		StrainName:       stringOrEmpty(p.StrainName),
		StrainType:       stringOrEmpty(p.StrainType),
		THCPercentage:    p.THCPercentage,
		MyVessel:         p.MyVessel,
		MySubstance:      p.MySubstance,
		PurchasedLegally: p.PurchasedLegally,
		StatePurchased:   stringOrEmpty(p.StatePurchased),
		UsedTobacco:      p.UsedTobacco,
		TobaccoProduct:   stringOrEmpty(p.TobaccoProduct),
		Kief:             p.Kief,
		Concentrate:      p.Concentrate,
		Lavender:         p.Lavender,
		AccessoryUsed:    stringOrEmpty(p.AccessoryUsed),
		Companions:       p.Companions,
		Comments:         stringOrEmpty(p.Comments),
	}
	if p.Quantity != nil {
		draft.Quantity = *p.Quantity
	}
	if draft.Companions == nil && p.WhoWith != nil {
		draft.Companions = sessions.SplitCompanions(*p.WhoWith)
	}
	return draft
}

func (p sessionPayload) toPatch() sessions.Patch {
	patch := sessions.Patch{
		Date:             p.Date,
		Time:             p.Time,
		Location:         p.Location,
		Latitude:         p.Latitude,
		Longitude:        p.Longitude,
		LocationID:       p.LocationID,
		VesselCategory:   p.VesselCategory,
		Vessel:           p.Vessel,
		StrainName:       p.StrainName,
		StrainType:       p.StrainType,
		THCPercentage:    p.THCPercentage,
		Quantity:         p.Quantity,
		MyVessel:         p.MyVessel,
		MySubstance:      p.MySubstance,
		PurchasedLegally: p.PurchasedLegally,
		StatePurchased:   p.StatePurchased,
		UsedTobacco:      p.UsedTobacco,
		TobaccoProduct:   p.TobaccoProduct,
		Kief:             p.Kief,
		Concentrate:      p.Concentrate,
		Lavender:         p.Lavender,
		AccessoryUsed:    p.AccessoryUsed,
		Companions:       p.Companions,
		Comments:         p.Comments,
	}
	if patch.Companions == nil && p.WhoWith != nil {
		patch.Companions = sessions.SplitCompanions(*p.WhoWith)
	}
	return patch
}

func (h *httpHandler) handleListSessions(c *gin.Context) {
	filter := sessions.Filter{
		StartDate:      c.Query("start_date"),
		EndDate:        c.Query("end_date"),
		Strain:         c.Query("strain"),
		Location:       c.Query("location"),
		Vessel:         c.Query("vessel"),
		VesselExact:    c.Query("vessel_exact"),
		VesselCategory: c.Query("vessel_category"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		filter.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_offset"})
			return
		}
		filter.Offset = offset
	}

	records, err := h.sessions.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "sessions.list", err)
		return
	}
	c.JSON(http.StatusOK, sessions.ToRecords(records))
}

func (h *httpHandler) handleGetSession(c *gin.Context) {
	record, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "sessions.get", err)
		return
	}
	c.JSON(http.StatusOK, sessions.ToRecord(record))
}

func (h *httpHandler) handleCreateSession(c *gin.Context) {
	var payload sessionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	created, err := h.sessions.Create(c.Request.Context(), payload.toDraft())
	if err != nil {
		h.respondError(c, "sessions.create", err)
		return
	}
	c.JSON(http.StatusCreated, sessions.ToRecord(created))
}

func (h *httpHandler) handleUpdateSession(c *gin.Context) {
	var payload sessionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	updated, err := h.sessions.Update(c.Request.Context(), c.Param("id"), payload.toPatch())
	if err != nil {
		h.respondError(c, "sessions.update", err)
		return
	}
	c.JSON(http.StatusOK, sessions.ToRecord(updated))
}

func (h *httpHandler) handleDeleteSession(c *gin.Context) {
	deleted, err := h.sessions.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "sessions.delete", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleClearSessions(c *gin.Context) {
	records, err := h.sessions.List(c.Request.Context(), sessions.Filter{})
	if err != nil {
		h.respondError(c, "sessions.clear", err)
		return
	}
	removed := 0
	for _, record := range records {
		deleted, err := h.sessions.Delete(c.Request.Context(), record.SessionID)
		if err != nil {
			h.respondError(c, "sessions.clear", err)
			return
		}
		if deleted {
			removed++
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": removed})
}

func (h *httpHandler) handleStrainAutofill(c *gin.Context) {
	strain := strings.TrimSpace(c.Query("strain"))
	if strain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "strain_required"})
		return
	}

	autofill, err := h.sessions.LatestStrainAutofill(c.Request.Context(), strain, c.Query("vessel"))
	if err != nil {
		h.respondError(c, "sessions.autofill", err)
		return
	}
	if autofill == nil {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "autofill": autofill})
}

func (h *httpHandler) handleAutocomplete(c *gin.Context) {
	sets, err := h.sessions.Autocomplete(c.Request.Context())
	if err != nil {
		h.respondError(c, "sessions.autocomplete", err)
		return
	}
	c.JSON(http.StatusOK, sets)
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
