package server

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/BlakeDanielson/cyrustrack/internal/quantity"
)

type vesselConfigPayload struct {
	Vessel      string  `json:"vessel"`
	Type        string  `json:"type"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category"`
	Step        float64 `json:"step,omitempty"`
	Placeholder string  `json:"placeholder,omitempty"`
}

type vesselsResponsePayload struct {
	Vessels    []vesselConfigPayload `json:"vessels"`
	SizeLabels []string              `json:"size_labels"`
}

// handleListVessels serves the static vessel table the entry form renders
// its quantity input from: per-vessel input type and unit, plus the ordered
// size scale for categorical vessels.
func (h *httpHandler) handleListVessels(c *gin.Context) {
	names := quantity.Vessels()
	sort.Strings(names)

	payloads := make([]vesselConfigPayload, 0, len(names))
	for _, name := range names {
		cfg := quantity.ConfigFor(name)
		payloads = append(payloads, vesselConfigPayload{
			Vessel:      name,
			Type:        string(cfg.Type),
			Unit:        cfg.Unit,
			Category:    cfg.Category,
			Step:        cfg.Step,
			Placeholder: cfg.Placeholder,
		})
	}

	c.JSON(http.StatusOK, vesselsResponsePayload{
		Vessels:    payloads,
		SizeLabels: quantity.SizeLabels(),
	})
}
