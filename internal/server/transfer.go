package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BlakeDanielson/cyrustrack/internal/csvimport"
	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
)

func (h *httpHandler) handleExport(c *gin.Context) {
	records, err := h.sessions.List(c.Request.Context(), sessions.Filter{})
	if err != nil {
		h.respondError(c, "sessions.export", err)
		return
	}

	filename := fmt.Sprintf("cyrustrack-export-%s.json", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.IndentedJSON(http.StatusOK, sessions.ToRecords(records))
}

func (h *httpHandler) handleImportCSV(c *gin.Context) {
	if h.importer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "import_unavailable"})
		return
	}

	input := c.Request.Body
	if fileHeader, err := c.FormFile("file"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			h.respondError(c, "sessions.import", err)
			return
		}
		defer file.Close()
		input = file
	}

	result, err := h.importer.Import(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, csvimport.ErrEmptyInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty_input"})
		case errors.Is(err, csvimport.ErrMissingColumn):
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_column"})
		default:
			h.logger.Warn("csv import rejected", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}
