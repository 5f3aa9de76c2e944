package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"farm_telemetry/internal/repository"
	"farm_telemetry/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	defaultPageSize = 50
	maxPageSize     = 500

	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// serviceError maps validation failures to 400 and missing rows to 404.
// Everything else is logged and reported as a 500 with userMsg.
func (h *Handler) serviceError(c *gin.Context, err error, userMsg, logKey string, kv ...interface{}) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err, kv...)
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Live view
// @Description  Latest reading, bounded history, freshness and derived EC (mS/cm) and tank fill percentage.
// @Tags         readings
// @Produce      json
// @Success      200  {object}  models.LiveView
// @Router       /api/v1/live [get]
func (h *Handler) getLive(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Live.View())
}

// @Summary      Reading history
// @Description  Persisted readings in [from, to], newest first. Accepts the same time formats as /logs.
// @Tags         readings
// @Produce      json
// @Param        from       query  string  false  "Start of range"  example(2025-09-01)
// @Param        to         query  string  false  "End of range; date-only means end of day"  example(2025-09-30)
// @Param        page       query  int     false  "1-based page"  default(1)
// @Param        page_size  query  int     false  "Rows per page (max 500)"  default(50)
// @Success      200  {object}  models.ReadingPage
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/readings [get]
func (h *Handler) getReadings(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		return
	}

	page, err := queryInt(c, "page", 1)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}
	size, err := queryInt(c, "page_size", defaultPageSize)
	if err != nil || size < 1 || size > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be between 1 and 500"})
		return
	}

	res, err := h.services.Readings.ListRange(c.Request.Context(), from, to, page, size)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load readings", "readings_list_failed", err,
			"from", from, "to", to, "page", page)
		return
	}
	c.JSON(http.StatusOK, res)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
