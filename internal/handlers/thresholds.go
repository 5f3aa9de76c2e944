package handlers

import (
	"net/http"

	"farm_telemetry/internal/models"

	"github.com/gin-gonic/gin"
)

// @Summary      Current thresholds
// @Tags         thresholds
// @Produce      json
// @Success      200  {object}  models.Thresholds
// @Router       /api/v1/thresholds [get]
func (h *Handler) getThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Thresholds.Current())
}

// @Summary      Update thresholds
// @Description  EC bounds are in mS/cm and must lie within 0.5-3.0 with min < max. Nothing is applied on a validation error.
// @Tags         thresholds
// @Accept       json
// @Produce      json
// @Param        body  body  models.Thresholds  true  "Thresholds"
// @Success      200   {object}  models.Thresholds
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/thresholds [put]
// @Security     BearerAuth
func (h *Handler) putThresholds(c *gin.Context) {
	var t models.Thresholds
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	saved, err := h.services.Thresholds.Update(c.Request.Context(), t)
	if err != nil {
		h.serviceError(c, err, "failed to save thresholds", "thresholds_update_failed")
		return
	}
	c.JSON(http.StatusOK, saved)
}
