package handlers

import (
	"net/http"

	"farm_telemetry/internal/models"

	"github.com/gin-gonic/gin"
)

// EnableRequest toggles a schedule rule.
type EnableRequest struct {
	Enabled *bool `json:"enabled" binding:"required" example:"false"`
}

// @Summary      List schedule rules
// @Tags         schedules
// @Produce      json
// @Success      200  {array}   models.ScheduleRule
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/schedules [get]
func (h *Handler) listSchedules(c *gin.Context) {
	rules, err := h.services.Schedules.List(c.Request.Context())
	if err != nil {
		h.serviceError(c, err, "failed to load schedules", "schedules_list_failed")
		return
	}
	if rules == nil {
		rules = []models.ScheduleRule{}
	}
	c.JSON(http.StatusOK, rules)
}

// @Summary      Create schedule rule
// @Description  12-hour clock; state "on" rules may carry an auto-off duration in seconds.
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        body  body  models.ScheduleRule  true  "Rule"
// @Success      201   {object}  models.ScheduleRule
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/schedules [post]
// @Security     BearerAuth
func (h *Handler) createSchedule(c *gin.Context) {
	var rule models.ScheduleRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	rule.ID = ""
	created, err := h.services.Schedules.Create(c.Request.Context(), rule)
	if err != nil {
		h.serviceError(c, err, "failed to create schedule", "schedule_create_failed", "name", rule.Name)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary      Delete schedule rule
// @Tags         schedules
// @Param        id  path  string  true  "Rule id"
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/schedules/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteSchedule(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Schedules.Delete(c.Request.Context(), id); err != nil {
		h.serviceError(c, err, "failed to delete schedule", "schedule_delete_failed", "id", id)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Enable or disable schedule rule
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        id    path  string         true  "Rule id"
// @Param        body  body  EnableRequest  true  "Enabled flag"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/schedules/{id}/enabled [patch]
// @Security     BearerAuth
func (h *Handler) setScheduleEnabled(c *gin.Context) {
	id := c.Param("id")
	var req EnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Schedules.SetEnabled(c.Request.Context(), id, *req.Enabled); err != nil {
		h.serviceError(c, err, "failed to update schedule", "schedule_enable_failed", "id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": *req.Enabled})
}
