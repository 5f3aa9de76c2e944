package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// SetRelayRequest switches one relay.
type SetRelayRequest struct {
	On *bool `json:"on" binding:"required" example:"true"`
}

// FertigationRequest starts a timed fertigation cycle.
type FertigationRequest struct {
	// Cycle length; fractions are allowed.
	Minutes float64 `json:"minutes" binding:"required" example:"2.5"`
}

// @Summary      Relay status
// @Description  Last relay status reported by the controller on the data topic.
// @Tags         relays
// @Produce      json
// @Success      200  {object}  models.RelayStatus
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/relays [get]
func (h *Handler) getRelays(c *gin.Context) {
	st, ok := h.services.Relays.Status()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no relay status reported yet"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Switch relay
// @Description  Publishes R{n}ON or R{n}OFF. Cancels any pending auto-off on the relay.
// @Tags         relays
// @Accept       json
// @Produce      json
// @Param        id    path  int              true  "Relay number (1-based)"
// @Param        body  body  SetRelayRequest  true  "Desired state"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/relays/{id} [post]
// @Security     BearerAuth
func (h *Handler) setRelay(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "relay id must be an integer"})
		return
	}
	var req SetRelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Relays.Set(c.Request.Context(), id, *req.On); err != nil {
		h.serviceError(c, err, "failed to send relay command", "relay_command_failed", "relay", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "relay": id, "on": *req.On})
}

// @Summary      Start fertigation
// @Tags         relays
// @Accept       json
// @Produce      json
// @Param        body  body  FertigationRequest  true  "Cycle length"
// @Success      200   {object}  models.ArmedTimer
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/fertigation/start [post]
// @Security     BearerAuth
func (h *Handler) startFertigation(c *gin.Context) {
	var req FertigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	t, err := h.services.Relays.StartFertigation(c.Request.Context(), req.Minutes)
	if err != nil {
		h.serviceError(c, err, "failed to start fertigation", "fertigation_start_failed", "minutes", req.Minutes)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Stop fertigation
// @Tags         relays
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/fertigation/stop [post]
// @Security     BearerAuth
func (h *Handler) stopFertigation(c *gin.Context) {
	if err := h.services.Relays.StopFertigation(c.Request.Context()); err != nil {
		h.serviceError(c, err, "failed to stop fertigation", "fertigation_stop_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}
