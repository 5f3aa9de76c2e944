package handlers

import (
	"net/http"

	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	metrics  http.Handler
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler. metrics may be nil.
func NewHandler(services *service.Service, metrics http.Handler, log *logger.Logger) *Handler {
	return &Handler{services: services, metrics: metrics, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAPIRoutes(router)

	// Live view stream on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

// Reads are open; anything that switches hardware or changes configuration
// sits behind the token middleware.
func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/live", h.getLive)
		api.GET("/readings", h.getReadings)
		api.GET("/logs/", h.getLogs)
		api.GET("/relays", h.getRelays)
		api.GET("/schedules", h.listSchedules)
		api.GET("/thresholds", h.getThresholds)
	}

	protected := api.Group("", h.tokenMiddleware)
	{
		h.registerRelayRoutes(protected)
		h.registerScheduleRoutes(protected)
		protected.PUT("/thresholds", h.putThresholds)
	}
}

func (h *Handler) registerRelayRoutes(api *gin.RouterGroup) {
	api.POST("/relays/:id", h.setRelay)

	fert := api.Group("/fertigation")
	{
		// Body example: {"minutes":2.5}
		fert.POST("/start", h.startFertigation)
		fert.POST("/stop", h.stopFertigation)
	}
}

func (h *Handler) registerScheduleRoutes(api *gin.RouterGroup) {
	schedules := api.Group("/schedules")
	{
		schedules.POST("", h.createSchedule)
		schedules.DELETE("/:id", h.deleteSchedule)
		schedules.PATCH("/:id/enabled", h.setScheduleEnabled)
	}
}
