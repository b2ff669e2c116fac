package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// healthChecker is implemented by search backends that can be pinged
type healthChecker interface {
	Healthy() bool
}

// Health reports liveness and, when search is configured, whether the index answers
func (h *PlanHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"time":   time.Now(),
	}
	if hc, ok := h.searcher.(healthChecker); ok {
		resp["search"] = "ok"
		if !hc.Healthy() {
			resp["search"] = "unavailable"
		}
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes mounts the read and admin API on r
func RegisterRoutes(r *gin.Engine, plans *PlanHandler, admin *AdminHandler) {
	r.GET("/health", plans.Health)

	api := r.Group("/api")
	{
		api.GET("/plans", plans.GetPlans)
		api.GET("/plans/search", plans.SearchPlans)
		api.GET("/plans/:id", plans.GetPlan)
		api.GET("/plans/:id/events", plans.GetPlanEvents)
	}

	adminGroup := api.Group("/admin")
	{
		adminGroup.GET("/stats", admin.GetStats)
		adminGroup.GET("/run", admin.GetRunStatus)
		adminGroup.POST("/run", admin.TriggerRun)
		adminGroup.POST("/cleanup", admin.RunCleanup)
		adminGroup.POST("/reindex", admin.ReindexPlans)
		adminGroup.POST("/reload-hotels", admin.ReloadHotels)
	}
}
