package handlers

import (
	"errors"
	"net/http"

	"hotel-plan-finder/internal/cleanup"
	"hotel-plan-finder/internal/models"
	"hotel-plan-finder/internal/scheduler"
	"hotel-plan-finder/internal/scraper"
	"hotel-plan-finder/internal/store"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// PassTrigger starts scan passes and reports on them
type PassTrigger interface {
	Trigger() error
	Status() scheduler.Status
}

// RequestStats reports per-site request counters
type RequestStats interface {
	Stats() map[string]scraper.SiteStats
}

// PlanIndexer receives plans to (re)index
type PlanIndexer interface {
	IndexPlans(records []*models.PlanRecord) error
}

// DeliveryStats reports the notification dispatcher state
type DeliveryStats interface {
	Stats() map[string]interface{}
}

// HotelReloader rereads the hotel list
type HotelReloader interface {
	ReloadHotels() (int, error)
}

// AdminHandler handles admin-related requests
type AdminHandler struct {
	store          *store.Store
	scheduler      PassTrigger
	cleanupService *cleanup.Service
	cleanupConfig  cleanup.CleanupConfig
	requests       RequestStats
	indexer        PlanIndexer
	delivery       DeliveryStats
	reloader       HotelReloader
}

// NewAdminHandler creates a new admin handler. sched and requests may be nil.
func NewAdminHandler(st *store.Store, sched PassTrigger, cleanupService *cleanup.Service, cleanupConfig cleanup.CleanupConfig, requests RequestStats) *AdminHandler {
	return &AdminHandler{
		store:          st,
		scheduler:      sched,
		cleanupService: cleanupService,
		cleanupConfig:  cleanupConfig,
		requests:       requests,
	}
}

// SetIndexer enables the reindex endpoint
func (h *AdminHandler) SetIndexer(indexer PlanIndexer) {
	h.indexer = indexer
}

// SetDeliveryStats adds the dispatcher state to GetStats
func (h *AdminHandler) SetDeliveryStats(delivery DeliveryStats) {
	h.delivery = delivery
}

// SetReloader enables the hotel reload endpoint
func (h *AdminHandler) SetReloader(reloader HotelReloader) {
	h.reloader = reloader
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats := make(map[string]interface{})

	storeStats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Admin: failed to get store stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	stats["plans"] = storeStats.Plans
	stats["properties"] = storeStats.Properties
	stats["events"] = storeStats.Events

	if h.requests != nil {
		stats["requests"] = h.requests.Stats()
	}
	if h.scheduler != nil {
		stats["scheduler"] = h.scheduler.Status()
	}
	if h.delivery != nil {
		stats["dispatcher"] = h.delivery.Stats()
	}

	c.JSON(http.StatusOK, stats)
}

// TriggerRun manually starts a scan pass
func (h *AdminHandler) TriggerRun(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not available"})
		return
	}

	log.Println("Admin: Manual scan trigger requested")

	if err := h.scheduler.Trigger(); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": "running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Scan pass started",
		"status":  "running",
	})
}

// GetRunStatus returns the scheduler state and the last pass summary
func (h *AdminHandler) GetRunStatus(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not available"})
		return
	}
	c.JSON(http.StatusOK, h.scheduler.Status())
}

// RunCleanup prunes delivered outbox events
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	var req struct {
		RetentionDays    int   `json:"retention_days"`
		MaxDeletionCount int   `json:"max_deletion_count"`
		DryRun           *bool `json:"dry_run"` // defaults to true
	}

	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	config := h.cleanupConfig
	if req.RetentionDays > 0 {
		config.RetentionDays = req.RetentionDays
	}
	if req.MaxDeletionCount > 0 {
		config.MaxDeletionCount = req.MaxDeletionCount
	}
	config.DryRun = true
	if req.DryRun != nil {
		config.DryRun = *req.DryRun
	}

	log.Printf("Admin: Running cleanup (retention: %d days, max: %d, dry-run: %v)",
		config.RetentionDays, config.MaxDeletionCount, config.DryRun)

	result, err := h.cleanupService.PruneEvents(c.Request.Context(), config)
	if err != nil {
		log.Printf("Admin: Cleanup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReloadHotels rereads the hotel list without restarting the process
func (h *AdminHandler) ReloadHotels(c *gin.Context) {
	if h.reloader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Hotel reload not available"})
		return
	}

	enabled, err := h.reloader.ReloadHotels()
	if err != nil {
		log.WithError(err).Error("Admin: hotel reload failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Hotels reloaded",
		"enabled": enabled,
	})
}

const reindexPageSize = 200

// ReindexPlans pushes every stored plan to the search index
func (h *AdminHandler) ReindexPlans(c *gin.Context) {
	if h.indexer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search not configured"})
		return
	}

	log.Println("[Reindex] Starting full reindex")

	indexed, failed := 0, 0
	for offset := 0; ; offset += reindexPageSize {
		records, _, err := h.store.List(c.Request.Context(), store.ListOptions{Limit: reindexPageSize, Offset: offset})
		if err != nil {
			log.WithError(err).Error("[Reindex] Error fetching plans")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch plans from database"})
			return
		}
		if len(records) == 0 {
			break
		}

		batch := make([]*models.PlanRecord, len(records))
		for i := range records {
			batch[i] = &records[i]
		}
		if err := h.indexer.IndexPlans(batch); err != nil {
			log.WithError(err).Warnf("[Reindex] Error indexing plans %d-%d", offset, offset+len(records))
			failed += len(records)
		} else {
			indexed += len(records)
		}

		if len(records) < reindexPageSize {
			break
		}
	}

	log.Printf("[Reindex] Reindex complete. Indexed: %d, Failed: %d", indexed, failed)

	c.JSON(http.StatusOK, gin.H{
		"message": "Reindex complete",
		"total":   indexed + failed,
		"indexed": indexed,
		"failed":  failed,
	})
}
