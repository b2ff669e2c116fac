package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"hotel-plan-finder/internal/search"
	"hotel-plan-finder/internal/store"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// PlanSearcher is the search index query surface
type PlanSearcher interface {
	FilterSearch(params search.FilterParams) (*search.SearchResult, error)
}

// PlanHandler serves stored plans
type PlanHandler struct {
	store    *store.Store
	searcher PlanSearcher
}

// NewPlanHandler creates a plan handler. searcher may be nil.
func NewPlanHandler(st *store.Store, searcher PlanSearcher) *PlanHandler {
	return &PlanHandler{store: st, searcher: searcher}
}

// GetPlans lists stored plans
func (h *PlanHandler) GetPlans(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	plans, total, err := h.store.List(c.Request.Context(), store.ListOptions{
		AcmID:  c.Query("acm_id"),
		Site:   c.Query("site"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.WithError(err).Error("Plans: list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plans": plans,
		"total": total,
		"count": len(plans),
	})
}

// GetPlan returns one stored plan
func (h *PlanHandler) GetPlan(c *gin.Context) {
	plan, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GetPlanEvents returns the change history of one plan
func (h *PlanHandler) GetPlanEvents(c *gin.Context) {
	id := c.Param("id")
	events, err := h.store.Events(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plan_id": id,
		"events":  events,
		"count":   len(events),
	})
}

// SearchPlans queries the search index
func (h *PlanHandler) SearchPlans(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search not configured"})
		return
	}

	params := search.FilterParams{
		Query:        c.Query("q"),
		Site:         c.Query("site"),
		AcmID:        c.Query("acm_id"),
		PrefName:     c.Query("pref_name"),
		MinPointRate: intQuery(c, "min_point_rate"),
		MinStayTime:  intQuery(c, "min_stay_time"),
		MinCredit:    intQuery(c, "min_credit"),
		MaxPrice:     intQuery(c, "max_price"),
		SortBy:       c.Query("sort"),
	}
	if v, err := strconv.ParseInt(c.Query("limit"), 10, 64); err == nil {
		params.Limit = v
	}
	if v, err := strconv.ParseInt(c.Query("offset"), 10, 64); err == nil {
		params.Offset = v
	}

	result, err := h.searcher.FilterSearch(params)
	if err != nil {
		log.WithError(err).Warn("Plans: search failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func intQuery(c *gin.Context, key string) *int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return nil
	}
	return &v
}
