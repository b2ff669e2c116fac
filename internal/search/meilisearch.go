// Package search keeps a Meilisearch index of the stored plans.
package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"hotel-plan-finder/internal/models"

	"github.com/meilisearch/meilisearch-go"
	log "github.com/sirupsen/logrus"
)

// DefaultIndex is the index UID used when none is configured
const DefaultIndex = "plans"

// PlanDocument is the indexed form of a stored plan
type PlanDocument struct {
	PlanID           string  `json:"plan_id"`
	Site             string  `json:"site"`
	AcmID            string  `json:"acm_id"`
	AcmName          string  `json:"acm_name"`
	PrefName         string  `json:"pref_name"`
	AreaName         string  `json:"area_name"`
	SmallAreaName    string  `json:"small_area_name"`
	Score            float64 `json:"score"`
	PlanName         string  `json:"plan_name"`
	CatchCopy        string  `json:"catch_copy"`
	PointRate        *int    `json:"point_rate"`
	StayTime         int     `json:"stay_time"`
	Credit           int     `json:"credit"`
	CheapestRoomName string  `json:"cheapest_room_name"`
	CheapestMeal     string  `json:"cheapest_meal"`
	CheapestPrice    int     `json:"cheapest_price"`
	SearchURL        string  `json:"search_url"`
	AcmURL           string  `json:"acm_url"`
	LastCheckedAt    int64   `json:"last_checked_at"`
}

// DocumentFromRecord converts a stored plan into its index document
func DocumentFromRecord(r *models.PlanRecord) PlanDocument {
	return PlanDocument{
		PlanID:           r.PlanID,
		Site:             r.Site,
		AcmID:            r.AcmID,
		AcmName:          r.AcmName,
		PrefName:         r.PrefName,
		AreaName:         r.AreaName,
		SmallAreaName:    r.SmallAreaName,
		Score:            r.Score,
		PlanName:         r.PlanName,
		CatchCopy:        r.CatchCopy,
		PointRate:        r.PointRate,
		StayTime:         r.StayTime,
		Credit:           r.Credit,
		CheapestRoomName: r.CheapestRoomName,
		CheapestMeal:     r.CheapestMeal,
		CheapestPrice:    r.CheapestPrice,
		SearchURL:        r.SearchURL,
		AcmURL:           r.AcmURL,
		LastCheckedAt:    r.LastCheckedAt.Unix(),
	}
}

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey, index string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	if index == "" {
		index = DefaultIndex
	}

	return &SearchClient{
		client: client,
		index:  index,
	}
}

// InitIndex creates the index and configures its attributes
func (s *SearchClient) InitIndex() error {
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "plan_id",
	})
	// Ignore error if index already exists
	if err != nil && !strings.Contains(err.Error(), "index_already_exists") {
		return err
	}

	idx := s.client.Index(s.index)

	if _, err := idx.UpdateSearchableAttributes(&[]string{
		"acm_name",
		"plan_name",
		"catch_copy",
		"cheapest_room_name",
		"area_name",
		"small_area_name",
	}); err != nil {
		return err
	}

	if _, err := idx.UpdateFilterableAttributes(&[]string{
		"site",
		"acm_id",
		"pref_name",
		"point_rate",
		"stay_time",
		"credit",
		"cheapest_price",
	}); err != nil {
		return err
	}

	if _, err := idx.UpdateSortableAttributes(&[]string{
		"cheapest_price",
		"credit",
		"point_rate",
		"stay_time",
		"last_checked_at",
	}); err != nil {
		return err
	}

	return nil
}

// IndexPlans adds or replaces the documents of the given plans
func (s *SearchClient) IndexPlans(records []*models.PlanRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]PlanDocument, len(records))
	for i, r := range records {
		docs[i] = DocumentFromRecord(r)
	}

	task, err := s.client.Index(s.index).AddDocuments(docs, "plan_id")
	if err != nil {
		return fmt.Errorf("index %d plans: %w", len(docs), err)
	}
	log.Debugf("Search: queued %d plans (task %d)", len(docs), task.TaskUID)
	return nil
}

// Healthy reports whether the Meilisearch server answers
func (s *SearchClient) Healthy() bool {
	return s.client.IsHealthy()
}

// SearchResult is one page of plan search hits
type SearchResult struct {
	Hits           []PlanDocument `json:"hits"`
	TotalHits      int64          `json:"total_hits"`
	ProcessingTime int64          `json:"processing_time_ms"`
}

// FilterSearch runs a search with the filters and sort derived from params
func (s *SearchClient) FilterSearch(params FilterParams) (*SearchResult, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	if filter := params.Filter(); filter != "" {
		searchReq.Filter = filter
	}
	if sort := params.Sort(); len(sort) > 0 {
		searchReq.Sort = sort
	}

	searchRes, err := s.client.Index(s.index).Search(params.Query, searchReq)
	if err != nil {
		return nil, err
	}

	hits := make([]PlanDocument, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		// Convert hit to JSON then to the document struct
		hitJSON, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc PlanDocument
		if err := json.Unmarshal(hitJSON, &doc); err != nil {
			continue
		}
		hits = append(hits, doc)
	}

	return &SearchResult{
		Hits:           hits,
		TotalHits:      searchRes.EstimatedTotalHits,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}
