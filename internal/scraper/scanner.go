package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"hotel-plan-finder/internal/extractor"
	"hotel-plan-finder/internal/filter"
	"hotel-plan-finder/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// propertyParam is the query key carrying the property ID
const propertyParam = "aid"

// baseParams are sent with every search
var baseParams = map[string]string{
	"adc":      "1",
	"discsort": "1",
	"ipb":      "1",
	"lc":       "1",
	"mtc":      "001",
	"ppc":      "2",
	"rc":       "1",
	"si":       "8",
	"st":       "1",
}

// Searcher is the part of SearchClient the Scanner needs
type Searcher interface {
	Search(ctx context.Context, site extractor.Site, query url.Values) (*SearchResult, error)
}

// ScanRequest describes one property on one site
type ScanRequest struct {
	Site       extractor.Site
	AcmID      string
	Filters    []string
	Conditions models.Conditions
}

// ScanResult holds the plans of one property that met its conditions
type ScanResult struct {
	Property models.Property
	Plans    []models.Plan
	Metadata models.Metadata
	Total    int // plans in the payload
	Skipped  int // plans that failed extraction
}

// Scanner fetches, extracts and filters the plans of one property
type Scanner struct {
	client Searcher
}

// NewScanner creates a scanner over client
func NewScanner(client Searcher) *Scanner {
	return &Scanner{client: client}
}

// BuildQuery merges the base parameters, the property ID and the encoded filters
func BuildQuery(acmID string, filters []string) (url.Values, error) {
	masks, err := filter.Encode(filters)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	for k, v := range baseParams {
		q.Set(k, v)
	}
	q.Set(propertyParam, acmID)
	masks.Apply(q)

	return q, nil
}

// BuildSearchURL rebuilds the public search page of a property from the
// query that was sent, without the property ID parameter.
func BuildSearchURL(baseURL, acmID string, query url.Values) string {
	q := url.Values{}
	for k, v := range query {
		if k == propertyParam || len(v) == 0 {
			continue
		}
		q.Set(k, v[0])
	}
	return fmt.Sprintf("%s/%s/?%s", strings.TrimRight(baseURL, "/"), acmID, q.Encode())
}

// Scan runs one search and returns the plans that meet req.Conditions.
// Plans that fail extraction are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	query, err := BuildQuery(req.AcmID, req.Filters)
	if err != nil {
		return nil, fmt.Errorf("build query for %s: %w", req.AcmID, err)
	}

	res, err := s.client.Search(ctx, req.Site, query)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(res.Body) {
		return nil, &UpstreamError{Site: req.Site.Name, StatusCode: res.StatusCode, Reason: "response is not valid JSON"}
	}
	acmList := gjson.GetBytes(res.Body, "AcmList")
	if !acmList.IsArray() {
		return nil, &UpstreamError{Site: req.Site.Name, StatusCode: res.StatusCode, Reason: "AcmList is not an array"}
	}
	if n := len(acmList.Array()); n != 1 {
		return nil, &UpstreamError{Site: req.Site.Name, StatusCode: res.StatusCode, Reason: fmt.Sprintf("expected exactly one property, got %d", n)}
	}
	rawAcm := acmList.Array()[0]

	ex := extractor.New(req.Site)

	property, err := ex.Property(rawAcm)
	if err != nil {
		return nil, &UpstreamError{Site: req.Site.Name, StatusCode: res.StatusCode, Reason: "invalid property record", Err: err}
	}

	result := &ScanResult{
		Property: property,
		Metadata: models.Metadata{SearchURL: BuildSearchURL(req.Site.BaseURL, property.AcmID, res.Query)},
	}

	for _, rawPlan := range rawAcm.Get("PlnList").Array() {
		result.Total++

		plan, err := ex.Plan(rawPlan)
		if err != nil {
			result.Skipped++
			log.WithFields(log.Fields{
				"site":    req.Site.Name,
				"acm_id":  property.AcmID,
				"plan_id": rawPlan.Get("PlnId").String(),
			}).WithError(err).Warn("Scanner: skipping plan")
			continue
		}

		if plan.Meets(req.Conditions) {
			result.Plans = append(result.Plans, plan)
		}
	}

	log.Debugf("Scanner: %s/%s %d plans, %d qualifying, %d skipped",
		req.Site.Name, property.AcmID, result.Total, len(result.Plans), result.Skipped)

	return result, nil
}
