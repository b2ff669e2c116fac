// Package scraper fetches search results from the hotel sites and turns them
// into qualifying plans.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"hotel-plan-finder/internal/extractor"
	"hotel-plan-finder/internal/ratelimit"

	log "github.com/sirupsen/logrus"
)

// ErrUpstream matches every UpstreamError
var ErrUpstream = errors.New("upstream error")

// UpstreamError reports a failed or contract-violating search response
type UpstreamError struct {
	Site       string
	StatusCode int
	Reason     string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream %s: %s", e.Site, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ClientConfig configures the SearchClient
type ClientConfig struct {
	Timeout           time.Duration
	UserAgent         string
	MaxInFlight       int
	BaseDelay         time.Duration
	Jitter            time.Duration
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
	LimitEnabled      bool
	Breaker           CircuitBreakerConfig
	MaxBodyBytes      int64
}

// DefaultClientConfig returns the settings used when none are configured
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:           30 * time.Second,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		MaxInFlight:       1,
		BaseDelay:         2 * time.Second,
		Jitter:            time.Second,
		RequestsPerMinute: 10,
		RequestsPerHour:   200,
		RequestsPerDay:    2000,
		LimitEnabled:      true,
		Breaker:           DefaultCircuitBreakerConfig(),
		MaxBodyBytes:      16 << 20,
	}
}

// SearchResult is the raw body of one search together with the effective query
type SearchResult struct {
	Body       []byte
	Query      url.Values
	URL        string
	StatusCode int
}

// siteGuard bundles the per-site request controls
type siteGuard struct {
	pacer   *ratelimit.SiteLimiter
	window  *ratelimit.WindowLimiter
	breaker *CircuitBreaker
}

// SearchClient performs search requests. Each site gets its own pacing
// limiter, request ceiling and circuit breaker. It never retries.
type SearchClient struct {
	client *http.Client
	config ClientConfig

	mu     sync.Mutex
	guards map[string]*siteGuard
}

// NewSearchClient creates a client with the given configuration
func NewSearchClient(config ClientConfig) *SearchClient {
	return &SearchClient{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
		guards: make(map[string]*siteGuard),
	}
}

func (c *SearchClient) guard(site string) *siteGuard {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guards[site]
	if !ok {
		g = &siteGuard{
			pacer:   ratelimit.NewSiteLimiter(c.config.MaxInFlight, c.config.BaseDelay, c.config.Jitter),
			window:  ratelimit.NewWindowLimiter(c.config.RequestsPerMinute, c.config.RequestsPerHour, c.config.RequestsPerDay, c.config.LimitEnabled),
			breaker: NewCircuitBreaker(site, c.config.Breaker),
		}
		c.guards[site] = g
	}
	return g
}

// Search issues one GET against the site's search endpoint
func (c *SearchClient) Search(ctx context.Context, site extractor.Site, query url.Values) (*SearchResult, error) {
	g := c.guard(site.Name)

	if !g.breaker.CanProceed() {
		st := g.breaker.Status()
		return nil, &UpstreamError{Site: site.Name, Reason: fmt.Sprintf("circuit breaker open (%d/%d failures)", st.Failures, st.TotalRequests)}
	}
	if !g.window.Allow() {
		return nil, &UpstreamError{Site: site.Name, Reason: "request ceiling reached"}
	}

	if err := g.pacer.Acquire(ctx); err != nil {
		return nil, &UpstreamError{Site: site.Name, Reason: "waiting for request slot", Err: err}
	}
	defer g.pacer.Release()

	endpoint, err := url.Parse(site.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint for %s: %w", site.Name, err)
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.applyHeaders(req, site)

	log.Debugf("SearchClient: GET %s", req.URL)

	resp, err := c.client.Do(req)
	if err != nil {
		g.breaker.RecordFailure(0)
		return nil, &UpstreamError{Site: site.Name, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.breaker.RecordFailure(resp.StatusCode)
		return nil, &UpstreamError{Site: site.Name, StatusCode: resp.StatusCode, Reason: "unexpected status"}
	}

	reader := io.Reader(resp.Body)
	if c.config.MaxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, c.config.MaxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		g.breaker.RecordFailure(0)
		return nil, &UpstreamError{Site: site.Name, StatusCode: resp.StatusCode, Reason: "read body", Err: err}
	}

	g.breaker.RecordSuccess()

	return &SearchResult{
		Body:       body,
		Query:      query,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
	}, nil
}

// applyHeaders sets the headers the search API expects from its own frontend
func (c *SearchClient) applyHeaders(req *http.Request, site extractor.Site) {
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if site.Authority != "" {
		req.Header.Set("authority", site.Authority)
	}
	req.Header.Set("accept", "*/*")
	req.Header.Set("sec-fetch-site", "same-origin")
	req.Header.Set("sec-fetch-mode", "cors")
	req.Header.Set("sec-fetch-dest", "empty")
	req.Header.Set("accept-language", "ja,en-US;q=0.9,en;q=0.8")
}

// SiteStats is the request accounting of one site
type SiteStats struct {
	InFlight int             `json:"in_flight"`
	Requests ratelimit.Stats `json:"requests"`
	Breaker  BreakerStatus   `json:"breaker"`
}

// Stats returns request accounting for every site contacted so far
func (c *SearchClient) Stats() map[string]SiteStats {
	c.mu.Lock()
	guards := make(map[string]*siteGuard, len(c.guards))
	for name, g := range c.guards {
		guards[name] = g
	}
	c.mu.Unlock()

	stats := make(map[string]SiteStats, len(guards))
	for name, g := range guards {
		stats[name] = SiteStats{
			InFlight: g.pacer.InFlight(),
			Requests: g.window.Stats(),
			Breaker:  g.breaker.Status(),
		}
	}
	return stats
}
