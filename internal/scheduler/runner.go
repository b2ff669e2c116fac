package scheduler

import (
	"context"
	"sync"
	"time"

	"hotel-plan-finder/internal/config"
	"hotel-plan-finder/internal/extractor"
	"hotel-plan-finder/internal/logging"
	"hotel-plan-finder/internal/models"
	"hotel-plan-finder/internal/scraper"
	"hotel-plan-finder/internal/store"

	log "github.com/sirupsen/logrus"
)

// PlanScanner scans one property on one site
type PlanScanner interface {
	Scan(ctx context.Context, req scraper.ScanRequest) (*scraper.ScanResult, error)
}

// PlanStore persists scanned plans
type PlanStore interface {
	Upsert(ctx context.Context, site string, acm models.Property, plan models.Plan, searchURL string, now time.Time) (store.ChangeEvent, error)
}

// PlanIndexer receives the plans a pass inserted or updated
type PlanIndexer interface {
	IndexPlans(records []*models.PlanRecord) error
}

// RunStats summarises one pass
type RunStats struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Properties int           `json:"properties"` // property scans attempted
	Failed     int           `json:"failed"`     // property scans that errored
	Plans      int           `json:"plans"`      // plans that met their conditions
	Skipped    int           `json:"skipped"`    // plans dropped by extraction
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Unchanged  int           `json:"unchanged"`
	StoreErrs  int           `json:"store_errors"`
}

// Runner performs one scan pass over every enabled hotel
type Runner struct {
	scanner       PlanScanner
	store         PlanStore
	indexer       PlanIndexer
	sites         []extractor.Site
	propertyDelay time.Duration
	now           func() time.Time

	mu     sync.Mutex
	hotels []config.Hotel
}

// NewRunner creates a runner. indexer may be nil.
func NewRunner(scanner PlanScanner, st PlanStore, indexer PlanIndexer, sites []extractor.Site, hotels []config.Hotel, propertyDelay time.Duration) *Runner {
	return &Runner{
		scanner:       scanner,
		store:         st,
		indexer:       indexer,
		sites:         sites,
		hotels:        hotels,
		propertyDelay: propertyDelay,
		now:           time.Now,
	}
}

// SetHotels replaces the hotel list. A pass in progress keeps the list it
// started with.
func (r *Runner) SetHotels(hotels []config.Hotel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hotels = hotels
}

// RunOnce scans every enabled hotel on each site it selects. A failing
// property is logged and the pass moves on; only cancellation stops it early.
func (r *Runner) RunOnce(ctx context.Context) (RunStats, error) {
	r.mu.Lock()
	hotels := r.hotels
	r.mu.Unlock()

	stats := RunStats{RunID: logging.NewRunID(), StartedAt: r.now()}
	logger := logging.ForRun(stats.RunID)
	logger.Infof("Runner: starting pass over %d hotels on %d sites", len(hotels), len(r.sites))

	first := true
	for _, hotel := range hotels {
		if !hotel.Enabled {
			continue
		}
		for _, site := range r.sites {
			if !hotel.ScansSite(site.Name) {
				continue
			}

			if !first && r.propertyDelay > 0 {
				select {
				case <-ctx.Done():
					stats.Duration = r.now().Sub(stats.StartedAt)
					logger.Warn("Runner: pass cancelled")
					return stats, ctx.Err()
				case <-time.After(r.propertyDelay):
				}
			}
			first = false

			if err := ctx.Err(); err != nil {
				stats.Duration = r.now().Sub(stats.StartedAt)
				return stats, err
			}

			r.scanProperty(ctx, logger, site, hotel, &stats)
		}
	}

	stats.Duration = r.now().Sub(stats.StartedAt)
	logger.WithFields(log.Fields{
		"properties": stats.Properties,
		"failed":     stats.Failed,
		"inserted":   stats.Inserted,
		"updated":    stats.Updated,
		"unchanged":  stats.Unchanged,
	}).Info("Runner: pass completed")

	return stats, nil
}

func (r *Runner) scanProperty(ctx context.Context, logger *log.Entry, site extractor.Site, hotel config.Hotel, stats *RunStats) {
	stats.Properties++
	entry := logger.WithFields(log.Fields{"site": site.Name, "acm_id": hotel.AcmID})

	result, err := r.scanner.Scan(ctx, scraper.ScanRequest{
		Site:       site,
		AcmID:      hotel.AcmID,
		Filters:    hotel.Filters,
		Conditions: hotel.Conditions,
	})
	if err != nil {
		stats.Failed++
		entry.WithError(err).Warn("Runner: scan failed")
		return
	}

	stats.Plans += len(result.Plans)
	stats.Skipped += result.Skipped

	var changed []*models.PlanRecord
	for _, plan := range result.Plans {
		ev, err := r.store.Upsert(ctx, site.Name, result.Property, plan, result.Metadata.SearchURL, r.now())
		if err != nil {
			stats.StoreErrs++
			entry.WithError(err).WithField("plan_id", plan.PlanID).Error("Runner: failed to store plan")
			continue
		}

		switch ev.Kind {
		case store.Inserted:
			stats.Inserted++
			changed = append(changed, ev.New)
		case store.Updated:
			stats.Updated++
			changed = append(changed, ev.New)
		default:
			stats.Unchanged++
		}
	}

	entry.Debugf("Runner: %d plans matched, %d changed", len(result.Plans), len(changed))

	if r.indexer != nil && len(changed) > 0 {
		if err := r.indexer.IndexPlans(changed); err != nil {
			entry.WithError(err).Warn("Runner: failed to index plans")
		}
	}
}
