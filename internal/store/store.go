// Package store persists scanned plans, writing only when a watched field
// changed, and records every write in the plan_events outbox.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotel-plan-finder/internal/database"
	"hotel-plan-finder/internal/extractor"
	"hotel-plan-finder/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when no plan has the requested ID
	ErrNotFound = errors.New("plan not found")

	// ErrPreconditionFailed means the conditional update found nothing to
	// change at write time. Upsert reports it as Unchanged.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Kind classifies the outcome of an upsert
type Kind int

const (
	Unchanged Kind = iota
	Inserted
	Updated
)

func (k Kind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// ChangeEvent is the result of one upsert. Old is set for Updated, New for
// Inserted and Updated.
type ChangeEvent struct {
	Kind    Kind
	Old     *models.PlanRecord
	New     *models.PlanRecord
	Changed []string // watched fields that differed
}

// Store is the change-aware plan store
type Store struct {
	db    *gorm.DB
	watch []WatchField
}

// New creates a store comparing the named watch fields (defaults when empty)
func New(db *gorm.DB, watchFields []string) (*Store, error) {
	fields, err := LookupWatchFields(watchFields)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, watch: fields}, nil
}

// DB returns the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Upsert stores a scanned plan. A new plan is inserted; an existing plan is
// rewritten only when a watched field differs, and the write itself is
// conditioned on that difference still holding.
func (s *Store) Upsert(ctx context.Context, site string, acm models.Property, plan models.Plan, searchURL string, now time.Time) (ChangeEvent, error) {
	if len(plan.Rooms) == 0 {
		return ChangeEvent{}, fmt.Errorf("plan %s: %w", plan.PlanID, extractor.ErrEmptyRoomList)
	}

	record := models.NewPlanRecord(site, acm, plan, searchURL, now)

	existing, err := s.Get(ctx, plan.PlanID)
	if errors.Is(err, ErrNotFound) {
		return s.insert(ctx, record)
	}
	if err != nil {
		return ChangeEvent{}, err
	}

	changed := changedFields(s.watch, existing, record)
	if len(changed) == 0 {
		return ChangeEvent{Kind: Unchanged}, nil
	}

	record.CreatedAt = existing.CreatedAt
	if record.LastCheckedAt.Before(record.CreatedAt) {
		record.LastCheckedAt = record.CreatedAt
	}

	err = s.conditionalUpdate(ctx, record, existing)
	if errors.Is(err, ErrPreconditionFailed) {
		log.Infof("Store: plan %s not updated, condition not met", plan.PlanID)
		return ChangeEvent{Kind: Unchanged}, nil
	}
	if err != nil {
		return ChangeEvent{}, err
	}

	log.WithFields(log.Fields{"plan_id": plan.PlanID, "changed": changed}).Info("Store: updated plan")
	return ChangeEvent{Kind: Updated, Old: existing, New: record, Changed: changed}, nil
}

func (s *Store) insert(ctx context.Context, record *models.PlanRecord) (ChangeEvent, error) {
	inserted := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
		if res.Error != nil {
			return fmt.Errorf("insert plan %s: %w", record.PlanID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		event, err := models.NewPlanEvent(models.EventInsert, record, nil, record.CreatedAt)
		if err != nil {
			return err
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("record insert event for %s: %w", record.PlanID, err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return ChangeEvent{}, err
	}

	if !inserted {
		log.Infof("Store: plan %s was inserted concurrently", record.PlanID)
		return ChangeEvent{Kind: Unchanged}, nil
	}

	log.WithField("plan_id", record.PlanID).Info("Store: saved new plan")
	return ChangeEvent{Kind: Inserted, New: record}, nil
}

// conditionalUpdate rewrites the plan in one UPDATE whose WHERE clause
// requires a watched column to still differ from the new value. Zero rows
// affected is ErrPreconditionFailed.
func (s *Store) conditionalUpdate(ctx context.Context, record, old *models.PlanRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conds := make([]string, len(s.watch))
		args := make([]any, 0, len(s.watch)+1)
		args = append(args, record.PlanID)
		for i, f := range s.watch {
			conds[i] = database.DistinctExpr(tx, f.Column)
			args = append(args, f.Value(record))
		}
		where := fmt.Sprintf("plan_id = ? AND (%s)", strings.Join(conds, " OR "))

		res := tx.Model(&models.PlanRecord{}).Where(where, args...).Updates(updateColumns(record))
		if res.Error != nil {
			return fmt.Errorf("update plan %s: %w", record.PlanID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrPreconditionFailed
		}

		event, err := models.NewPlanEvent(models.EventModify, record, old, record.LastCheckedAt)
		if err != nil {
			return err
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("record modify event for %s: %w", record.PlanID, err)
		}
		return nil
	})
}

// updateColumns lists every column a rescan replaces. plan_id and
// created_at are never rewritten.
func updateColumns(r *models.PlanRecord) map[string]any {
	return map[string]any{
		"site":               r.Site,
		"acm_id":             r.AcmID,
		"acm_name":           r.AcmName,
		"pref_name":          r.PrefName,
		"area_name":          r.AreaName,
		"small_area_name":    r.SmallAreaName,
		"score":              r.Score,
		"acm_url":            r.AcmURL,
		"plan_name":          r.PlanName,
		"catch_copy":         r.CatchCopy,
		"point_rate":         r.PointRate,
		"stay_time":          r.StayTime,
		"credit":             r.Credit,
		"rooms":              r.Rooms,
		"cheapest_room_name": r.CheapestRoomName,
		"cheapest_room_type": r.CheapestRoomType,
		"cheapest_area":      r.CheapestArea,
		"cheapest_meal":      r.CheapestMeal,
		"cheapest_price":     r.CheapestPrice,
		"search_url":         r.SearchURL,
		"last_checked_at":    r.LastCheckedAt,
	}
}

// Get returns the stored plan or ErrNotFound
func (s *Store) Get(ctx context.Context, planID string) (*models.PlanRecord, error) {
	var record models.PlanRecord
	err := s.db.WithContext(ctx).Where("plan_id = ?", planID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", planID, err)
	}
	return &record, nil
}

// ListOptions filters and pages List
type ListOptions struct {
	AcmID  string
	Site   string
	Limit  int
	Offset int
}

// List returns stored plans, most recently checked first, and the total count
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.PlanRecord, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.PlanRecord{})
	if opts.AcmID != "" {
		q = q.Where("acm_id = ?", opts.AcmID)
	}
	if opts.Site != "" {
		q = q.Where("site = ?", opts.Site)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count plans: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []models.PlanRecord
	err := q.Order("last_checked_at DESC").Order("plan_id").Limit(limit).Offset(opts.Offset).Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list plans: %w", err)
	}
	return records, total, nil
}

// Events returns the outbox rows of one plan in write order
func (s *Store) Events(ctx context.Context, planID string) ([]models.PlanEvent, error) {
	var events []models.PlanEvent
	err := s.db.WithContext(ctx).Where("plan_id = ?", planID).Order("id").Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", planID, err)
	}
	return events, nil
}

// Stats summarises the stored plans and the outbox
type Stats struct {
	Plans      int64            `json:"plans"`
	Properties int64            `json:"properties"`
	Events     map[string]int64 `json:"events"`
}

// Stats counts plans, properties and outbox rows by status
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{Events: make(map[string]int64)}

	if err := db.Model(&models.PlanRecord{}).Count(&stats.Plans).Error; err != nil {
		return nil, fmt.Errorf("count plans: %w", err)
	}
	if err := db.Model(&models.PlanRecord{}).Distinct("acm_id").Count(&stats.Properties).Error; err != nil {
		return nil, fmt.Errorf("count properties: %w", err)
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&models.PlanEvent{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	for _, r := range rows {
		stats.Events[r.Status] = r.Count
	}
	return stats, nil
}
