// Package cleanup prunes delivered notification events from the outbox.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"hotel-plan-finder/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service deletes outbox rows that reached a final status
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a new cleanup service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// CleanupConfig holds configuration for cleanup operations
type CleanupConfig struct {
	RetentionDays    int  // Days to keep finished events (default: 30)
	MaxDeletionCount int  // Maximum number of events to delete in one run
	DryRun           bool // If true, only report what would be deleted
}

// DefaultCleanupConfig returns default configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		RetentionDays:    30,
		MaxDeletionCount: 1000,
	}
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	TargetCount  int       `json:"target_count"`  // Events eligible for deletion
	DeletedCount int       `json:"deleted_count"` // Events deleted (or that would be, in a dry run)
	SkippedCount int       `json:"skipped_count"` // Eligible events left for the next run
	DryRun       bool      `json:"dry_run"`
	Cutoff       time.Time `json:"cutoff"`
	ExecutedAt   time.Time `json:"executed_at"`
	DeletedIDs   []int64   `json:"deleted_ids,omitempty"`
}

func (s *Service) expired(ctx context.Context, cutoff time.Time) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.PlanEvent{}).
		Where("status IN ?", []string{models.EventStatusDone, models.EventStatusPermanentFail}).
		Where("created_at < ?", cutoff)
}

// PruneEvents deletes finished events older than the retention period,
// oldest first and at most MaxDeletionCount per run. Pending and failed
// events are never touched.
func (s *Service) PruneEvents(ctx context.Context, config CleanupConfig) (*CleanupResult, error) {
	if config.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention_days must be positive, got %d", config.RetentionDays)
	}

	now := s.now()
	result := &CleanupResult{
		DryRun:     config.DryRun,
		Cutoff:     now.AddDate(0, 0, -config.RetentionDays),
		ExecutedAt: now,
	}

	var target int64
	if err := s.expired(ctx, result.Cutoff).Count(&target).Error; err != nil {
		return nil, fmt.Errorf("failed to count expired events: %w", err)
	}
	result.TargetCount = int(target)

	if result.TargetCount == 0 {
		log.Info("Cleanup: no expired events")
		return result, nil
	}

	limit := config.MaxDeletionCount
	if limit <= 0 || limit > result.TargetCount {
		limit = result.TargetCount
	}

	var ids []int64
	if err := s.expired(ctx, result.Cutoff).Order("id ASC").Limit(limit).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to find expired events: %w", err)
	}

	if config.DryRun {
		log.Infof("Cleanup: [DRY-RUN] would delete %d of %d events created before %s",
			len(ids), result.TargetCount, result.Cutoff.Format("2006-01-02"))
		result.DeletedIDs = ids
		result.DeletedCount = len(ids)
		result.SkippedCount = result.TargetCount - len(ids)
		return result, nil
	}

	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.PlanEvent{})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to delete expired events: %w", res.Error)
	}

	result.DeletedIDs = ids
	result.DeletedCount = int(res.RowsAffected)
	result.SkippedCount = result.TargetCount - result.DeletedCount

	log.Infof("Cleanup: deleted %d/%d events created before %s",
		result.DeletedCount, result.TargetCount, result.Cutoff.Format("2006-01-02"))

	return result, nil
}
