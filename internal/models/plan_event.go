package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// EventName is the kind of a persisted plan change
type EventName string

const (
	EventInsert EventName = "INSERT"
	EventModify EventName = "MODIFY"
)

// PlanEvent is one change-stream record written alongside the plan write that
// produced it. The notification dispatcher consumes these rows in ID order.
type PlanEvent struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID    string         `gorm:"type:varchar(64);not null;index:idx_plan_events_plan" json:"plan_id"`
	AcmID     string         `gorm:"type:varchar(64);not null;index" json:"acm_id"`
	EventName EventName      `gorm:"type:varchar(10);not null" json:"event_name"`
	NewImage  datatypes.JSON `gorm:"not null" json:"new_image"`
	OldImage  datatypes.JSON `json:"old_image,omitempty"`

	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_plan_events_status" json:"status"` // pending, failed, done, permanent_fail
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// TableName specifies the table name for GORM
func (PlanEvent) TableName() string {
	return "plan_events"
}

// Status constants
const (
	EventStatusPending       = "pending"
	EventStatusFailed        = "failed"
	EventStatusDone          = "done"
	EventStatusPermanentFail = "permanent_fail" // render errors or retries exhausted
)

// MaxDeliveryAttempts before marking an event as permanently failed
const MaxDeliveryAttempts = 5

// GetNextRetryDelay calculates the backoff before the next delivery attempt
func GetNextRetryDelay(attempts int) time.Duration {
	// 1min, 5min, 15min, 1h, 4h
	delays := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		4 * time.Hour,
	}

	if attempts < 0 {
		attempts = 0
	}
	if attempts >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempts]
}

// NewPlanEvent builds a pending event. old may be nil for inserts.
func NewPlanEvent(name EventName, newRecord, oldRecord *PlanRecord, now time.Time) (*PlanEvent, error) {
	if newRecord == nil {
		return nil, fmt.Errorf("plan event %s: nil new image", name)
	}

	newImage, err := json.Marshal(newRecord)
	if err != nil {
		return nil, fmt.Errorf("plan event %s: encode new image: %w", name, err)
	}

	event := &PlanEvent{
		PlanID:    newRecord.PlanID,
		AcmID:     newRecord.AcmID,
		EventName: name,
		NewImage:  datatypes.JSON(newImage),
		Status:    EventStatusPending,
		CreatedAt: now,
	}

	if oldRecord != nil {
		oldImage, err := json.Marshal(oldRecord)
		if err != nil {
			return nil, fmt.Errorf("plan event %s: encode old image: %w", name, err)
		}
		event.OldImage = datatypes.JSON(oldImage)
	}

	return event, nil
}
