package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlanRecord is the persisted form of a plan: the plan itself, the
// denormalized property fields and the scan bookkeeping.
type PlanRecord struct {
	PlanID string `gorm:"type:varchar(64);primaryKey" json:"plan_id"`
	Site   string `gorm:"type:varchar(32);not null;index" json:"site"`

	// 施設情報
	AcmID         string  `gorm:"type:varchar(64);not null;index" json:"acm_id"`
	AcmName       string  `gorm:"type:varchar(255);not null" json:"acm_name"`
	PrefName      string  `gorm:"type:varchar(100)" json:"pref_name"`
	AreaName      string  `gorm:"type:varchar(100)" json:"area_name"`
	SmallAreaName string  `gorm:"type:varchar(100)" json:"small_area_name"`
	Score         float64 `gorm:"not null;default:0" json:"score"`
	AcmURL        string  `gorm:"type:text" json:"acm_url"`

	// プラン情報
	PlanName         string                    `gorm:"type:text;not null" json:"plan_name"`
	CatchCopy        string                    `gorm:"type:text" json:"catch_copy"`
	PointRate        *int                      `gorm:"type:int" json:"point_rate,omitempty"`
	StayTime         int                       `gorm:"type:int;not null;default:0" json:"stay_time"`
	Credit           int                       `gorm:"type:int;not null;default:0" json:"credit"`
	Rooms            datatypes.JSONSlice[Room] `gorm:"not null" json:"rooms"`
	CheapestRoomName string                    `gorm:"type:text" json:"cheapest_room_name"`
	CheapestRoomType string                    `gorm:"type:varchar(255)" json:"cheapest_room_type"`
	CheapestArea     int                       `gorm:"type:int;not null;default:0" json:"cheapest_area"`
	CheapestMeal     string                    `gorm:"type:varchar(255)" json:"cheapest_meal"`
	CheapestPrice    int                       `gorm:"type:int;not null;index" json:"cheapest_price"`

	SearchURL string `gorm:"type:text" json:"search_url"`

	// タイムスタンプ
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
	LastCheckedAt time.Time `gorm:"not null" json:"last_checked_at"`
}

// TableName はテーブル名を明示的に指定
func (PlanRecord) TableName() string {
	return "plans"
}

// NewPlanRecord builds the record of a freshly scanned plan. Both timestamps
// are set to now; callers updating an existing row carry CreatedAt over.
func NewPlanRecord(site string, acm Property, plan Plan, searchURL string, now time.Time) *PlanRecord {
	rooms := make([]Room, len(plan.Rooms))
	copy(rooms, plan.Rooms)

	return &PlanRecord{
		PlanID:           plan.PlanID,
		Site:             site,
		AcmID:            acm.AcmID,
		AcmName:          acm.AcmName,
		PrefName:         acm.PrefName,
		AreaName:         acm.AreaName,
		SmallAreaName:    acm.SmallAreaName,
		Score:            acm.Score,
		AcmURL:           acm.AcmURL,
		PlanName:         plan.PlanName,
		CatchCopy:        plan.CatchCopy,
		PointRate:        plan.PointRate,
		StayTime:         plan.StayTime,
		Credit:           plan.Credit,
		Rooms:            datatypes.JSONSlice[Room](rooms),
		CheapestRoomName: plan.CheapestRoomName,
		CheapestRoomType: plan.CheapestRoomType,
		CheapestArea:     plan.CheapestArea,
		CheapestMeal:     plan.CheapestMeal,
		CheapestPrice:    plan.CheapestPrice,
		SearchURL:        searchURL,
		CreatedAt:        now,
		LastCheckedAt:    now,
	}
}

// Plan returns the plan part of the record
func (r *PlanRecord) Plan() Plan {
	return Plan{
		PlanID:           r.PlanID,
		PlanName:         r.PlanName,
		CatchCopy:        r.CatchCopy,
		PointRate:        r.PointRate,
		StayTime:         r.StayTime,
		Credit:           r.Credit,
		Rooms:            []Room(r.Rooms),
		CheapestRoomName: r.CheapestRoomName,
		CheapestRoomType: r.CheapestRoomType,
		CheapestArea:     r.CheapestArea,
		CheapestMeal:     r.CheapestMeal,
		CheapestPrice:    r.CheapestPrice,
	}
}
