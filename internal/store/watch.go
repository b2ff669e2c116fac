package store

import (
	"fmt"

	"hotel-plan-finder/internal/models"
)

// WatchField is a plan column whose change makes a rescan worth an update
type WatchField struct {
	Name   string
	Column string
	value  func(r *models.PlanRecord) any
}

var watchRegistry = map[string]WatchField{
	"cheapest_price": {Name: "cheapest_price", Column: "cheapest_price", value: func(r *models.PlanRecord) any { return r.CheapestPrice }},
	"point_rate": {Name: "point_rate", Column: "point_rate", value: func(r *models.PlanRecord) any {
		if r.PointRate == nil {
			return nil
		}
		return *r.PointRate
	}},
	"stay_time":          {Name: "stay_time", Column: "stay_time", value: func(r *models.PlanRecord) any { return r.StayTime }},
	"credit":             {Name: "credit", Column: "credit", value: func(r *models.PlanRecord) any { return r.Credit }},
	"cheapest_area":      {Name: "cheapest_area", Column: "cheapest_area", value: func(r *models.PlanRecord) any { return r.CheapestArea }},
	"cheapest_room_name": {Name: "cheapest_room_name", Column: "cheapest_room_name", value: func(r *models.PlanRecord) any { return r.CheapestRoomName }},
	"plan_name":          {Name: "plan_name", Column: "plan_name", value: func(r *models.PlanRecord) any { return r.PlanName }},
	"catch_copy":         {Name: "catch_copy", Column: "catch_copy", value: func(r *models.PlanRecord) any { return r.CatchCopy }},
}

// DefaultWatchFields are the fields compared when none are configured
var DefaultWatchFields = []string{"cheapest_price", "point_rate", "stay_time", "credit"}

// LookupWatchFields resolves configured field names
func LookupWatchFields(names []string) ([]WatchField, error) {
	if len(names) == 0 {
		names = DefaultWatchFields
	}

	fields := make([]WatchField, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		f, ok := watchRegistry[name]
		if !ok {
			return nil, fmt.Errorf("unknown watch field: %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		fields = append(fields, f)
	}
	return fields, nil
}

// Value returns the field of r in a form usable both for comparison and as
// a SQL argument. An absent point rate is nil.
func (f WatchField) Value(r *models.PlanRecord) any {
	return f.value(r)
}

// changedFields returns the names of watched fields that differ
func changedFields(fields []WatchField, old, next *models.PlanRecord) []string {
	var changed []string
	for _, f := range fields {
		if f.Value(old) != f.Value(next) {
			changed = append(changed, f.Name)
		}
	}
	return changed
}
