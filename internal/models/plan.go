package models

// Room is a normalized room line of a plan. Plan-scoped raw fields (point
// rates, checkin/checkout times) are not kept here.
type Room struct {
	RoomID          string `json:"room_id"`
	RoomName        string `json:"room_name"`
	RoomTypeName    string `json:"room_type_name"`
	MealName        string `json:"meal_name"`
	SquareMeterFrom int    `json:"square_meter_from"`
	SquareMeterTo   int    `json:"square_meter_to"`
	Amount          int    `json:"amount"`
}

// Plan is a bookable rate of a property with its derived signals and the
// denormalized cheapest room.
type Plan struct {
	PlanID    string `json:"plan_id"`
	PlanName  string `json:"plan_name"`
	CatchCopy string `json:"catch_copy"`

	// PointRate is nil when the cheapest room exposes no point rate
	PointRate *int `json:"point_rate,omitempty"`
	StayTime  int  `json:"stay_time"`
	Credit    int  `json:"credit"`

	Rooms []Room `json:"rooms"`

	CheapestRoomName string `json:"cheapest_room_name"`
	CheapestRoomType string `json:"cheapest_room_type"`
	CheapestArea     int    `json:"cheapest_area"`
	CheapestMeal     string `json:"cheapest_meal"`
	CheapestPrice    int    `json:"cheapest_price"`
}

// Meets reports whether the plan satisfies at least one configured threshold.
// Thresholds compare with >=; an absent plan point rate never satisfies a
// point rate threshold. Conditions with no threshold match nothing.
func (p *Plan) Meets(c Conditions) bool {
	if c.PointRate != nil && p.PointRate != nil && *p.PointRate >= *c.PointRate {
		return true
	}
	if c.StayTime != nil && p.StayTime >= *c.StayTime {
		return true
	}
	if c.Credit != nil && p.Credit >= *c.Credit {
		return true
	}
	return false
}
