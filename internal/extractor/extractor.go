// Package extractor turns one site's raw search-result JSON into normalized
// Property and Plan values. It performs no I/O.
package extractor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"hotel-plan-finder/internal/models"

	"github.com/tidwall/gjson"
)

// Extractor binds the extraction functions to one site
type Extractor struct {
	site Site
}

// New creates an extractor for site
func New(site Site) *Extractor {
	return &Extractor{site: site}
}

// Property extracts the property of one AcmList entry
func (e *Extractor) Property(raw gjson.Result) (models.Property, error) {
	return ExtractProperty(raw, e.site.BaseURL)
}

// Plan extracts one PlnList entry
func (e *Extractor) Plan(raw gjson.Result) (models.Plan, error) {
	return ExtractPlan(raw, e.site.PointRateField)
}

// ExtractProperty reads an AcmList entry. The canonical property URL is the
// site root followed by the property ID.
func ExtractProperty(raw gjson.Result, baseURL string) (models.Property, error) {
	acmID := raw.Get("AcmId").String()
	if acmID == "" {
		return models.Property{}, &MalformedPlanError{Field: "AcmId"}
	}

	return models.Property{
		AcmID:         acmID,
		AcmName:       raw.Get("AcmNm").String(),
		PrefName:      raw.Get("PrefNm").String(),
		AreaName:      raw.Get("AreaNm").String(),
		SmallAreaName: raw.Get("SmallAreaNm").String(),
		Score:         raw.Get("EvaluationScore").Float(),
		AcmURL:        fmt.Sprintf("%s/%s/", strings.TrimRight(baseURL, "/"), acmID),
	}, nil
}

// rawRoom keeps the plan-scoped room fields next to the normalized room until
// the plan level signals are derived from them.
type rawRoom struct {
	room           models.Room
	pointRate      *int
	pointRateLocal *int
	pointRateCard  *int
	checkinFrom    string
	checkout       string
}

// ExtractPlan reads a PlnList entry. pointRateField names the raw room field
// carrying the effective point rate on this site.
func ExtractPlan(raw gjson.Result, pointRateField string) (models.Plan, error) {
	planID := raw.Get("PlnId").String()
	if planID == "" {
		return models.Plan{}, &MalformedPlanError{Field: "PlnId"}
	}

	rawRooms := raw.Get("RmList").Array()
	if len(rawRooms) == 0 {
		return models.Plan{}, fmt.Errorf("plan %s: %w", planID, ErrEmptyRoomList)
	}

	rooms := make([]rawRoom, 0, len(rawRooms))
	for i, r := range rawRooms {
		room, err := parseRoom(planID, i, r, pointRateField)
		if err != nil {
			return models.Plan{}, err
		}
		rooms = append(rooms, room)
	}

	cheapest := cheapestRoom(rooms)

	stayTime, err := extractStayTime(planID, raw, cheapest)
	if err != nil {
		return models.Plan{}, err
	}

	catchCopy := normalizeText(raw.Get("CatchCopy").String())

	normalized := make([]models.Room, len(rooms))
	for i := range rooms {
		normalized[i] = rooms[i].room
	}

	return models.Plan{
		PlanID:           planID,
		PlanName:         raw.Get("PlnNm").String(),
		CatchCopy:        catchCopy,
		PointRate:        cheapest.pointRate,
		StayTime:         stayTime,
		Credit:           ParseCredit(catchCopy),
		Rooms:            normalized,
		CheapestRoomName: cheapest.room.RoomName,
		CheapestRoomType: cheapest.room.RoomTypeName,
		CheapestArea:     cheapest.room.SquareMeterFrom,
		CheapestMeal:     cheapest.room.MealName,
		CheapestPrice:    cheapest.room.Amount,
	}, nil
}

func parseRoom(planID string, index int, raw gjson.Result, pointRateField string) (rawRoom, error) {
	requireInt := func(field string) (int, error) {
		v := raw.Get(field)
		if !v.Exists() || v.Type == gjson.Null {
			return 0, &MalformedRoomError{PlanID: planID, Index: index, Field: field}
		}
		n, ok := coerceInt(v)
		if !ok {
			return 0, &MalformedRoomError{PlanID: planID, Index: index, Field: field, Value: v.Raw}
		}
		return n, nil
	}
	optionalInt := func(field string) (*int, error) {
		if field == "" {
			return nil, nil
		}
		v := raw.Get(field)
		if !v.Exists() || v.Type == gjson.Null {
			return nil, nil
		}
		n, ok := coerceInt(v)
		if !ok {
			return nil, &MalformedRoomError{PlanID: planID, Index: index, Field: field, Value: v.Raw}
		}
		return &n, nil
	}

	roomID := raw.Get("RmId").String()
	if roomID == "" {
		return rawRoom{}, &MalformedRoomError{PlanID: planID, Index: index, Field: "RmId"}
	}
	roomName := raw.Get("RmNm")
	if !roomName.Exists() {
		return rawRoom{}, &MalformedRoomError{PlanID: planID, Index: index, Field: "RmNm"}
	}

	amount, err := requireInt("Amount")
	if err != nil {
		return rawRoom{}, err
	}
	areaFrom, err := requireInt("SquareMeterFrom")
	if err != nil {
		return rawRoom{}, err
	}
	areaTo, err := requireInt("SquareMeterTo")
	if err != nil {
		return rawRoom{}, err
	}

	pointRate, err := optionalInt(pointRateField)
	if err != nil {
		return rawRoom{}, err
	}
	pointRateLocal, err := optionalInt("PointRateLocal")
	if err != nil {
		return rawRoom{}, err
	}
	pointRateCard, err := optionalInt("PointRateCard")
	if err != nil {
		return rawRoom{}, err
	}

	return rawRoom{
		room: models.Room{
			RoomID:          roomID,
			RoomName:        roomName.String(),
			RoomTypeName:    raw.Get("RmTypeNm").String(),
			MealName:        raw.Get("MealNm").String(),
			SquareMeterFrom: areaFrom,
			SquareMeterTo:   areaTo,
			Amount:          amount,
		},
		pointRate:      pointRate,
		pointRateLocal: pointRateLocal,
		pointRateCard:  pointRateCard,
		checkinFrom:    raw.Get("CheckinTmFrom").String(),
		checkout:       raw.Get("CheckoutTm").String(),
	}, nil
}

// cheapestRoom returns the first room with the minimum amount
func cheapestRoom(rooms []rawRoom) *rawRoom {
	cheapest := &rooms[0]
	for i := 1; i < len(rooms); i++ {
		if rooms[i].room.Amount < cheapest.room.Amount {
			cheapest = &rooms[i]
		}
	}
	return cheapest
}

// extractStayTime models an overnight stay: checkout hour + 24 - checkin hour.
// Plan level times win; the cheapest room's times are the fallback.
func extractStayTime(planID string, raw gjson.Result, cheapest *rawRoom) (int, error) {
	checkin := raw.Get("CheckinTmFrom").String()
	checkout := raw.Get("CheckoutTm").String()
	if checkin == "" || checkout == "" {
		checkin, checkout = cheapest.checkinFrom, cheapest.checkout
	}

	in, err := parseHour(checkin)
	if err != nil {
		return 0, &MalformedPlanError{PlanID: planID, Field: "CheckinTmFrom", Value: checkin}
	}
	out, err := parseHour(checkout)
	if err != nil {
		return 0, &MalformedPlanError{PlanID: planID, Field: "CheckoutTm", Value: checkout}
	}

	return StayTime(in, out), nil
}

// StayTime returns the hours between checkin and a next-day checkout
func StayTime(checkinHour, checkoutHour int) int {
	return checkoutHour + 24 - checkinHour
}

// parseHour reads the hour of "HH:MM" (or a bare "HH")
func parseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	h, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 24 {
		return 0, fmt.Errorf("hour out of range: %d", h)
	}
	return h, nil
}

// coerceInt accepts integral JSON numbers and numeric strings
func coerceInt(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
