// Package notifier renders plan change events into messages and delivers
// them through a webhook transport.
package notifier

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"hotel-plan-finder/internal/models"

	"github.com/tidwall/gjson"
)

// ChangeRecord is one change-stream entry: the event kind and the plan images
// as they were written. OldImage is empty for inserts.
type ChangeRecord struct {
	EventName models.EventName
	PlanID    string
	AcmID     string
	NewImage  []byte
	OldImage  []byte
}

// RecordFromEvent converts an outbox row to a change record
func RecordFromEvent(e *models.PlanEvent) ChangeRecord {
	return ChangeRecord{
		EventName: e.EventName,
		PlanID:    e.PlanID,
		AcmID:     e.AcmID,
		NewImage:  []byte(e.NewImage),
		OldImage:  []byte(e.OldImage),
	}
}

const absent = "-"

// planView is the template view of one plan image. Every field is already a
// string; a field missing from the image renders as "-".
type planView struct {
	PlanID           string
	AcmName          string
	PlanName         string
	SearchURL        string
	CheapestRoomName string
	CheapestMeal     string
	CheapestPrice    string
	PointRate        string
	StayTime         string
	Credit           string
}

func viewOf(image []byte) planView {
	str := func(path string) string {
		v := gjson.GetBytes(image, path)
		if !v.Exists() || v.Type == gjson.Null || v.String() == "" {
			return absent
		}
		return v.String()
	}
	num := func(path string) string {
		v := gjson.GetBytes(image, path)
		if !v.Exists() || v.Type == gjson.Null {
			return absent
		}
		return strconv.FormatInt(v.Int(), 10)
	}

	return planView{
		PlanID:           str("plan_id"),
		AcmName:          str("acm_name"),
		PlanName:         str("plan_name"),
		SearchURL:        str("search_url"),
		CheapestRoomName: str("cheapest_room_name"),
		CheapestMeal:     str("cheapest_meal"),
		CheapestPrice:    num("cheapest_price"),
		PointRate:        num("point_rate"),
		StayTime:         num("stay_time"),
		Credit:           num("credit"),
	}
}

type templateData struct {
	New        planView
	Old        planView
	Conditions string
}

var insertTemplate = template.Must(template.New("insert").Parse(`New Availability:

{{.New.AcmName}}
{{.New.PlanName}}
{{.New.SearchURL}}

room: {{.New.CheapestRoomName}} ({{.New.CheapestMeal}})
price: {{.New.CheapestPrice}}
point_rate: {{.New.PointRate}}
stay_time: {{.New.StayTime}}
credit: {{.New.Credit}}
{{- if .Conditions}}
conditions: {{.Conditions}}
{{- end}}
`))

var modifyTemplate = template.Must(template.New("modify").Parse(`Availability Updated:

{{.New.AcmName}}
{{.New.PlanName}}
{{.New.SearchURL}}

price: {{.Old.CheapestPrice}} -> {{.New.CheapestPrice}}
point_rate: {{.Old.PointRate}} -> {{.New.PointRate}}
stay_time: {{.Old.StayTime}} -> {{.New.StayTime}}
credit: {{.Old.Credit}} -> {{.New.Credit}}
{{- if .Conditions}}
conditions: {{.Conditions}}
{{- end}}
`))

// Router picks the template for a change record and renders it
type Router struct{}

// NewRouter creates a router
func NewRouter() *Router {
	return &Router{}
}

// Route renders the message for record. ok is false for event kinds that
// produce no notification. conditions may be nil.
func (r *Router) Route(record ChangeRecord, conditions *models.Conditions) (message string, ok bool, err error) {
	var tmpl *template.Template
	switch record.EventName {
	case models.EventInsert:
		tmpl = insertTemplate
	case models.EventModify:
		tmpl = modifyTemplate
	default:
		return "", false, nil
	}

	if len(record.NewImage) == 0 || !gjson.ValidBytes(record.NewImage) {
		return "", false, fmt.Errorf("plan %s: new image is missing or invalid", record.PlanID)
	}

	data := templateData{
		New: viewOf(record.NewImage),
		Old: viewOf(record.OldImage),
	}
	if conditions != nil && !conditions.IsEmpty() {
		data.Conditions = conditions.String()
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", false, fmt.Errorf("render %s for plan %s: %w", record.EventName, record.PlanID, err)
	}
	return strings.TrimRight(buf.String(), "\n"), true, nil
}
