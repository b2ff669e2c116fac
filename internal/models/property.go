package models

// Property is one accommodation ("acm") as seen by a single search response.
// It is never stored on its own; its fields are denormalized onto PlanRecord.
type Property struct {
	AcmID         string  `json:"acm_id"`
	AcmName       string  `json:"acm_name"`
	PrefName      string  `json:"pref_name"`
	AreaName      string  `json:"area_name"`
	SmallAreaName string  `json:"small_area_name"`
	Score         float64 `json:"score"`
	AcmURL        string  `json:"acm_url"`
}

// Metadata carries request-derived values of a scan
type Metadata struct {
	SearchURL string `json:"search_url"`
}
