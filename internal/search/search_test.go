package search

import (
	"testing"
	"time"

	"hotel-plan-finder/internal/models"
)

func intPtr(v int) *int { return &v }

func TestFilterParamsFilter(t *testing.T) {
	tests := []struct {
		name   string
		params FilterParams
		want   string
	}{
		{"empty", FilterParams{}, ""},
		{"property", FilterParams{AcmID: "00001234"}, `acm_id = "00001234"`},
		{
			"thresholds",
			FilterParams{PrefName: "東京都", MinPointRate: intPtr(10), MinCredit: intPtr(30000), MaxPrice: intPtr(60000)},
			`pref_name = "東京都" AND point_rate >= 10 AND credit >= 30000 AND cheapest_price <= 60000`,
		},
		{"quoted", FilterParams{Site: `a"b`}, `site = "a\"b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Filter(); got != tt.want {
				t.Errorf("Filter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterParamsSort(t *testing.T) {
	tests := []struct {
		sortBy string
		want   string
	}{
		{"", ""},
		{"cheapest_price", "cheapest_price:asc"},
		{"credit:desc", "credit:desc"},
		{"acm_name", ""},
		{"credit:sideways", ""},
	}

	for _, tt := range tests {
		got := FilterParams{SortBy: tt.sortBy}.Sort()
		if tt.want == "" {
			if got != nil {
				t.Errorf("Sort(%q) = %v, want nil", tt.sortBy, got)
			}
			continue
		}
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("Sort(%q) = %v, want %s", tt.sortBy, got, tt.want)
		}
	}
}

func TestDocumentFromRecord(t *testing.T) {
	checked := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	r := &models.PlanRecord{
		PlanID:        "A",
		AcmID:         "00001234",
		AcmName:       "ホテル",
		PointRate:     intPtr(10),
		Credit:        50000,
		CheapestPrice: 48000,
		LastCheckedAt: checked,
	}

	doc := DocumentFromRecord(r)
	if doc.PlanID != "A" || doc.AcmName != "ホテル" || *doc.PointRate != 10 || doc.Credit != 50000 {
		t.Errorf("document: %+v", doc)
	}
	if doc.LastCheckedAt != checked.Unix() {
		t.Errorf("last_checked_at: %d", doc.LastCheckedAt)
	}
}
