package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hotel-plan-finder/internal/config"
	"hotel-plan-finder/internal/extractor"
	"hotel-plan-finder/internal/models"
	"hotel-plan-finder/internal/scraper"
	"hotel-plan-finder/internal/store"
)

type fakeScanner struct {
	mu       sync.Mutex
	requests []scraper.ScanRequest
	failFor  map[string]bool
	plans    map[string][]models.Plan
}

func (f *fakeScanner) Scan(ctx context.Context, req scraper.ScanRequest) (*scraper.ScanResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.failFor[req.AcmID] {
		return nil, &scraper.UpstreamError{Site: req.Site.Name, StatusCode: 500, Reason: "boom"}
	}
	return &scraper.ScanResult{
		Property: models.Property{AcmID: req.AcmID, AcmName: "Hotel " + req.AcmID},
		Plans:    f.plans[req.AcmID],
		Metadata: models.Metadata{SearchURL: "https://example.test/" + req.AcmID + "/"},
		Skipped:  1,
	}, nil
}

type fakeStore struct {
	kinds map[string]store.Kind
	err   map[string]error
}

func (f *fakeStore) Upsert(ctx context.Context, site string, acm models.Property, plan models.Plan, searchURL string, now time.Time) (store.ChangeEvent, error) {
	if err := f.err[plan.PlanID]; err != nil {
		return store.ChangeEvent{}, err
	}
	kind := f.kinds[plan.PlanID]
	ev := store.ChangeEvent{Kind: kind}
	if kind != store.Unchanged {
		ev.New = models.NewPlanRecord(site, acm, plan, searchURL, now)
	}
	return ev, nil
}

type fakeIndexer struct {
	indexed []string
}

func (f *fakeIndexer) IndexPlans(records []*models.PlanRecord) error {
	for _, r := range records {
		f.indexed = append(f.indexed, r.PlanID)
	}
	return nil
}

func plan(id string) models.Plan {
	return models.Plan{PlanID: id, PlanName: "plan " + id, Rooms: []models.Room{{RoomID: "R1", RoomName: "Twin", Amount: 10000}}}
}

var (
	siteA = extractor.Site{Name: "a", BaseURL: "https://a.example.test"}
	siteB = extractor.Site{Name: "b", BaseURL: "https://b.example.test"}
)

func TestRunOnce(t *testing.T) {
	scanner := &fakeScanner{
		failFor: map[string]bool{"BAD": true},
		plans: map[string][]models.Plan{
			"H1": {plan("P1"), plan("P2"), plan("P3")},
			"H2": {plan("P4")},
		},
	}
	st := &fakeStore{
		kinds: map[string]store.Kind{"P1": store.Inserted, "P2": store.Updated, "P4": store.Inserted},
		err:   map[string]error{"P3": errors.New("db down")},
	}
	indexer := &fakeIndexer{}

	hotels := []config.Hotel{
		{AcmID: "H1", Enabled: true, Sites: []string{"a"}},
		{AcmID: "BAD", Enabled: true},
		{AcmID: "OFF", Enabled: false},
		{AcmID: "H2", Enabled: true, Sites: []string{"b"}},
	}

	r := NewRunner(scanner, st, indexer, []extractor.Site{siteA, siteB}, hotels, 0)
	stats, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	// H1@a, BAD@a, BAD@b, H2@b
	if stats.Properties != 4 || stats.Failed != 2 {
		t.Errorf("properties=%d failed=%d", stats.Properties, stats.Failed)
	}
	if stats.Inserted != 2 || stats.Updated != 1 || stats.Unchanged != 0 || stats.StoreErrs != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.Plans != 4 || stats.Skipped != 2 {
		t.Errorf("plans=%d skipped=%d", stats.Plans, stats.Skipped)
	}
	if stats.RunID == "" {
		t.Error("missing run id")
	}

	for _, req := range scanner.requests {
		if req.AcmID == "OFF" {
			t.Error("disabled hotel was scanned")
		}
		if req.AcmID == "H1" && req.Site.Name != "a" {
			t.Errorf("H1 scanned on %s", req.Site.Name)
		}
	}

	want := []string{"P1", "P2", "P4"}
	if len(indexer.indexed) != len(want) {
		t.Fatalf("indexed %v, want %v", indexer.indexed, want)
	}
	for i := range want {
		if indexer.indexed[i] != want[i] {
			t.Errorf("indexed %v, want %v", indexer.indexed, want)
		}
	}
}

func TestSetHotels(t *testing.T) {
	scanner := &fakeScanner{}
	r := NewRunner(scanner, &fakeStore{}, nil, []extractor.Site{siteA}, []config.Hotel{{AcmID: "H1", Enabled: true}}, 0)
	r.SetHotels([]config.Hotel{{AcmID: "H2", Enabled: true}, {AcmID: "H3", Enabled: true}})

	stats, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Properties != 2 {
		t.Errorf("properties=%d", stats.Properties)
	}
	for _, req := range scanner.requests {
		if req.AcmID == "H1" {
			t.Error("replaced hotel was scanned")
		}
	}
}

func TestRunOnceCancelledDuringDelay(t *testing.T) {
	scanner := &fakeScanner{}
	hotels := []config.Hotel{
		{AcmID: "H1", Enabled: true},
		{AcmID: "H2", Enabled: true},
	}
	r := NewRunner(scanner, &fakeStore{}, nil, []extractor.Site{siteA}, hotels, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	stats, err := r.RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats.Properties != 1 {
		t.Errorf("expected one property scanned before cancel, got %d", stats.Properties)
	}
}
