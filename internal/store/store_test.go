package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"hotel-plan-finder/internal/database"
	"hotel-plan-finder/internal/extractor"
	"hotel-plan-finder/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func eventImages(t *testing.T, e models.PlanEvent) (newRecord, oldRecord *models.PlanRecord) {
	t.Helper()
	newRecord = &models.PlanRecord{}
	if err := json.Unmarshal(e.NewImage, newRecord); err != nil {
		t.Fatalf("decode new image of event %d: %v", e.ID, err)
	}
	if len(e.OldImage) > 0 && string(e.OldImage) != "null" {
		oldRecord = &models.PlanRecord{}
		if err := json.Unmarshal(e.OldImage, oldRecord); err != nil {
			t.Fatalf("decode old image of event %d: %v", e.ID, err)
		}
	}
	return newRecord, oldRecord
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(openTestDB(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func intPtr(v int) *int { return &v }

var testProperty = models.Property{
	AcmID:         "00001234",
	AcmName:       "ホテル サンプル東京",
	PrefName:      "東京都",
	AreaName:      "東京23区内",
	SmallAreaName: "銀座",
	Score:         4.5,
	AcmURL:        "https://hotel.example.com/00001234/",
}

func testPlan(id string) models.Plan {
	return models.Plan{
		PlanID:    id,
		PlanName:  "クレジット付きプラン",
		CatchCopy: "5万円分のクレジット",
		PointRate: intPtr(10),
		StayTime:  24,
		Credit:    50000,
		Rooms: []models.Room{
			{RoomID: "R1", RoomName: "ツイン", RoomTypeName: "ツイン", MealName: "朝食付", SquareMeterFrom: 30, SquareMeterTo: 32, Amount: 48000},
		},
		CheapestRoomName: "ツイン",
		CheapestRoomType: "ツイン",
		CheapestArea:     30,
		CheapestMeal:     "朝食付",
		CheapestPrice:    48000,
	}
}

const searchURL = "https://hotel.example.com/00001234/?adc=1"

func countEvents(t *testing.T, s *Store) int64 {
	t.Helper()
	var n int64
	if err := s.DB().Model(&models.PlanEvent{}).Count(&n).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return n
}

func TestUpsertInsertsNewPlan(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	ev, err := s.Upsert(context.Background(), "sitea", testProperty, testPlan("A"), searchURL, now)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ev.Kind != Inserted || ev.New == nil || ev.Old != nil {
		t.Fatalf("expected Inserted, got %+v", ev)
	}

	got, err := s.Get(context.Background(), "A")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AcmName != testProperty.AcmName || got.SearchURL != searchURL || got.Site != "sitea" {
		t.Errorf("stored record: %+v", got)
	}
	if !got.CreatedAt.Equal(now) || !got.LastCheckedAt.Equal(now) {
		t.Errorf("timestamps: created %v, checked %v", got.CreatedAt, got.LastCheckedAt)
	}
	if len(got.Rooms) != 1 || got.Rooms[0].Amount != 48000 {
		t.Errorf("rooms: %+v", got.Rooms)
	}

	events, err := s.Events(context.Background(), "A")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].EventName != models.EventInsert || events[0].Status != models.EventStatusPending {
		t.Fatalf("outbox: %+v", events)
	}
	newImage, oldImage := eventImages(t, events[0])
	if oldImage != nil || newImage.PlanID != "A" {
		t.Errorf("insert images: new=%+v old=%+v", newImage, oldImage)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	if _, err := s.Upsert(ctx, "sitea", testProperty, testPlan("A"), searchURL, first); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	ev, err := s.Upsert(ctx, "sitea", testProperty, testPlan("A"), searchURL, first.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if ev.Kind != Unchanged {
		t.Fatalf("second identical upsert should be Unchanged, got %s", ev.Kind)
	}

	got, _ := s.Get(ctx, "A")
	if !got.LastCheckedAt.Equal(first) {
		t.Errorf("unchanged upsert must not write, last_checked_at = %v", got.LastCheckedAt)
	}
	if n := countEvents(t, s); n != 1 {
		t.Errorf("expected exactly one write event, got %d", n)
	}
}

func TestUpsertUpdatesOnCreditChange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	if _, err := s.Upsert(ctx, "sitea", testProperty, testPlan("A"), searchURL, first); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	changed := testPlan("A")
	changed.Credit = 30000
	ev, err := s.Upsert(ctx, "sitea", testProperty, changed, searchURL, second)
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if ev.Kind != Updated {
		t.Fatalf("expected Updated, got %s", ev.Kind)
	}
	if ev.Old.Credit == ev.New.Credit {
		t.Errorf("old and new credit should differ: %d", ev.Old.Credit)
	}
	if len(ev.Changed) != 1 || ev.Changed[0] != "credit" {
		t.Errorf("changed fields: %v", ev.Changed)
	}

	got, _ := s.Get(ctx, "A")
	if got.Credit != 30000 {
		t.Errorf("stored credit: %d", got.Credit)
	}
	if !got.CreatedAt.Equal(first) {
		t.Errorf("created_at must be preserved, got %v", got.CreatedAt)
	}
	if !got.LastCheckedAt.Equal(second) {
		t.Errorf("last_checked_at: got %v", got.LastCheckedAt)
	}
	if got.PlanName != ev.Old.PlanName || got.CheapestPrice != ev.Old.CheapestPrice || got.AcmName != ev.Old.AcmName {
		t.Errorf("other fields should carry over: %+v", got)
	}

	events, _ := s.Events(ctx, "A")
	if len(events) != 2 || events[1].EventName != models.EventModify {
		t.Fatalf("outbox: %+v", events)
	}
	newImage, oldImage := eventImages(t, events[1])
	if oldImage == nil || oldImage.Credit != 50000 || newImage.Credit != 30000 {
		t.Errorf("modify images: old=%+v new=%+v", oldImage, newImage)
	}
}

func TestUpsertPointRateBecomesAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	if _, err := s.Upsert(ctx, "sitea", testProperty, testPlan("A"), searchURL, now); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	noRate := testPlan("A")
	noRate.PointRate = nil
	ev, err := s.Upsert(ctx, "sitea", testProperty, noRate, searchURL, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if ev.Kind != Updated {
		t.Fatalf("a point rate turning absent should update, got %s", ev.Kind)
	}

	got, _ := s.Get(ctx, "A")
	if got.PointRate != nil {
		t.Errorf("point_rate should be NULL, got %d", *got.PointRate)
	}

	ev, err = s.Upsert(ctx, "sitea", testProperty, noRate, searchURL, now.Add(2*time.Hour))
	if err != nil || ev.Kind != Unchanged {
		t.Fatalf("absent to absent should be Unchanged, got %s (%v)", ev.Kind, err)
	}
}

func TestUpsertNewAndUnchangedScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	if _, err := s.Upsert(ctx, "sitea", testProperty, testPlan("B"), searchURL, now); err != nil {
		t.Fatalf("seed B: %v", err)
	}
	before := countEvents(t, s)

	var inserted []string
	for _, p := range []models.Plan{testPlan("A"), testPlan("B")} {
		ev, err := s.Upsert(ctx, "sitea", testProperty, p, searchURL, now.Add(time.Hour))
		if err != nil {
			t.Fatalf("Upsert %s: %v", p.PlanID, err)
		}
		switch ev.Kind {
		case Inserted:
			inserted = append(inserted, ev.New.PlanID)
		case Updated:
			t.Errorf("unexpected update of %s", p.PlanID)
		}
	}

	if len(inserted) != 1 || inserted[0] != "A" {
		t.Errorf("expected exactly Inserted(A), got %v", inserted)
	}
	if after := countEvents(t, s); after-before != 1 {
		t.Errorf("expected one new outbox row, got %d", after-before)
	}
}

func TestConditionalUpdatePreconditionFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	if _, err := s.Upsert(ctx, "sitea", testProperty, testPlan("A"), searchURL, now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	stale, _ := s.Get(ctx, "A")

	// another writer already applied the same change
	changed := testPlan("A")
	changed.CheapestPrice = 39000
	if ev, err := s.Upsert(ctx, "sitea", testProperty, changed, searchURL, now.Add(time.Minute)); err != nil || ev.Kind != Updated {
		t.Fatalf("first writer: %v %v", ev.Kind, err)
	}

	record := models.NewPlanRecord("sitea", testProperty, changed, searchURL, now.Add(2*time.Minute))
	err := s.conditionalUpdate(ctx, record, stale)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
	if n := countEvents(t, s); n != 2 {
		t.Errorf("a lost race must not add an outbox row, got %d events", n)
	}
}

func TestUpsertLosesRaceAsUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	if _, err := s.Upsert(ctx, "sitea", testProperty, testPlan("A"), searchURL, now); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// another writer lands the same price between the read and the update
	fired := false
	err := s.DB().Callback().Update().Before("gorm:update").Register("test:concurrent_writer", func(db *gorm.DB) {
		if fired || db.Statement.Table != "plans" {
			return
		}
		fired = true
		db.Session(&gorm.Session{NewDB: true}).Exec("UPDATE plans SET cheapest_price = ? WHERE plan_id = ?", 39000, "A")
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	changed := testPlan("A")
	changed.CheapestPrice = 39000
	ev, err := s.Upsert(ctx, "sitea", testProperty, changed, searchURL, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !fired {
		t.Fatal("concurrent writer did not run")
	}
	if ev.Kind != Unchanged {
		t.Errorf("expected Unchanged, got %s", ev.Kind)
	}

	events, _ := s.Events(ctx, "A")
	for _, e := range events {
		if e.EventName == models.EventModify {
			t.Errorf("a lost race must not record a modify event: %+v", e)
		}
	}
	got, _ := s.Get(ctx, "A")
	if got.CheapestPrice != 39000 || !got.LastCheckedAt.Equal(now) {
		t.Errorf("row should hold the other writer's state: price=%d checked=%v", got.CheapestPrice, got.LastCheckedAt)
	}
}

func TestUpsertRejectsEmptyRooms(t *testing.T) {
	s := newTestStore(t)
	p := testPlan("A")
	p.Rooms = nil

	_, err := s.Upsert(context.Background(), "sitea", testProperty, p, searchURL, time.Now())
	if !errors.Is(err, extractor.ErrEmptyRoomList) {
		t.Fatalf("expected ErrEmptyRoomList, got %v", err)
	}
}

func TestWatchFieldsConfigurable(t *testing.T) {
	s, err := New(openTestDB(t), []string{"plan_name"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	if _, err := s.Upsert(ctx, "sitea", testProperty, testPlan("A"), searchURL, now); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cheaper := testPlan("A")
	cheaper.CheapestPrice = 1000
	if ev, _ := s.Upsert(ctx, "sitea", testProperty, cheaper, searchURL, now); ev.Kind != Unchanged {
		t.Errorf("price is not watched, got %s", ev.Kind)
	}

	renamed := testPlan("A")
	renamed.PlanName = "新プラン"
	if ev, _ := s.Upsert(ctx, "sitea", testProperty, renamed, searchURL, now); ev.Kind != Updated {
		t.Errorf("plan_name is watched, got %s", ev.Kind)
	}

	if _, err := New(openTestDB(t), []string{"nope"}); err == nil {
		t.Error("expected an error for an unknown watch field")
	}
}

func TestGetListAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	other := testProperty
	other.AcmID = "00005678"
	for i, p := range []models.Plan{testPlan("A"), testPlan("B")} {
		if _, err := s.Upsert(ctx, "sitea", testProperty, p, searchURL, now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Upsert(ctx, "siteb", other, testPlan("C"), searchURL, now); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	records, total, err := s.List(ctx, ListOptions{AcmID: "00001234"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(records) != 2 || records[0].PlanID != "B" {
		t.Errorf("list: total=%d records=%v", total, records)
	}

	_, total, _ = s.List(ctx, ListOptions{Site: "siteb"})
	if total != 1 {
		t.Errorf("site filter: total=%d", total)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Plans != 3 || stats.Properties != 2 || stats.Events[models.EventStatusPending] != 3 {
		t.Errorf("stats: %+v", stats)
	}
}
