package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hotel-plan-finder/internal/extractor"
	"hotel-plan-finder/internal/filter"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Scheduler.Spec != "*/30 * * * *" || cfg.Scraper.PropertyDelaySeconds != 5 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if len(cfg.Store.WatchFields) != 4 {
		t.Errorf("watch fields: %v", cfg.Store.WatchFields)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
database:
  type: postgres
  postgres:
    host: db
    port: 5432
sites:
  - name: sitea
    base_url: https://a.example.com
    endpoint: https://a.example.com/api/search
    authority: a.example.com
    point_rate_field: PointRateDx
scraper:
  property_delay_seconds: 7
notifier:
  type: slack
  slack_webhook: https://hooks.example.com/x
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Type != "postgres" || cfg.Database.Postgres.Port != 5432 {
		t.Errorf("database: %+v", cfg.Database)
	}
	if cfg.Scraper.GetPropertyDelay().Seconds() != 7 {
		t.Errorf("property delay: %v", cfg.Scraper.GetPropertyDelay())
	}
	if cfg.Scraper.TimeoutSeconds != 30 {
		t.Errorf("unset fields should keep defaults, timeout = %d", cfg.Scraper.TimeoutSeconds)
	}

	site, ok := cfg.Site("sitea")
	if !ok || site.PointRateField != "PointRateDx" {
		t.Errorf("site: %+v", site)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	site := extractor.Site{Name: "sitea", BaseURL: "https://a", Endpoint: "https://a/api"}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ok", func(c *Config) { c.Sites = []extractor.Site{site} }, false},
		{"no sites", func(c *Config) {}, true},
		{"duplicate site", func(c *Config) { c.Sites = []extractor.Site{site, site} }, true},
		{"slack without webhook", func(c *Config) {
			c.Sites = []extractor.Site{site}
			c.Notifier.Type = "slack"
		}, true},
		{"unknown notifier", func(c *Config) {
			c.Sites = []extractor.Site{site}
			c.Notifier.Type = "email"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DB_TYPE", "mysql")
	t.Setenv("DB_DSN", "user:pass@tcp(db:3306)/plans")
	t.Setenv("NOTIFIER", "LINE")
	t.Setenv("LINE_TOKEN", "secret")
	t.Setenv("MEILISEARCH_HOST", "http://meili:7700")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Database.Type != "mysql" || cfg.Database.DSN != "user:pass@tcp(db:3306)/plans" {
		t.Errorf("database: %+v", cfg.Database)
	}
	if cfg.Notifier.Type != "line" || cfg.Notifier.LineToken != "secret" {
		t.Errorf("notifier: %+v", cfg.Notifier)
	}
	if cfg.Search.Meilisearch.Host != "http://meili:7700" {
		t.Errorf("meilisearch host: %q", cfg.Search.Meilisearch.Host)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("HPF_TEST_TOKEN=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HPF_TEST_TOKEN", "")
	os.Unsetenv("HPF_TEST_TOKEN")

	if err := LoadEnvFile(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("HPF_TEST_TOKEN"); got != "from-file" {
		t.Errorf("HPF_TEST_TOKEN = %q", got)
	}
}

const hotelsYAML = `
globals:
  filters: [NO_SMOKING]
  conditions:
    point_rate: 10
    credit: 30000
hotels:
  - acm_id: "00001234"
    name: ホテル サンプル東京
    filters: [CLUB_FLOOR]
    conditions:
      credit: 50000
      stay_time: 24
  - acm_id: "00005678"
    sites: [siteb]
    enabled: false
  - acm_id: "00009999"
`

func TestParseHotelsMergesGlobals(t *testing.T) {
	list, err := ParseHotels([]byte(hotelsYAML))
	if err != nil {
		t.Fatalf("ParseHotels: %v", err)
	}
	if len(list.Hotels) != 3 {
		t.Fatalf("expected 3 hotels, got %d", len(list.Hotels))
	}

	first := list.Hotels[0]
	if len(first.Filters) != 2 || first.Filters[0] != "NO_SMOKING" || first.Filters[1] != "CLUB_FLOOR" {
		t.Errorf("filters: %v", first.Filters)
	}
	if *first.Conditions.PointRate != 10 || *first.Conditions.Credit != 50000 || *first.Conditions.StayTime != 24 {
		t.Errorf("conditions: %s", first.Conditions)
	}
	if !first.Enabled {
		t.Error("enabled should default to true")
	}

	second := list.Hotels[1]
	if second.Enabled || second.ScansSite("sitea") || !second.ScansSite("siteb") {
		t.Errorf("second hotel: %+v", second)
	}
	if second.Name != "00005678" {
		t.Errorf("name should fall back to the id, got %q", second.Name)
	}

	third := list.Hotels[2]
	if third.Conditions.StayTime != nil || *third.Conditions.Credit != 30000 {
		t.Errorf("third hotel should inherit global conditions: %s", third.Conditions)
	}

	if got := len(list.Enabled()); got != 2 {
		t.Errorf("enabled hotels: got %d", got)
	}
	if c := list.Conditions()["00001234"]; *c.Credit != 50000 {
		t.Errorf("conditions map: %s", c)
	}
}

func TestParseHotelsRejectsUnknownFilter(t *testing.T) {
	_, err := ParseHotels([]byte("hotels:\n  - acm_id: \"1\"\n    filters: [OCEAN_VIEW]\n"))
	var unknown *filter.UnknownFilterError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFilterError, got %v", err)
	}
	if unknown.Name != "OCEAN_VIEW" || !strings.Contains(err.Error(), "known filters: CLUB_FLOOR, NO_SMOKING") {
		t.Errorf("error should list the registered filters: %v", err)
	}
}

func TestParseHotelsRejectsDuplicates(t *testing.T) {
	_, err := ParseHotels([]byte("hotels:\n  - acm_id: \"1\"\n  - acm_id: \"1\"\n"))
	if err == nil {
		t.Fatal("expected an error for a duplicated acm_id")
	}
}
