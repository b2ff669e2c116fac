// Package app wires the configured components together for the binaries.
package app

import (
	"fmt"
	"time"

	"hotel-plan-finder/internal/cleanup"
	"hotel-plan-finder/internal/config"
	"hotel-plan-finder/internal/database"
	"hotel-plan-finder/internal/logging"
	"hotel-plan-finder/internal/notifier"
	"hotel-plan-finder/internal/scheduler"
	"hotel-plan-finder/internal/scraper"
	"hotel-plan-finder/internal/search"
	"hotel-plan-finder/internal/store"

	log "github.com/sirupsen/logrus"
)

// App holds the long-lived components of one process
type App struct {
	Config     *config.Config
	Hotels     *config.HotelList
	DB         *database.GormDB
	Store      *store.Store
	Client     *scraper.SearchClient
	Search     *search.SearchClient // nil when Meilisearch is not configured
	Runner     *scheduler.Runner
	Dispatcher *notifier.Dispatcher
	Cleanup    *cleanup.Service
	Scheduler  *scheduler.Scheduler
}

// LoadConfig reads .env, the YAML config and the hotel list, then applies
// environment overrides and sets up logging.
func LoadConfig(configPath string) (*config.Config, *config.HotelList, error) {
	if err := config.LoadEnvFile(); err != nil {
		return nil, nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyEnv()
	logging.Init(cfg.Logging, cfg.Environment)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	hotels, err := config.LoadHotels(cfg.HotelsPath)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("Loaded %d hotels (%d enabled) from %s", len(hotels.Hotels), len(hotels.Enabled()), cfg.HotelsPath)

	return cfg, hotels, nil
}

// ClientConfig maps the scraper and rate limit sections onto the search client
func ClientConfig(cfg *config.Config) scraper.ClientConfig {
	cc := scraper.DefaultClientConfig()
	if cfg.Scraper.TimeoutSeconds > 0 {
		cc.Timeout = cfg.Scraper.GetTimeout()
	}
	if cfg.Scraper.UserAgent != "" {
		cc.UserAgent = cfg.Scraper.UserAgent
	}
	if cfg.Scraper.MaxInFlight > 0 {
		cc.MaxInFlight = cfg.Scraper.MaxInFlight
	}
	cc.BaseDelay = cfg.Scraper.GetRequestDelay()
	cc.Jitter = cfg.Scraper.GetJitter()

	cc.LimitEnabled = cfg.RateLimit.Enabled
	cc.RequestsPerMinute = cfg.RateLimit.RequestsPerMinute
	cc.RequestsPerHour = cfg.RateLimit.RequestsPerHour
	cc.RequestsPerDay = cfg.RateLimit.RequestsPerDay

	cb := cfg.Scraper.CircuitBreaker
	if cb.ConsecutiveFailures > 0 {
		cc.Breaker.ConsecutiveFailures = cb.ConsecutiveFailures
	}
	if cb.MinRequests > 0 {
		cc.Breaker.MinRequests = cb.MinRequests
	}
	if cb.FailureRate > 0 {
		cc.Breaker.FailureRate = cb.FailureRate
	}
	if cb.ResetMinutes > 0 {
		cc.Breaker.ResetTimeout = cb.GetResetTimeout()
	}
	return cc
}

// CleanupConfig maps the cleanup section
func CleanupConfig(cfg *config.Config) cleanup.CleanupConfig {
	cc := cleanup.DefaultCleanupConfig()
	if cfg.Cleanup.RetentionDays > 0 {
		cc.RetentionDays = cfg.Cleanup.RetentionDays
	}
	if cfg.Cleanup.MaxDeletionCount > 0 {
		cc.MaxDeletionCount = cfg.Cleanup.MaxDeletionCount
	}
	cc.DryRun = cfg.Cleanup.DryRun
	return cc
}

// New opens the database and builds every component
func New(cfg *config.Config, hotels *config.HotelList) (*App, error) {
	gormDB, err := database.NewGormDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Database.Type, err)
	}
	if err := gormDB.InitSchema(); err != nil {
		gormDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	log.Infof("Database ready (%s)", database.DialectName(gormDB.DB()))

	a := &App{Config: cfg, Hotels: hotels, DB: gormDB}

	a.Store, err = store.New(gormDB.DB(), cfg.Store.WatchFields)
	if err != nil {
		gormDB.Close()
		return nil, err
	}

	var indexer scheduler.PlanIndexer
	if host := cfg.Search.Meilisearch.Host; host != "" {
		a.Search = search.NewSearchClient(host, cfg.Search.Meilisearch.APIKey, cfg.Search.Meilisearch.Index)
		if err := a.Search.InitIndex(); err != nil {
			log.WithError(err).Warn("Failed to initialize search index")
		}
		indexer = a.Search
	} else {
		log.Info("Meilisearch not configured, search index disabled")
	}

	a.Client = scraper.NewSearchClient(ClientConfig(cfg))
	a.Runner = scheduler.NewRunner(
		scraper.NewScanner(a.Client),
		a.Store,
		indexer,
		cfg.Sites,
		hotels.Enabled(),
		cfg.Scraper.GetPropertyDelay(),
	)

	transport, err := notifier.NewTransport(cfg.Notifier)
	if err != nil {
		gormDB.Close()
		return nil, err
	}
	a.Dispatcher = notifier.NewDispatcher(gormDB.DB(), notifier.NewRouter(), transport, hotels.Conditions(), notifier.DispatcherConfig{
		PollInterval: cfg.Notifier.GetPollInterval(),
		BatchSize:    cfg.Notifier.BatchSize,
		MaxAttempts:  cfg.Notifier.MaxAttempts,
	})
	log.Infof("Notifier: %s transport", transport.Name())

	a.Cleanup = cleanup.NewService(gormDB.DB())

	var pruner scheduler.Pruner
	cleanupSpec := ""
	if cfg.Cleanup.Enabled {
		pruner = a.Cleanup
		cleanupSpec = cfg.Scheduler.CleanupSpec
	}
	a.Scheduler = scheduler.NewScheduler(a.Runner, pruner, scheduler.Config{
		Spec:        cfg.Scheduler.Spec,
		CleanupSpec: cleanupSpec,
		Cleanup:     CleanupConfig(cfg),
		PassTimeout: 6 * time.Hour,
	})

	return a, nil
}

// ReloadHotels rereads the hotel list and hands it to the runner and the
// dispatcher. It returns the number of enabled hotels.
func (a *App) ReloadHotels() (int, error) {
	hotels, err := config.LoadHotels(a.Config.HotelsPath)
	if err != nil {
		return 0, err
	}
	enabled := hotels.Enabled()
	a.Runner.SetHotels(enabled)
	a.Dispatcher.SetConditions(hotels.Conditions())
	a.Hotels = hotels
	log.Infof("Reloaded %d hotels (%d enabled) from %s", len(hotels.Hotels), len(enabled), a.Config.HotelsPath)
	return len(enabled), nil
}

// Close stops background work and closes the database
func (a *App) Close() {
	a.Scheduler.Stop()
	a.Dispatcher.Stop()
	if err := a.DB.Close(); err != nil {
		log.WithError(err).Warn("Failed to close database")
	}
}
