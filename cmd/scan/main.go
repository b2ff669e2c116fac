// Command scan runs one pass over the configured hotels, delivers the
// resulting notifications and exits.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"hotel-plan-finder/internal/app"
	"hotel-plan-finder/internal/config"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", config.GetEnv("CONFIG_PATH", "config/config.yaml"), "path to config.yaml")
	noNotify := flag.Bool("no-notify", false, "store changes without delivering notifications")
	flag.Parse()

	cfg, hotels, err := app.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	a, err := app.New(cfg, hotels)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := run(ctx, a, *noNotify)
	a.Close()
	os.Exit(code)
}

func run(ctx context.Context, a *app.App, noNotify bool) int {
	stats, err := a.Scheduler.RunNow(ctx)
	if err != nil {
		log.WithError(err).Error("Scan pass aborted")
		return 1
	}
	log.Infof("Scan: %d properties (%d failed), %d inserted, %d updated, %d unchanged",
		stats.Properties, stats.Failed, stats.Inserted, stats.Updated, stats.Unchanged)

	if noNotify {
		return 0
	}

	// Failed deliveries stay queued for the next run.
	ds, err := a.Dispatcher.Drain(ctx)
	if err != nil {
		log.WithError(err).Error("Dispatch failed")
		return 1
	}
	log.Infof("Dispatch: %d delivered, %d failed, %d permanently failed", ds.Delivered, ds.Failed, ds.PermanentFail)
	return 0
}
