package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hotel-plan-finder/internal/app"
	"hotel-plan-finder/internal/config"
	"hotel-plan-finder/internal/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := config.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, hotels, err := app.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Infof("Loaded configuration from %s (%s)", configPath, cfg.Environment)

	a, err := app.New(cfg, hotels)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	a.Dispatcher.Start()

	if cfg.Scheduler.Enabled {
		if err := a.Scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		if cfg.Scheduler.RunOnStart {
			if err := a.Scheduler.Trigger(); err != nil {
				log.WithError(err).Warn("Failed to start initial pass")
			}
		}
	} else {
		log.Println("Scheduler: disabled in configuration")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	var searcher handlers.PlanSearcher
	if a.Search != nil {
		searcher = a.Search
	}
	plans := handlers.NewPlanHandler(a.Store, searcher)
	admin := handlers.NewAdminHandler(a.Store, a.Scheduler, a.Cleanup, app.CleanupConfig(cfg), a.Client)
	admin.SetDeliveryStats(a.Dispatcher)
	admin.SetReloader(a)
	if a.Search != nil {
		admin.SetIndexer(a.Search)
	}
	handlers.RegisterRoutes(r, plans, admin)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Server starting on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server shutdown failed")
	}
	if a.Scheduler.IsRunning() {
		log.Println("Cancelling the running scan pass...")
	}
}
