// Package scheduler runs scan passes on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"hotel-plan-finder/internal/cleanup"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// ErrAlreadyRunning is returned when a pass is requested while one is in progress
var ErrAlreadyRunning = errors.New("scan pass already running")

// PassRunner runs one scan pass
type PassRunner interface {
	RunOnce(ctx context.Context) (RunStats, error)
}

// Pruner removes expired outbox events
type Pruner interface {
	PruneEvents(ctx context.Context, config cleanup.CleanupConfig) (*cleanup.CleanupResult, error)
}

// Config holds the cron settings
type Config struct {
	Spec        string // scan pass, standard 5-field cron
	CleanupSpec string // outbox pruning; empty disables it
	Cleanup     cleanup.CleanupConfig
	PassTimeout time.Duration // zero means no deadline
}

// Scheduler handles scheduled scan passes
type Scheduler struct {
	cron    *cron.Cron
	runner  PassRunner
	pruner  Pruner
	config  Config
	baseCtx context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	running   bool
	isStarted bool
	lastRun   *RunStats
	lastErr   error
	wg        sync.WaitGroup
}

// NewScheduler creates a new scheduler. pruner may be nil.
func NewScheduler(runner PassRunner, pruner Pruner, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		pruner:  pruner,
		config:  cfg,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.config.Spec, func() {
		log.Println("Scheduler: Starting scheduled scan pass...")
		if _, err := s.RunNow(s.baseCtx); err != nil {
			if errors.Is(err, ErrAlreadyRunning) {
				log.Warn("Scheduler: Previous pass still running, skipping this tick")
				return
			}
			log.WithError(err).Error("Scheduler: Scheduled pass failed")
		}
	})
	if err != nil {
		return err
	}

	if s.pruner != nil && s.config.CleanupSpec != "" {
		_, err = s.cron.AddFunc(s.config.CleanupSpec, func() {
			if _, err := s.pruner.PruneEvents(s.baseCtx, s.config.Cleanup); err != nil {
				log.WithError(err).Error("Scheduler: Cleanup failed")
			}
		})
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	s.mu.Lock()
	s.isStarted = true
	s.mu.Unlock()
	log.Infof("Scheduler: Started (scan: %s, cleanup: %s)", s.config.Spec, s.config.CleanupSpec)

	return nil
}

// Stop stops the cron loop, cancels a running pass and waits for it
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.isStarted
	s.isStarted = false
	s.mu.Unlock()

	if started {
		<-s.cron.Stop().Done()
	}
	s.cancel()
	s.wg.Wait()
	if started {
		log.Println("Scheduler: Stopped")
	}
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.wg.Add(1)
	return true
}

func (s *Scheduler) run(ctx context.Context) (RunStats, error) {
	defer s.wg.Done()

	if s.config.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.PassTimeout)
		defer cancel()
	}

	stats, err := s.runner.RunOnce(ctx)

	s.mu.Lock()
	s.running = false
	s.lastRun = &stats
	s.lastErr = err
	s.mu.Unlock()

	return stats, err
}

// RunNow runs a pass synchronously. Overlapping passes are refused.
func (s *Scheduler) RunNow(ctx context.Context) (RunStats, error) {
	if !s.acquire() {
		return RunStats{}, ErrAlreadyRunning
	}
	return s.run(ctx)
}

// Trigger starts a pass in the background (for manual trigger)
func (s *Scheduler) Trigger() error {
	if !s.acquire() {
		return ErrAlreadyRunning
	}
	log.Println("Scheduler: Manual trigger - starting scan pass...")
	go func() {
		if _, err := s.run(s.baseCtx); err != nil {
			log.WithError(err).Error("Scheduler: Manual pass failed")
		}
	}()
	return nil
}

// IsRunning reports whether a pass is in progress
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status describes the scheduler state
type Status struct {
	Started  bool      `json:"started"`
	Running  bool      `json:"running"`
	Spec     string    `json:"spec"`
	LastRun  *RunStats `json:"last_run,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
	NextScan time.Time `json:"next_scan,omitempty"`
}

// Status returns the current state and the last pass summary
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Started: s.isStarted, Running: s.running, Spec: s.config.Spec, LastRun: s.lastRun}
	if s.lastErr != nil {
		st.LastErr = s.lastErr.Error()
	}
	if entries := s.cron.Entries(); len(entries) > 0 {
		st.NextScan = entries[0].Next
	}
	return st
}
