package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hotel-plan-finder/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DispatcherConfig controls outbox polling
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// DispatchStats counts the outcome of one DispatchOnce
type DispatchStats struct {
	Delivered     int `json:"delivered"`
	Failed        int `json:"failed"`
	PermanentFail int `json:"permanent_fail"`
	Skipped       int `json:"skipped"` // no message for the event kind
	Blocked       int `json:"blocked"` // waiting behind an undelivered event of the same plan
}

// Dispatcher delivers plan_events rows in ID order. Events of one plan are
// delivered in write order: an undelivered event holds back the later ones.
// Delivery is at-least-once.
type Dispatcher struct {
	db         *gorm.DB
	router     *Router
	transport  Transport
	conditions map[string]models.Conditions
	config     DispatcherConfig
	now        func() time.Time

	mu        sync.Mutex
	stopChan  chan struct{}
	doneChan  chan struct{}
	isRunning bool
}

// NewDispatcher creates a dispatcher. conditions maps property IDs to the
// conditions listed in messages and may be nil.
func NewDispatcher(db *gorm.DB, router *Router, transport Transport, conditions map[string]models.Conditions, config DispatcherConfig) *Dispatcher {
	if config.PollInterval <= 0 {
		config.PollInterval = 10 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = models.MaxDeliveryAttempts
	}
	return &Dispatcher{
		db:         db,
		router:     router,
		transport:  transport,
		conditions: conditions,
		config:     config,
		now:        time.Now,
	}
}

// SetConditions replaces the per-property conditions
func (d *Dispatcher) SetConditions(conditions map[string]models.Conditions) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conditions = conditions
}

func (d *Dispatcher) conditionsFor(acmID string) *models.Conditions {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conditions[acmID]
	if !ok {
		return nil
	}
	return &c
}

// Start runs DispatchOnce every poll interval until Stop
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		log.Info("Dispatcher: Already running")
		return
	}

	d.isRunning = true
	d.stopChan = make(chan struct{})
	d.doneChan = make(chan struct{})
	log.Infof("Dispatcher: Started (poll_interval=%v, batch_size=%d, transport=%s)",
		d.config.PollInterval, d.config.BatchSize, d.transport.Name())

	go d.run(d.stopChan, d.doneChan)
}

// Stop stops the loop and waits for the current batch to finish
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return
	}
	d.isRunning = false
	stop, done := d.stopChan, d.doneChan
	d.mu.Unlock()

	log.Info("Dispatcher: Stopping...")
	close(stop)
	<-done
}

func (d *Dispatcher) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-stop:
			log.Info("Dispatcher: Stopped")
			return
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Dispatcher: batch failed")
			}
		}
	}
}

// DispatchOnce attempts up to BatchSize due events. Rows that are not due,
// or wait behind an undelivered event of their plan, do not count against
// the batch: the scan pages past them in ID order.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats
	now := d.now()

	blocked := make(map[string]bool)
	attempted := 0
	var lastID int64

	for attempted < d.config.BatchSize {
		var events []models.PlanEvent
		err := d.db.WithContext(ctx).
			Where("status IN ?", []string{models.EventStatusPending, models.EventStatusFailed}).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(d.config.BatchSize).
			Find(&events).Error
		if err != nil {
			return stats, fmt.Errorf("fetch events: %w", err)
		}

		for i := range events {
			if attempted >= d.config.BatchSize {
				break
			}
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			event := &events[i]
			lastID = event.ID

			if blocked[event.PlanID] {
				stats.Blocked++
				continue
			}
			if event.NextRetryAt != nil && event.NextRetryAt.After(now) {
				blocked[event.PlanID] = true
				stats.Blocked++
				continue
			}

			attempted++
			switch d.deliver(ctx, event) {
			case models.EventStatusDone:
				stats.Delivered++
			case models.EventStatusFailed:
				stats.Failed++
				blocked[event.PlanID] = true
			case models.EventStatusPermanentFail:
				stats.PermanentFail++
			default:
				stats.Skipped++
			}
		}

		if len(events) < d.config.BatchSize {
			break
		}
	}

	if attempted > 0 || stats.Blocked > 0 {
		log.Infof("Dispatcher: delivered=%d failed=%d permanent_fail=%d skipped=%d blocked=%d",
			stats.Delivered, stats.Failed, stats.PermanentFail, stats.Skipped, stats.Blocked)
	}
	return stats, nil
}

// Drain runs DispatchOnce until a batch settles nothing. Failed deliveries
// stay queued for their retry time.
func (d *Dispatcher) Drain(ctx context.Context) (DispatchStats, error) {
	var total DispatchStats
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		ds, err := d.DispatchOnce(ctx)
		if err != nil {
			return total, err
		}
		total.Delivered += ds.Delivered
		total.Failed += ds.Failed
		total.PermanentFail += ds.PermanentFail
		total.Skipped += ds.Skipped
		total.Blocked = ds.Blocked
		if ds.Delivered+ds.PermanentFail+ds.Skipped == 0 {
			return total, nil
		}
	}
}

// deliver renders and sends one event and records the outcome. It returns
// the resulting status, or "" when the event kind needs no message.
func (d *Dispatcher) deliver(ctx context.Context, event *models.PlanEvent) string {
	logger := log.WithFields(log.Fields{"event_id": event.ID, "plan_id": event.PlanID, "event": event.EventName})

	message, ok, err := d.router.Route(RecordFromEvent(event), d.conditionsFor(event.AcmID))
	if err != nil {
		logger.WithError(err).Error("Dispatcher: render failed")
		d.finish(event, models.EventStatusPermanentFail, err.Error())
		return models.EventStatusPermanentFail
	}
	if !ok {
		d.finish(event, models.EventStatusDone, "no message for event kind")
		return ""
	}

	event.Attempts++
	if err := d.transport.Send(ctx, message); err != nil {
		if event.Attempts >= d.config.MaxAttempts {
			logger.WithError(err).Errorf("Dispatcher: giving up after %d attempts", event.Attempts)
			d.finish(event, models.EventStatusPermanentFail, err.Error())
			return models.EventStatusPermanentFail
		}

		delay := models.GetNextRetryDelay(event.Attempts - 1)
		nextRetry := d.now().Add(delay)
		event.Status = models.EventStatusFailed
		event.LastError = err.Error()
		event.NextRetryAt = &nextRetry
		logger.WithError(err).Warnf("Dispatcher: send failed, retry in %v (attempt %d/%d)", delay, event.Attempts, d.config.MaxAttempts)
		if err := d.db.Save(event).Error; err != nil {
			logger.WithError(err).Error("Dispatcher: failed to save retry status")
		}
		return models.EventStatusFailed
	}

	logger.Info("Dispatcher: delivered")
	d.finish(event, models.EventStatusDone, "")
	return models.EventStatusDone
}

func (d *Dispatcher) finish(event *models.PlanEvent, status, lastError string) {
	deliveredAt := d.now()
	event.Status = status
	event.LastError = lastError
	event.NextRetryAt = nil
	event.DeliveredAt = &deliveredAt

	if err := d.db.Save(event).Error; err != nil {
		log.WithError(err).Errorf("Dispatcher: failed to mark event %d as %s", event.ID, status)
	}
}

// Stats returns outbox counts by status. A status whose count fails is
// omitted.
func (d *Dispatcher) Stats() map[string]interface{} {
	d.mu.Lock()
	running := d.isRunning
	d.mu.Unlock()

	stats := map[string]interface{}{"is_running": running}
	for _, status := range []string{
		models.EventStatusPending,
		models.EventStatusFailed,
		models.EventStatusDone,
		models.EventStatusPermanentFail,
	} {
		var n int64
		if err := d.db.Model(&models.PlanEvent{}).Where("status = ?", status).Count(&n).Error; err != nil {
			log.WithError(err).Errorf("Dispatcher: failed to count %s events", status)
			continue
		}
		stats[status] = n
	}
	return stats
}
