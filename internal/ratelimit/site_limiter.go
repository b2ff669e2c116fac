package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SiteLimiter paces outbound requests to one site: a bounded number in
// flight and a base delay plus random jitter between request starts.
type SiteLimiter struct {
	maxInFlight     int
	currentInFlight int
	baseDelay       time.Duration
	jitter          time.Duration
	lastRequest     time.Time
	mutex           sync.Mutex
}

// NewSiteLimiter creates a pacing limiter for one site
func NewSiteLimiter(maxInFlight int, baseDelay, jitter time.Duration) *SiteLimiter {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &SiteLimiter{
		maxInFlight: maxInFlight,
		baseDelay:   baseDelay,
		jitter:      jitter,
	}
}

// Acquire waits until a request may start. It returns ctx.Err() if the
// context ends first; in that case no slot is held.
func (sl *SiteLimiter) Acquire(ctx context.Context) error {
	sl.mutex.Lock()

	// Wait for in-flight count to drop
	for sl.currentInFlight >= sl.maxInFlight {
		sl.mutex.Unlock()
		if err := sleepContext(ctx, 100*time.Millisecond); err != nil {
			return err
		}
		sl.mutex.Lock()
	}

	requiredDelay := sl.baseDelay
	if sl.jitter > 0 {
		requiredDelay += time.Duration(rand.Int63n(int64(sl.jitter)))
	}

	if !sl.lastRequest.IsZero() {
		if elapsed := time.Since(sl.lastRequest); elapsed < requiredDelay {
			sl.currentInFlight++
			sl.mutex.Unlock()
			if err := sleepContext(ctx, requiredDelay-elapsed); err != nil {
				sl.Release()
				return err
			}
			sl.mutex.Lock()
			sl.lastRequest = time.Now()
			sl.mutex.Unlock()
			return nil
		}
	}

	sl.currentInFlight++
	sl.lastRequest = time.Now()
	sl.mutex.Unlock()
	return nil
}

// Release marks a request as completed
func (sl *SiteLimiter) Release() {
	sl.mutex.Lock()
	if sl.currentInFlight > 0 {
		sl.currentInFlight--
	}
	sl.mutex.Unlock()
}

// InFlight returns current in-flight request count
func (sl *SiteLimiter) InFlight() int {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	return sl.currentInFlight
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
