// Package ratelimit paces and caps outbound requests to the search sites.
package ratelimit

import (
	"sync"
	"time"
)

// WindowLimiter enforces request ceilings over sliding minute, hour and day
// windows. A zero limit disables that window.
type WindowLimiter struct {
	requestsPerMinute int
	requestsPerHour   int
	requestsPerDay    int
	enabled           bool

	// Request tracking
	minuteWindow []time.Time
	hourWindow   []time.Time
	dayWindow    []time.Time
	rejected     int
	mu           sync.Mutex

	now func() time.Time
}

// NewWindowLimiter creates a limiter with the given ceilings
func NewWindowLimiter(requestsPerMinute, requestsPerHour, requestsPerDay int, enabled bool) *WindowLimiter {
	return &WindowLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		requestsPerDay:    requestsPerDay,
		enabled:           enabled,
		now:               time.Now,
	}
}

// Allow records a request and reports whether it fits under every ceiling.
// A rejected request is not recorded in the windows.
func (wl *WindowLimiter) Allow() bool {
	if !wl.enabled {
		return true
	}

	wl.mu.Lock()
	defer wl.mu.Unlock()

	now := wl.now()
	wl.cleanup(now)

	if wl.requestsPerMinute > 0 && len(wl.minuteWindow) >= wl.requestsPerMinute {
		wl.rejected++
		return false
	}
	if wl.requestsPerHour > 0 && len(wl.hourWindow) >= wl.requestsPerHour {
		wl.rejected++
		return false
	}
	if wl.requestsPerDay > 0 && len(wl.dayWindow) >= wl.requestsPerDay {
		wl.rejected++
		return false
	}

	wl.minuteWindow = append(wl.minuteWindow, now)
	wl.hourWindow = append(wl.hourWindow, now)
	wl.dayWindow = append(wl.dayWindow, now)

	return true
}

// cleanup removes expired entries from the time windows
func (wl *WindowLimiter) cleanup(now time.Time) {
	wl.minuteWindow = filterTimes(wl.minuteWindow, now.Add(-time.Minute))
	wl.hourWindow = filterTimes(wl.hourWindow, now.Add(-time.Hour))
	wl.dayWindow = filterTimes(wl.dayWindow, now.Add(-24*time.Hour))
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	return append(times[:0:0], times[i:]...)
}

// Stats returns current window usage
func (wl *WindowLimiter) Stats() Stats {
	if !wl.enabled {
		return Stats{Enabled: false}
	}

	wl.mu.Lock()
	defer wl.mu.Unlock()

	wl.cleanup(wl.now())

	return Stats{
		Enabled:             true,
		RequestsLastMinute:  len(wl.minuteWindow),
		RequestsLastHour:    len(wl.hourWindow),
		RequestsLastDay:     len(wl.dayWindow),
		LimitPerMinute:      wl.requestsPerMinute,
		LimitPerHour:        wl.requestsPerHour,
		LimitPerDay:         wl.requestsPerDay,
		RemainingThisMinute: remaining(wl.requestsPerMinute, len(wl.minuteWindow)),
		RemainingThisHour:   remaining(wl.requestsPerHour, len(wl.hourWindow)),
		RemainingThisDay:    remaining(wl.requestsPerDay, len(wl.dayWindow)),
		Rejected:            wl.rejected,
	}
}

// Stats contains limiter statistics. Remaining is -1 for a disabled window.
type Stats struct {
	Enabled             bool `json:"enabled"`
	RequestsLastMinute  int  `json:"requests_last_minute"`
	RequestsLastHour    int  `json:"requests_last_hour"`
	RequestsLastDay     int  `json:"requests_last_day"`
	LimitPerMinute      int  `json:"limit_per_minute"`
	LimitPerHour        int  `json:"limit_per_hour"`
	LimitPerDay         int  `json:"limit_per_day"`
	RemainingThisMinute int  `json:"remaining_this_minute"`
	RemainingThisHour   int  `json:"remaining_this_hour"`
	RemainingThisDay    int  `json:"remaining_this_day"`
	Rejected            int  `json:"rejected"`
}

func remaining(limit, used int) int {
	if limit <= 0 {
		return -1
	}
	return max(0, limit-used)
}
