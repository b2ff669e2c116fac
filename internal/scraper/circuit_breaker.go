package scraper

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// CircuitBreakerConfig holds the thresholds that open a breaker
type CircuitBreakerConfig struct {
	ConsecutiveFailures int           // critical failures in a row that open immediately
	MinRequests         int           // requests seen before the failure rate is judged
	FailureRate         float64       // failure ratio that opens after MinRequests
	ResetTimeout        time.Duration // time spent open before a half-open attempt
}

// DefaultCircuitBreakerConfig returns the thresholds used for both sites
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		ConsecutiveFailures: 2,
		MinRequests:         20,
		FailureRate:         0.40,
		ResetTimeout:        30 * time.Minute,
	}
}

// CircuitBreaker stops requests to a site that appears to be blocking us
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig

	failures            int
	successes           int
	totalRequests       int
	consecutiveFailures int
	isOpen              bool
	lastFailureTime     time.Time

	now   func() time.Time
	mutex sync.Mutex
}

// NewCircuitBreaker creates a breaker for the named site
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.ConsecutiveFailures <= 0 {
		config.ConsecutiveFailures = 2
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
	}
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.successes++
	cb.totalRequests++
	cb.consecutiveFailures = 0
}

// RecordFailure records a failed request. statusCode is 0 for transport errors.
func (cb *CircuitBreaker) RecordFailure(statusCode int) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	cb.totalRequests++
	cb.lastFailureTime = cb.now()

	if !isCriticalStatus(statusCode) {
		cb.consecutiveFailures = 0
	} else {
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.config.ConsecutiveFailures {
			cb.isOpen = true
			log.Warnf("CircuitBreaker[%s]: open after %d consecutive %d responses, retry after %v",
				cb.name, cb.consecutiveFailures, statusCode, cb.config.ResetTimeout)
			return
		}
	}

	if cb.config.MinRequests > 0 && cb.totalRequests >= cb.config.MinRequests {
		failureRate := float64(cb.failures) / float64(cb.totalRequests)
		if cb.config.FailureRate > 0 && failureRate >= cb.config.FailureRate {
			cb.isOpen = true
			log.Warnf("CircuitBreaker[%s]: open at failure rate %.1f%% (%d/%d), retry after %v",
				cb.name, failureRate*100, cb.failures, cb.totalRequests, cb.config.ResetTimeout)
		}
	}
}

// CanProceed checks if requests are allowed
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if !cb.isOpen {
		return true
	}

	if cb.now().Sub(cb.lastFailureTime) > cb.config.ResetTimeout {
		log.Infof("CircuitBreaker[%s]: half-open after %v", cb.name, cb.config.ResetTimeout)
		cb.isOpen = false
		cb.failures = 0
		cb.successes = 0
		cb.totalRequests = 0
		cb.consecutiveFailures = 0
		return true
	}

	return false
}

// BreakerStatus is a snapshot of a breaker
type BreakerStatus struct {
	Open          bool `json:"open"`
	Failures      int  `json:"failures"`
	TotalRequests int  `json:"total_requests"`
}

// Status returns current circuit breaker status
func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return BreakerStatus{Open: cb.isOpen, Failures: cb.failures, TotalRequests: cb.totalRequests}
}

// isCriticalStatus reports responses that suggest a WAF or rate block
func isCriticalStatus(statusCode int) bool {
	return statusCode == 403 || statusCode == 429 || statusCode >= 500
}
