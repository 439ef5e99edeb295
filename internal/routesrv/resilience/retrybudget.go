package resilience

import (
	"sync"
	"time"
)

// RetryBudget caps the number of retry attempts across all callers of an
// adapter within a sliding window. It keeps a stampede of retries from
// amplifying an outage.
type RetryBudget struct {
	name       string
	maxRetries int
	window     time.Duration
	now        func() time.Time

	mu       sync.Mutex
	attempts []time.Time
}

// RetryBudgetSnapshot is a point-in-time view used by the health endpoint.
type RetryBudgetSnapshot struct {
	Name       string `json:"name"`
	Used       int    `json:"used"`
	MaxRetries int    `json:"max_retries"`
}

// NewRetryBudget creates a budget of maxRetries attempts per window.
func NewRetryBudget(name string, maxRetries int, window time.Duration) *RetryBudget {
	if maxRetries <= 0 {
		maxRetries = 50
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &RetryBudget{
		name:       name,
		maxRetries: maxRetries,
		window:     window,
		now:        time.Now,
	}
}

// CanRetry reports whether the budget has capacity for another attempt.
func (rb *RetryBudget) CanRetry() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.prune()
	return len(rb.attempts) < rb.maxRetries
}

// RecordRetry stamps one retry attempt against the budget.
func (rb *RetryBudget) RecordRetry() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.prune()
	rb.attempts = append(rb.attempts, rb.now())
}

// Snapshot returns current usage for health reporting.
func (rb *RetryBudget) Snapshot() RetryBudgetSnapshot {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.prune()
	return RetryBudgetSnapshot{
		Name:       rb.name,
		Used:       len(rb.attempts),
		MaxRetries: rb.maxRetries,
	}
}

// prune drops attempts older than the window. Caller holds the lock.
func (rb *RetryBudget) prune() {
	cutoff := rb.now().Add(-rb.window)
	i := 0
	for i < len(rb.attempts) && rb.attempts[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		rb.attempts = rb.attempts[i:]
	}
}
