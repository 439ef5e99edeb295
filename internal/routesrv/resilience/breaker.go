package resilience

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/apperrors"
)

// BreakerState is the current mode of a circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// BreakerOptions configures a Breaker. Zero values fall back to the defaults
// used across adapters.
type BreakerOptions struct {
	// FailureThreshold is the failure count that trips the breaker.
	FailureThreshold int
	// Window is the sliding window over which calls are counted.
	Window time.Duration
	// OpenTimeout is how long the breaker stays open before allowing a probe.
	OpenTimeout time.Duration
	// MinCalls is the minimum number of calls in the window before the
	// breaker may trip. Prevents tripping on a handful of early failures.
	MinCalls int
}

func (o BreakerOptions) withDefaults() BreakerOptions {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 5
	}
	if o.Window <= 0 {
		o.Window = 60 * time.Second
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 60 * time.Second
	}
	if o.MinCalls <= 0 {
		o.MinCalls = 10
	}
	return o
}

type callRecord struct {
	at      time.Time
	failure bool
}

// Breaker is a sliding-window circuit breaker. Callers ask Allow before the
// adapter call and report the outcome with RecordSuccess or RecordFailure.
// The critical sections are bounded; the breaker never calls an adapter while
// holding its lock.
type Breaker struct {
	name string
	opts BreakerOptions
	now  func() time.Time

	mu       sync.Mutex
	state    BreakerState
	calls    []callRecord
	openedAt time.Time
	probing  bool

	onTransition func(name string, state BreakerState)
}

// BreakerSnapshot is a point-in-time view used by the health endpoint.
type BreakerSnapshot struct {
	Name         string       `json:"name"`
	State        BreakerState `json:"state"`
	FailureCount int          `json:"failure_count"`
	TotalCalls   int          `json:"total_calls"`
}

// NewBreaker creates a breaker named for its adapter.
func NewBreaker(name string, opts BreakerOptions) *Breaker {
	return &Breaker{
		name:  name,
		opts:  opts.withDefaults(),
		now:   time.Now,
		state: StateClosed,
	}
}

// SetTransitionHook registers a callback invoked after every state change,
// outside the breaker lock. Used to export breaker state as a metric.
func (b *Breaker) SetTransitionHook(fn func(name string, state BreakerState)) {
	b.onTransition = fn
}

// Allow reports whether a call may proceed. In the open state it fails fast
// with ErrCircuitOpen until the open timeout elapses, at which point a single
// probe is admitted in half_open.
func (b *Breaker) Allow() apperrors.Error {
	b.mu.Lock()
	var transitioned BreakerState
	var rejected bool
	switch b.state {
	case StateClosed:
		// proceed
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.opts.OpenTimeout {
			b.state = StateHalfOpen
			b.probing = true
			transitioned = StateHalfOpen
		} else {
			rejected = true
		}
	case StateHalfOpen:
		if b.probing {
			rejected = true
		} else {
			b.probing = true
		}
	}
	b.mu.Unlock()

	if transitioned != "" {
		b.notify(transitioned)
	}
	if rejected {
		return ErrCircuitOpen.Msg(b.name + " breaker is open")
	}
	return nil
}

// RecordSuccess reports a successful adapter call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	var transitioned BreakerState
	switch b.state {
	case StateHalfOpen:
		b.state = StateClosed
		b.calls = nil
		b.probing = false
		transitioned = StateClosed
	case StateClosed:
		b.record(false)
	}
	b.mu.Unlock()

	if transitioned != "" {
		b.notify(transitioned)
	}
}

// RecordFailure reports a failed adapter call. In closed state it may trip
// the breaker; in half_open it sends the breaker straight back to open.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	var transitioned BreakerState
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
		b.probing = false
		transitioned = StateOpen
	case StateClosed:
		b.record(true)
		failures, total := b.windowCounts()
		if failures >= b.opts.FailureThreshold && total >= b.opts.MinCalls {
			b.state = StateOpen
			b.openedAt = b.now()
			transitioned = StateOpen
		}
	}
	b.mu.Unlock()

	if transitioned != "" {
		b.notify(transitioned)
	}
}

// State returns the current state, honoring the open timeout so callers see
// half_open once a probe would be admitted.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.OpenTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Snapshot returns the breaker's current counters for health reporting.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune()
	failures, total := b.windowCounts()
	return BreakerSnapshot{
		Name:         b.name,
		State:        b.state,
		FailureCount: failures,
		TotalCalls:   total,
	}
}

// Reset returns the breaker to closed with empty counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.state = StateClosed
	b.calls = nil
	b.probing = false
	b.mu.Unlock()
	b.notify(StateClosed)
}

// record appends a call outcome and prunes entries older than the window.
// Caller holds the lock.
func (b *Breaker) record(failure bool) {
	b.calls = append(b.calls, callRecord{at: b.now(), failure: failure})
	b.prune()
}

func (b *Breaker) prune() {
	cutoff := b.now().Add(-b.opts.Window)
	i := 0
	for i < len(b.calls) && b.calls[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.calls = b.calls[i:]
	}
}

func (b *Breaker) windowCounts() (failures, total int) {
	for _, c := range b.calls {
		total++
		if c.failure {
			failures++
		}
	}
	return failures, total
}

func (b *Breaker) notify(state BreakerState) {
	log.Info().Str("breaker", b.name).Str("state", string(state)).Msg("circuit breaker state change")
	if b.onTransition != nil {
		b.onTransition(b.name, state)
	}
}
