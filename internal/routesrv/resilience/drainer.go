package resilience

import (
	"sync"
	"time"

	"github.com/routeplane/routeplane/internal/common/apperrors"
)

// Drainer is the process-wide graceful shutdown gate. Requests register with
// Enter; once StartDraining is called new entries fail fast and
// WaitForDrain blocks until in-flight work has finished.
type Drainer struct {
	mu       sync.Mutex
	draining bool
	inFlight int
	idle     chan struct{}
}

// NewDrainer creates a drainer in the accepting state.
func NewDrainer() *Drainer {
	return &Drainer{idle: make(chan struct{})}
}

// Enter registers one in-flight request. The returned done function must be
// called when the request finishes. Fails with ErrDraining once draining has
// started.
func (d *Drainer) Enter() (func(), apperrors.Error) {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return nil, ErrDraining
	}
	d.inFlight++
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			d.inFlight--
			if d.draining && d.inFlight == 0 {
				close(d.idle)
			}
			d.mu.Unlock()
		})
	}, nil
}

// StartDraining flips the gate. Idempotent.
func (d *Drainer) StartDraining() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		return
	}
	d.draining = true
	if d.inFlight == 0 {
		close(d.idle)
	}
}

// WaitForDrain blocks until the in-flight counter reaches zero or the timeout
// elapses. Returns true if the drain completed.
func (d *Drainer) WaitForDrain(timeout time.Duration) bool {
	d.mu.Lock()
	if !d.draining {
		d.mu.Unlock()
		return false
	}
	idle := d.idle
	d.mu.Unlock()

	select {
	case <-idle:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Draining reports whether the gate has been flipped. Readiness checks use
// this to flip to not-ready.
func (d *Drainer) Draining() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draining
}

// InFlight returns the current in-flight request count.
func (d *Drainer) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}
