package resilience

import (
	"context"
	"time"

	"github.com/routeplane/routeplane/internal/common/apperrors"
)

// Bulkhead bounds the number of concurrent calls for one operation class so
// slow admin or audit work cannot starve the read path.
type Bulkhead struct {
	name    string
	slots   chan struct{}
	maxWait time.Duration

	onAcquire func(name string, inUse int)
	onRelease func(name string, inUse int)
}

// BulkheadSnapshot is a point-in-time view used by the health endpoint.
type BulkheadSnapshot struct {
	Name     string `json:"name"`
	InUse    int    `json:"in_use"`
	Capacity int    `json:"capacity"`
}

// NewBulkhead creates a bulkhead with the given capacity. Acquire waits at
// most maxWait for a free slot before failing with ErrBulkheadFull.
func NewBulkhead(name string, capacity int, maxWait time.Duration) *Bulkhead {
	if capacity <= 0 {
		capacity = 16
	}
	if maxWait <= 0 {
		maxWait = 250 * time.Millisecond
	}
	return &Bulkhead{
		name:    name,
		slots:   make(chan struct{}, capacity),
		maxWait: maxWait,
	}
}

// SetHooks registers callbacks fired after each acquire and release with the
// resulting in-use count. Used to export bulkhead occupancy as a gauge.
func (bh *Bulkhead) SetHooks(onAcquire, onRelease func(name string, inUse int)) {
	bh.onAcquire = onAcquire
	bh.onRelease = onRelease
}

// Acquire takes a slot, waiting up to the configured timeout. On success the
// returned release function must be called exactly once.
func (bh *Bulkhead) Acquire(ctx context.Context) (func(), apperrors.Error) {
	timer := time.NewTimer(bh.maxWait)
	defer timer.Stop()

	select {
	case bh.slots <- struct{}{}:
		if bh.onAcquire != nil {
			bh.onAcquire(bh.name, len(bh.slots))
		}
		return func() {
			<-bh.slots
			if bh.onRelease != nil {
				bh.onRelease(bh.name, len(bh.slots))
			}
		}, nil
	case <-timer.C:
		return nil, ErrBulkheadFull.Msg(bh.name + " bulkhead is full")
	case <-ctx.Done():
		return nil, ErrBulkheadFull.Msg(bh.name + " bulkhead wait canceled")
	}
}

// Snapshot returns current occupancy for health reporting.
func (bh *Bulkhead) Snapshot() BulkheadSnapshot {
	return BulkheadSnapshot{
		Name:     bh.name,
		InUse:    len(bh.slots),
		Capacity: cap(bh.slots),
	}
}
