package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkheadAcquireRelease(t *testing.T) {
	bh := NewBulkhead("read", 2, 50*time.Millisecond)
	ctx := context.Background()

	rel1, err := bh.Acquire(ctx)
	require.Nil(t, err)
	rel2, err := bh.Acquire(ctx)
	require.Nil(t, err)
	assert.Equal(t, 2, bh.Snapshot().InUse)

	// capacity exhausted, the third acquire times out
	_, err = bh.Acquire(ctx)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, ErrBulkheadFull)

	rel1()
	rel3, err := bh.Acquire(ctx)
	require.Nil(t, err)

	rel2()
	rel3()
	assert.Equal(t, 0, bh.Snapshot().InUse)
}

func TestBulkheadContextCancel(t *testing.T) {
	bh := NewBulkhead("write", 1, 5*time.Second)
	rel, err := bh.Acquire(context.Background())
	require.Nil(t, err)
	defer rel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = bh.Acquire(ctx)
	assert.ErrorIs(t, err, ErrBulkheadFull)
}

func TestBulkheadWaiterGetsFreedSlot(t *testing.T) {
	bh := NewBulkhead("read", 1, 2*time.Second)
	rel, err := bh.Acquire(context.Background())
	require.Nil(t, err)

	done := make(chan struct{})
	go func() {
		rel2, aerr := bh.Acquire(context.Background())
		assert.Nil(t, aerr)
		if rel2 != nil {
			rel2()
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	rel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter did not acquire the freed slot")
	}
}
