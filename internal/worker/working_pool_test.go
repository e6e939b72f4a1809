package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrySubmit_QueueFullReturnsFalse(t *testing.T) {
	pool := NewWorkingPool(1, 1)

	assert.True(t, pool.TrySubmit(func(ctx context.Context) error { return nil }))
	assert.False(t, pool.TrySubmit(func(ctx context.Context) error { return nil }))
}

func TestTrySubmit_AfterShutdownReturnsFalse(t *testing.T) {
	pool := NewWorkingPool(1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go pool.Start(ctx, &wg)

	cancel()
	wg.Wait()

	// Must refuse the job rather than panic on the closed channel.
	assert.False(t, pool.TrySubmit(func(ctx context.Context) error { return nil }))
}

func TestPool_ExecutesSubmittedJobs(t *testing.T) {
	pool := NewWorkingPool(2, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go pool.Start(ctx, &wg)

	done := make(chan struct{})
	ok := pool.TrySubmit(func(ctx context.Context) error {
		close(done)
		return nil
	})
	assert.True(t, ok)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not executed")
	}
}

func TestPool_RecoversFromPanickingJob(t *testing.T) {
	pool := NewWorkingPool(1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go pool.Start(ctx, &wg)

	assert.True(t, pool.TrySubmit(func(ctx context.Context) error {
		panic("boom")
	}))

	done := make(chan struct{})
	assert.True(t, pool.TrySubmit(func(ctx context.Context) error {
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}
