package utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorkerPool_RunsAllJobs checks Shutdown drains the queue.
func TestWorkerPool_RunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(3, 10)
	var count atomic.Int32

	for i := 0; i < 50; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() { count.Add(1) }))
	}
	pool.Shutdown()

	assert.Equal(t, int32(50), count.Load())
}

// TestWorkerPool_SubmitAfterShutdown returns ErrPoolClosed.
func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Shutdown()
	pool.Shutdown()

	err := pool.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

// TestWorkerPool_SubmitHonoursContext gives up when the queue stays full.
func TestWorkerPool_SubmitHonoursContext(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, pool.Submit(context.Background(), func() {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, pool.Submit(context.Background(), func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	pool.Shutdown()
}
