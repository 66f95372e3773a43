package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAllTasks(t *testing.T) {
	p := New(context.Background(), "batch", 3, 20)

	var n atomic.Int64
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(func(_ context.Context) { n.Add(1) }))
	}
	p.Close()

	assert.Equal(t, int64(20), n.Load())
	assert.Equal(t, int64(20), p.Stats().Completed)
}

func TestPool_QueueFull(t *testing.T) {
	p := New(context.Background(), "backend", 1, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, p.Submit(func(_ context.Context) {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, p.Submit(func(_ context.Context) {}))
	err := p.Submit(func(_ context.Context) {})
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Equal(t, int64(1), p.Stats().Rejected)

	close(release)
	p.Close()
}

func TestPool_SubmitAfterClose(t *testing.T) {
	p := New(context.Background(), "warmup", 1, 1)
	p.Close()
	p.Close()
	assert.ErrorIs(t, p.Submit(func(_ context.Context) {}), ErrClosed)
}

func TestPool_PanicDoesNotKillWorker(t *testing.T) {
	p := New(context.Background(), "batch", 1, 5)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(func(_ context.Context) { panic("boom") }))
	require.NoError(t, p.Submit(func(_ context.Context) { wg.Done() }))
	wg.Wait()
	p.Close()

	assert.Equal(t, int64(2), p.Stats().Completed)
}
