package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scopyapp/scopy/internal/queue"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := queue.New[int](4)
	ctx := context.Background()

	for i := range 4 {
		require.NoError(t, q.Enqueue(ctx, i))
	}

	for i := range 4 {
		v, ok, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestEnqueueBlocksAtCapacityThenUnblocks(t *testing.T) {
	q := queue.New[int](1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, 1))

	done := make(chan struct{})

	go func() {
		_ = q.Enqueue(ctx, 2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("enqueue should have blocked while queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	v, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, v)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue should have unblocked once a slot freed")
	}

	v, ok, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestFinishWakesWaitingConsumer(t *testing.T) {
	q := queue.New[int](1)
	ctx := context.Background()

	type result struct {
		ok  bool
		err error
	}

	resCh := make(chan result, 1)

	go func() {
		_, ok, err := q.Dequeue(ctx)
		resCh <- result{ok, err}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Finish()

	select {
	case r := <-resCh:
		require.NoError(t, r.err)
		require.False(t, r.ok)
	case <-time.After(time.Second):
		t.Fatal("finish should have woken the waiting consumer")
	}

	_, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFinishIsIdempotent(t *testing.T) {
	q := queue.New[int](1)
	q.Finish()
	q.Finish()

	_, ok, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEnqueueAfterFinishSilentlyDrops(t *testing.T) {
	q := queue.New[int](4)
	q.Finish()

	require.NoError(t, q.Enqueue(context.Background(), 1))
	require.Equal(t, 0, q.Len())
}

func TestDequeueCancelDoesNotLoseSlot(t *testing.T) {
	q := queue.New[int](1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := q.Dequeue(ctx)
	require.Error(t, err)
	require.False(t, ok)

	// The queue is still usable afterwards.
	require.NoError(t, q.Enqueue(context.Background(), 7))

	v, ok, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, v)
}

func TestProducerPreservesFIFOAcrossHandoffs(t *testing.T) {
	q := queue.New[int](2)
	ctx := context.Background()

	const n = 200

	var wg sync.WaitGroup

	results := make([]int, 0, n)

	var mu sync.Mutex

	wg.Add(1)

	go func() {
		defer wg.Done()

		for range n {
			v, ok, err := q.Dequeue(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			mu.Lock()
			results = append(results, v)
			mu.Unlock()
		}
	}()

	for i := range n {
		require.NoError(t, q.Enqueue(ctx, i))
	}

	wg.Wait()
	require.Len(t, results, n)

	for i, v := range results {
		require.Equal(t, i, v)
	}
}
