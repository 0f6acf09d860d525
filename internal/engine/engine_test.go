package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_DoWaitsForCompletion(t *testing.T) {
	e := New(8, nil)
	defer e.Close()

	ran := false
	err := e.Do(context.Background(), func() { ran = true })
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestEngine_SerializesWork(t *testing.T) {
	e := New(64, nil)
	defer e.Close()

	// If two units ever interleaved, the unguarded counter updates
	// would race and the final count would come up short.
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.Do(context.Background(), func() { counter++ })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
}

func TestEngine_EnqueueRunsEventually(t *testing.T) {
	e := New(8, nil)

	ran := make(chan struct{})
	err := e.Enqueue(context.Background(), func() { close(ran) })
	require.NoError(t, err)

	// Close drains the queue before returning.
	e.Close()
	select {
	case <-ran:
	default:
		t.Fatal("enqueued work never ran")
	}
}

func TestEngine_ClosedRejectsWork(t *testing.T) {
	e := New(8, nil)
	e.Close()

	err := e.Do(context.Background(), func() { t.Fatal("ran after close") })
	assert.ErrorIs(t, err, ErrClosed)

	err = e.Enqueue(context.Background(), func() { t.Fatal("ran after close") })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	e := New(8, nil)
	e.Close()
	e.Close()
}

func TestEngine_ContextGatesAdmission(t *testing.T) {
	e := New(1, nil)
	defer e.Close()

	block := make(chan struct{})
	require.NoError(t, e.Enqueue(context.Background(), func() { <-block }))
	// Fill the queue behind the blocked unit.
	require.NoError(t, e.Enqueue(context.Background(), func() {}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Enqueue(ctx, func() {})
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
}
