package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()

	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(job{id: id}))
	}

	for _, want := range []string{"a", "b", "c"} {
		j, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, j.id)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestRequestQueue_Wait_SignalsEnqueue(t *testing.T) {
	q := newRequestQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(job{id: "x"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not fire after enqueue")
	}
	assert.Equal(t, 1, q.Len())
}

func TestRequestQueue_Close(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(job{id: "queued"})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(job{id: "late"}), "enqueue after close")
	assert.False(t, q.Drained(), "queued job still pending")

	// Ranging over the signal terminates only once it is closed.
	for range q.Wait() {
	}

	j, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "queued", j.id)
	assert.True(t, q.Drained())
}

func TestRequestQueue_ThreadSafe(t *testing.T) {
	q := newRequestQueue()
	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(job{})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
	n := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, producers*perProducer, n)
}
