package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversPublishedValue(t *testing.T) {
	b := NewBus[int](DefaultConfig())
	defer func() { _ = b.Shutdown(time.Second) }()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	b.Subscribe(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
		close(done)
	})

	require.True(t, b.Publish(7))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{7}, got)
}

func TestBusPublishDropsWhenFull(t *testing.T) {
	b := NewBus[int](Config{BufferSize: 1, Workers: 0})
	defer func() { _ = b.Shutdown(time.Second) }()

	block := make(chan struct{})
	b.Subscribe(func(int) { <-block })

	require.True(t, b.Publish(1)) // consumed by the blocked worker
	require.True(t, b.Publish(2)) // fills the buffer
	assert.False(t, b.Publish(3)) // dropped

	close(block)

	stats := b.GetStats()
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestBusSubscriberPanicDoesNotStopDelivery(t *testing.T) {
	b := NewBus[int](DefaultConfig())
	defer func() { _ = b.Shutdown(time.Second) }()

	done := make(chan struct{})
	b.Subscribe(func(int) { panic("boom") })
	b.Subscribe(func(int) { close(done) })

	require.True(t, b.Publish(1))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second subscriber never ran")
	}

	stats := b.GetStats()
	assert.Equal(t, uint64(1), stats.SubscriberErrors)
}

func TestBusShutdownStopsDelivery(t *testing.T) {
	b := NewBus[int](DefaultConfig())
	require.NoError(t, b.Shutdown(time.Second))
	assert.False(t, b.Publish(1))
}
