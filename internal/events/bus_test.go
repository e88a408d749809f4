package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("expected event to be delivered")
	}
	return Event{}
}

func TestBusPublish(t *testing.T) {
	bus := NewBus(0)
	defer bus.Close()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Emit(StepStarted, 1, "Step 1: print hello")
	bus.Publish(Event{Type: CodeChunk, Data: map[string]any{"chunk": "print("}})

	first := receive(t, ch)
	assert.Equal(t, StepStarted, first.Type)
	assert.Equal(t, 1, first.Step)
	assert.Equal(t, "Step 1: print hello", first.Message)
	assert.False(t, first.Timestamp.IsZero())

	second := receive(t, ch)
	assert.Equal(t, CodeChunk, second.Type)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, "print(", second.Data["chunk"])
}

func TestBusTypeFilter(t *testing.T) {
	bus := NewBus(0)
	defer bus.Close()
	ch, cancel := bus.Subscribe(Diagnosis)
	defer cancel()

	bus.Emit(StepStarted, 1, "ignored")
	bus.Emit(Diagnosis, 1, "root cause")

	e := receive(t, ch)
	assert.Equal(t, Diagnosis, e.Type)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %v", extra.Type)
	default:
	}
}

func TestBusNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus(2)
	defer bus.Close()
	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			bus.Emit(CodeChunk, 0, "x")
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	stats := bus.Stats()
	assert.Equal(t, uint64(10), stats.Published)
	assert.Equal(t, uint64(8), stats.Dropped)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(0)
	defer bus.Close()
	ch, cancel := bus.Subscribe()

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel closed after unsubscribe")
	assert.Equal(t, 0, bus.Stats().Subscribers)

	bus.Emit(StepCompleted, 1, "after unsubscribe")
}

func TestBusClose(t *testing.T) {
	bus := NewBus(0)
	ch, cancel := bus.Subscribe()
	bus.Close()
	bus.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, lateCancel := bus.Subscribe()
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed bus yields a closed channel")

	bus.Emit(StepFailed, 1, "ignored")
}

func TestBusNil(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Emit(StepStarted, 1, "nil bus") })
}

func TestBusConcurrentPublishers(t *testing.T) {
	bus := NewBus(1000)
	defer bus.Close()
	ch, cancel := bus.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Emit(CodeChunk, 0, "x")
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ch, 500)
	assert.Zero(t, bus.Stats().Dropped)
}
