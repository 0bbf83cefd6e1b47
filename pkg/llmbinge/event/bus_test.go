package event_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/event"
)

func TestBus_SubscribeByType(t *testing.T) {
	bus := event.NewBus(event.BusConfig{BufferSize: 10})
	defer bus.Close()

	var received atomic.Int32
	sub, err := bus.Subscribe([]event.Type{event.GenerationCompleted}, event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
		received.Add(1)
		return nil
	}))
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), event.New(event.GenerationCompleted, "n1", nil)))
	assert.Eventually(t, func() bool { return received.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), event.New(event.GenerationToken, "n1", nil)))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), received.Load())
}

func TestBus_SubscribeAllPreservesOrder(t *testing.T) {
	bus := event.NewBus(event.BusConfig{BufferSize: 64})
	defer bus.Close()

	rec := event.NewRecorder()
	_, err := bus.SubscribeAll(rec)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, event.New(event.GenerationStarted, "n1", nil)))
	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(ctx, event.New(event.GenerationToken, "n1", event.TokenPayload{Chars: i})))
	}
	require.NoError(t, bus.Publish(ctx, event.New(event.GenerationCompleted, "n1", nil)))

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = rec.WaitFor(waitCtx, event.GenerationCompleted)
	require.NoError(t, err)

	events := rec.Events()
	require.Len(t, events, 22)
	assert.Equal(t, event.GenerationStarted, events[0].Type)
	for i := 0; i < 20; i++ {
		assert.Equal(t, i, events[i+1].Payload.(event.TokenPayload).Chars)
	}
}

func TestBus_PauseResume(t *testing.T) {
	bus := event.NewBus(event.BusConfig{BufferSize: 10})
	defer bus.Close()

	var received atomic.Int32
	sub, err := bus.SubscribeAll(event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
		received.Add(1)
		return nil
	}))
	require.NoError(t, err)

	ctx := context.Background()
	sub.Pause()
	assert.True(t, sub.IsPaused())
	require.NoError(t, bus.Publish(ctx, event.New(event.MapPhase, "n", nil)))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), received.Load())

	sub.Resume()
	assert.False(t, sub.IsPaused())
	require.NoError(t, bus.Publish(ctx, event.New(event.MapPhase, "n", nil)))
	assert.Eventually(t, func() bool { return received.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := event.NewBus(event.BusConfig{})
	defer bus.Close()

	sub, err := bus.Subscribe([]event.Type{event.GenerationToken}, event.NewRecorder())
	require.NoError(t, err)
	assert.Equal(t, 1, bus.SubscriberCount())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount())

	assert.NoError(t, bus.Publish(context.Background(), event.New(event.GenerationToken, "n", nil)))
}

func TestBus_NonBlockingDrops(t *testing.T) {
	var dropped atomic.Int32
	gate := make(chan struct{})

	bus := event.NewBus(event.BusConfig{
		BufferSize:  1,
		NonBlocking: true,
		OnDrop: func(evt event.Event, subscriberID string) {
			dropped.Add(1)
		},
	})
	defer bus.Close()

	_, err := bus.SubscribeAll(event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
		<-gate
		return nil
	}))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(ctx, event.New(event.GenerationToken, "n", nil)))
	}
	close(gate)

	// One event is in the handler, one fits in the buffer.
	assert.GreaterOrEqual(t, dropped.Load(), int32(8))
}

func TestBus_OnError(t *testing.T) {
	var mu sync.Mutex
	var got []string

	bus := event.NewBus(event.BusConfig{
		OnError: func(evt event.Event, subscriberID string, err error) {
			mu.Lock()
			got = append(got, err.Error())
			mu.Unlock()
		},
	})
	defer bus.Close()

	_, err := bus.SubscribeAll(event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
		return errors.New("handler failed")
	}))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), event.New(event.GenerationFailed, "n", nil)))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "handler failed"
	}, time.Second, 5*time.Millisecond)
}

func TestBus_MaxSubscribers(t *testing.T) {
	bus := event.NewBus(event.BusConfig{MaxSubscribers: 1})
	defer bus.Close()

	_, err := bus.SubscribeAll(event.NewRecorder())
	require.NoError(t, err)

	_, err = bus.SubscribeAll(event.NewRecorder())
	assert.ErrorIs(t, err, event.ErrTooManySubscribers)
}

func TestBus_Closed(t *testing.T) {
	bus := event.NewBus(event.BusConfig{})
	sub, err := bus.SubscribeAll(event.NewRecorder())
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err = bus.Publish(context.Background(), event.New(event.GenerationStarted, "n", nil))
	assert.ErrorIs(t, err, event.ErrBusClosed)

	var pubErr *event.PublishError
	assert.ErrorAs(t, err, &pubErr)

	_, err = bus.SubscribeAll(event.NewRecorder())
	assert.ErrorIs(t, err, event.ErrBusClosed)

	assert.NotPanics(t, sub.Unsubscribe)
}

func TestBus_PublishRespectsContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)

	bus := event.NewBus(event.BusConfig{BufferSize: 1})
	defer bus.Close()

	_, err := bus.SubscribeAll(event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
		<-gate
		return nil
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var publishErr error
	for i := 0; i < 5 && publishErr == nil; i++ {
		publishErr = bus.Publish(ctx, event.New(event.GenerationToken, "n", nil))
	}
	assert.ErrorIs(t, publishErr, context.DeadlineExceeded)
}
