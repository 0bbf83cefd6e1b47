package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/event"
)

func TestNew(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	evt := event.New(event.GenerationFailed, "node-1",
		event.FailedPayload{Error: "boom", PartialChars: 12, Retryable: true},
		event.WithSession("sess-1"),
		event.WithTimestamp(ts),
	)

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, event.GenerationFailed, evt.Type)
	assert.Equal(t, "node-1", evt.NodeID)
	assert.Equal(t, "sess-1", evt.SessionID)
	assert.Equal(t, ts, evt.Timestamp)
	assert.JSONEq(t, `{"error":"boom","partialChars":12,"retryable":true}`, string(evt.PayloadBytes()))

	other := event.New(event.GenerationFailed, "node-1", nil, event.WithID("fixed"))
	assert.Equal(t, "fixed", other.ID)
	assert.Nil(t, other.PayloadBytes())
}

func TestType_Terminal(t *testing.T) {
	terminal := []event.Type{event.GenerationCompleted, event.GenerationFailed, event.GenerationAborted}
	for _, typ := range terminal {
		assert.True(t, typ.Terminal(), typ)
	}
	for _, typ := range []event.Type{event.GenerationStarted, event.GenerationToken, event.GenerationFlushed, event.MapPhase} {
		assert.False(t, typ.Terminal(), typ)
	}
}

func TestRecorder(t *testing.T) {
	rec := event.NewRecorder()
	ctx := context.Background()

	require.NoError(t, rec.Handle(ctx, event.New(event.GenerationStarted, "n", nil)))
	require.NoError(t, rec.Handle(ctx, event.New(event.GenerationAborted, "n", nil)))
	assert.Equal(t, []event.Type{event.GenerationStarted, event.GenerationAborted}, rec.Types())

	got, err := rec.WaitFor(ctx, event.GenerationAborted)
	require.NoError(t, err)
	assert.Equal(t, event.GenerationAborted, got.Type)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = rec.WaitFor(short, event.GenerationCompleted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
