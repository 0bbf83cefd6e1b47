package generate_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmerrors "github.com/randalmurphal/llmbinge/pkg/llmbinge/errors"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/event"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/generate"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/llm"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

func TestGenerate_Completes(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	f.tree.UpdateNodeContent(f.root.ID, "stale text")

	bus, rec := newRecordingBus(t)
	orch := generate.NewOrchestrator(llm.NewMockClient("Octopuses have three hearts."), testConfig, f.tree,
		generate.WithEventBus(bus))

	h := orch.Generate(context.Background(), f.root.ID, "Octopus", "")
	require.NoError(t, h.Wait(waitCtx(t)))

	assert.Equal(t, generate.StateDone, h.State())
	assert.Equal(t, "Octopuses have three hearts.", h.Content())
	assert.Equal(t, "Octopuses have three hearts.", f.content(t))
	assert.Equal(t, "Octopuses have three hearts.", f.stored(t).Content)
	assert.Nil(t, orch.Active(f.root.ID))

	_, err := rec.WaitFor(waitCtx(t), event.GenerationCompleted)
	require.NoError(t, err)
	types := rec.Types()
	assert.Equal(t, event.GenerationStarted, types[0])
	assert.Equal(t, event.GenerationCompleted, types[len(types)-1])
	assert.Equal(t, 4, countType(rec.Events(), event.GenerationToken))
}

func TestGenerate_AspectInPrompt(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	mock := llm.NewMockClient("ok")
	orch := generate.NewOrchestrator(mock, testConfig, f.tree)

	h := orch.Generate(context.Background(), f.root.ID, "Octopus", "Camouflage")
	require.NoError(t, h.Wait(waitCtx(t)))
	assert.Contains(t, mock.LastCall().Messages[0].Content, "**Camouflage**")
}

// slowTopicClient streams the quoted topic of the prompt one word at a
// time until cancelled.
func slowTopicClient(delay time.Duration) scriptedClient {
	return func(ctx context.Context, messages []llm.Message, cb llm.Callbacks) {
		text := "first run text"
		if strings.Contains(messages[0].Content, `"Second"`) {
			text = "second run text"
		}
		var sent strings.Builder
		for _, word := range strings.SplitAfter(text, " ") {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			sent.WriteString(word)
			cb.OnToken(word)
		}
		cb.OnComplete(sent.String())
	}
}

func TestGenerate_SecondCallAbortsFirst(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	bus, rec := newRecordingBus(t)
	orch := generate.NewOrchestrator(slowTopicClient(20*time.Millisecond), testConfig, f.tree,
		generate.WithEventBus(bus))

	ctx := context.Background()
	first := orch.Generate(ctx, f.root.ID, "First", "")
	time.Sleep(30 * time.Millisecond)
	second := orch.Generate(ctx, f.root.ID, "Second", "")

	assert.Equal(t, generate.StateAborted, first.State())
	require.NoError(t, first.Wait(waitCtx(t)))
	require.NoError(t, second.Wait(waitCtx(t)))

	assert.Equal(t, generate.StateAborted, first.State())
	assert.Equal(t, generate.StateDone, second.State())
	assert.Equal(t, "second run text", f.content(t))
	assert.Equal(t, "second run text", f.stored(t).Content)

	_, err := rec.WaitFor(waitCtx(t), event.GenerationCompleted)
	require.NoError(t, err)
	events := rec.Events()
	assert.Equal(t, 1, countType(events, event.GenerationCompleted))
	assert.Equal(t, 1, countType(events, event.GenerationAborted))
	assert.Equal(t, 0, countType(events, event.GenerationFailed))
}

func TestGenerate_AbortSuppressesLateCallbacks(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)

	started := make(chan struct{})
	// A misbehaving client that keeps calling back after cancellation.
	client := scriptedClient(func(ctx context.Context, _ []llm.Message, cb llm.Callbacks) {
		cb.OnToken("early ")
		close(started)
		<-ctx.Done()
		cb.OnToken("late")
		cb.OnComplete("early late")
		cb.OnError(&llmerrors.StreamError{Message: "late", Partial: "late"})
	})
	orch := generate.NewOrchestrator(client, testConfig, f.tree, generate.WithDebounce(time.Hour))

	h := orch.Generate(context.Background(), f.root.ID, "Octopus", "")
	<-started
	h.Abort()
	h.Abort()
	require.NoError(t, h.Wait(waitCtx(t)))

	assert.Equal(t, generate.StateAborted, h.State())
	assert.NoError(t, h.Err())
	assert.Equal(t, "early ", f.content(t))
	assert.Empty(t, f.tree.persists(), "abort cancels the pending flush")
}

func TestGenerate_DebouncedFlush(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)

	release := make(chan struct{})
	client := scriptedClient(func(ctx context.Context, _ []llm.Message, cb llm.Callbacks) {
		for i := 0; i < 10; i++ {
			cb.OnToken("w ")
		}
		<-release
		cb.OnToken("end")
		cb.OnComplete(strings.Repeat("w ", 10) + "end")
	})
	orch := generate.NewOrchestrator(client, testConfig, f.tree, generate.WithDebounce(50*time.Millisecond))

	h := orch.Generate(context.Background(), f.root.ID, "Octopus", "")

	// Ten tokens inside one window coalesce into a single flush.
	require.Eventually(t, func() bool { return len(f.tree.persists()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{strings.Repeat("w ", 10)}, f.tree.persists())
	assert.Equal(t, strings.Repeat("w ", 10), f.stored(t).Content)

	close(release)
	require.NoError(t, h.Wait(waitCtx(t)))

	snapshots := f.tree.persists()
	require.Len(t, snapshots, 2)
	assert.Equal(t, strings.Repeat("w ", 10)+"end", snapshots[1])
	assert.Equal(t, strings.Repeat("w ", 10)+"end", f.stored(t).Content)
}

func TestGenerate_MaxPendingTokensForcesFlush(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)

	release := make(chan struct{})
	client := scriptedClient(func(ctx context.Context, _ []llm.Message, cb llm.Callbacks) {
		for i := 0; i < 7; i++ {
			cb.OnToken("t")
		}
		<-release
		cb.OnComplete("ttttttt")
	})
	orch := generate.NewOrchestrator(client, testConfig, f.tree,
		generate.WithDebounce(time.Hour),
		generate.WithMaxPendingTokens(3),
	)

	h := orch.Generate(context.Background(), f.root.ID, "Octopus", "")
	require.Eventually(t, func() bool { return len(f.tree.persists()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"ttt", "tttttt"}, f.tree.persists())

	close(release)
	require.NoError(t, h.Wait(waitCtx(t)))
	assert.Equal(t, []string{"ttt", "tttttt", "ttttttt"}, f.tree.persists())
}

func TestGenerate_ZeroDebounceFlushesEveryToken(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	orch := generate.NewOrchestrator(llm.NewMockClient("a b c"), testConfig, f.tree, generate.WithDebounce(0))

	h := orch.Generate(context.Background(), f.root.ID, "Octopus", "")
	require.NoError(t, h.Wait(waitCtx(t)))
	assert.Equal(t, []string{"a ", "a b ", "a b c", "a b c"}, f.tree.persists())
}

func TestGenerate_ErrorKeepsPartial(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	bus, rec := newRecordingBus(t)
	orch := generate.NewOrchestrator(llm.NewMockClient("one two three four").WithFailAfter(2), testConfig, f.tree,
		generate.WithEventBus(bus), generate.WithDebounce(time.Hour))

	h := orch.Generate(context.Background(), f.root.ID, "Octopus", "")
	err := h.Wait(waitCtx(t))
	require.Error(t, err)

	assert.Equal(t, generate.StateErrored, h.State())
	assert.Equal(t, llmerrors.KindStream, llmerrors.Classify(err))
	assert.Equal(t, "one two ", f.content(t))
	assert.Equal(t, "one two ", f.stored(t).Content)

	failed, err := rec.WaitFor(waitCtx(t), event.GenerationFailed)
	require.NoError(t, err)
	payload := failed.Payload.(event.FailedPayload)
	assert.Equal(t, len("one two "), payload.PartialChars)
	assert.True(t, payload.Retryable)

	h.ClearError()
	assert.NoError(t, h.Err())
	assert.Equal(t, generate.StateErrored, h.State())
}

func TestGenerate_ErrorUsesStreamPartial(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	client := scriptedClient(func(ctx context.Context, _ []llm.Message, cb llm.Callbacks) {
		cb.OnError(&llmerrors.StreamError{Message: "connection reset", Partial: "salvaged"})
	})
	orch := generate.NewOrchestrator(client, testConfig, f.tree)

	h := orch.Generate(context.Background(), f.root.ID, "Octopus", "")
	require.Error(t, h.Wait(waitCtx(t)))
	assert.Equal(t, "salvaged", f.content(t))
	assert.Equal(t, "salvaged", f.stored(t).Content)
}

func TestGenerate_ErrorWithoutPartialSkipsPersist(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	client := llm.NewMockClient("x").WithError(&llmerrors.TransportError{StatusCode: 401, Body: "bad key"})
	orch := generate.NewOrchestrator(client, testConfig, f.tree)

	h := orch.Generate(context.Background(), f.root.ID, "Octopus", "")
	err := h.Wait(waitCtx(t))
	require.Error(t, err)
	assert.False(t, llmerrors.Retryable(err))
	assert.Empty(t, f.tree.persists())
}

func TestGenerate_StreamWithoutTerminalCallback(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	client := scriptedClient(func(ctx context.Context, _ []llm.Message, cb llm.Callbacks) {
		cb.OnToken("dangling")
	})
	orch := generate.NewOrchestrator(client, testConfig, f.tree)

	h := orch.Generate(context.Background(), f.root.ID, "Octopus", "")
	err := h.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Equal(t, llmerrors.KindStream, llmerrors.Classify(err))
	assert.Equal(t, "dangling", f.stored(t).Content)
}

func TestGenerate_ParentContextCancelled(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	orch := generate.NewOrchestrator(slowTopicClient(50*time.Millisecond), testConfig, f.tree)

	ctx, cancel := context.WithCancel(context.Background())
	h := orch.Generate(ctx, f.root.ID, "Octopus", "")
	cancel()

	require.NoError(t, h.Wait(waitCtx(t)))
	assert.Equal(t, generate.StateAborted, h.State())
}

func TestOrchestrator_AbortAll(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	child, err := f.tree.AddNode(context.Background(), tree.NodeFields{
		ParentID: f.root.ID, SessionID: f.session.ID, Title: "Ink",
	})
	require.NoError(t, err)

	orch := generate.NewOrchestrator(slowTopicClient(50*time.Millisecond), testConfig, f.tree)
	ctx := context.Background()
	a := orch.Generate(ctx, f.root.ID, "Octopus", "")
	b := orch.Generate(ctx, child.ID, "Ink", "")
	assert.Same(t, b, orch.Active(child.ID))

	orch.AbortAll()
	require.NoError(t, a.Wait(waitCtx(t)))
	require.NoError(t, b.Wait(waitCtx(t)))
	assert.Equal(t, generate.StateAborted, a.State())
	assert.Equal(t, generate.StateAborted, b.State())
	assert.Nil(t, orch.Active(f.root.ID))

	orch.Abort("unknown")
}

func TestGenerate_ConcurrentNodes(t *testing.T) {
	f := newFixture(t, tree.TypeArticle)
	orch := generate.NewOrchestrator(llm.NewMockClient("alpha beta gamma"), testConfig, f.tree,
		generate.WithDebounce(time.Millisecond))

	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		n, err := f.tree.AddNode(ctx, tree.NodeFields{ParentID: f.root.ID, SessionID: f.session.ID, Title: "n"})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			h := orch.Generate(ctx, id, "Octopus", "")
			assert.NoError(t, h.Wait(waitCtx(t)))
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		n, err := f.store.Node(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "alpha beta gamma", n.Content)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", generate.StateIdle.String())
	assert.Equal(t, "generating", generate.StateGenerating.String())
	assert.Equal(t, "done", generate.StateDone.String())
	assert.Equal(t, "errored", generate.StateErrored.String())
	assert.Equal(t, "aborted", generate.StateAborted.String())
	assert.True(t, generate.StateAborted.Terminal())
	assert.False(t, generate.StateGenerating.Terminal())
	assert.Equal(t, "layout", generate.PhaseLayout.String())
}
