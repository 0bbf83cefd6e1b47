package generate

import (
	"context"
	"sync"
	"time"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/agents"
	llmerrors "github.com/randalmurphal/llmbinge/pkg/llmbinge/errors"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/event"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/extract"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/llm"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/observability"
)

const kindMap = "map"

// MapOrchestrator runs two-stage map generations: list topics, then lay
// them out. The layout JSON becomes the node's content and the topic list
// its "topics" metadata.
type MapOrchestrator struct {
	client llm.Client
	cfg    llm.Config
	tree   Tree
	settings

	mu     sync.Mutex
	active map[string]*MapHandle
}

// NewMapOrchestrator creates a map orchestrator writing to t. Debounce
// options have no effect; a map is persisted once.
func NewMapOrchestrator(client llm.Client, cfg llm.Config, t Tree, opts ...Option) *MapOrchestrator {
	return &MapOrchestrator{
		client:   client,
		cfg:      cfg,
		tree:     t,
		settings: newSettings(opts),
		active:   make(map[string]*MapHandle),
	}
}

// Generate starts a map around topic on nodeID, aborting any map
// generation already running for the node.
func (o *MapOrchestrator) Generate(ctx context.Context, nodeID, topic string) *MapHandle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &MapHandle{
		nodeID:  nodeID,
		orch:    o,
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
		loading: true,
	}
	if node, ok := o.tree.Node(nodeID); ok {
		h.sessionID = node.SessionID
	}

	o.mu.Lock()
	prev := o.active[nodeID]
	o.active[nodeID] = h
	o.mu.Unlock()

	if prev != nil {
		prev.Abort()
	}

	observability.LogGenerationStart(o.logger, nodeID, kindMap, topic)
	o.publish(event.GenerationStarted, nodeID, h.sessionID, event.StartedPayload{Kind: kindMap, Topic: topic})

	go h.run(topic)
	return h
}

// Active returns the running map generation for nodeID, or nil.
func (o *MapOrchestrator) Active(nodeID string) *MapHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[nodeID]
}

func (o *MapOrchestrator) release(h *MapHandle) {
	o.mu.Lock()
	if o.active[h.nodeID] == h {
		delete(o.active, h.nodeID)
	}
	o.mu.Unlock()
}

// MapHandle tracks one map generation.
type MapHandle struct {
	nodeID    string
	sessionID string
	orch      *MapOrchestrator
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	started   time.Time

	mu      sync.Mutex
	phase   Phase
	loading bool
	aborted bool
	err     error
	topics  []string
	layout  *extract.MapLayout
	chars   int
}

// NodeID returns the node being generated.
func (h *MapHandle) NodeID() string { return h.nodeID }

// Phase returns the current phase. A failed or aborted generation is back
// at PhaseIdle.
func (h *MapHandle) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// Loading reports whether the generation is still running.
func (h *MapHandle) Loading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading
}

// Err returns the failure of either stage, or nil.
func (h *MapHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Topics returns the topics produced by the first stage.
func (h *MapHandle) Topics() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.topics...)
}

// Layout returns the finished layout, or false before PhaseDone.
func (h *MapHandle) Layout() (extract.MapLayout, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.layout == nil {
		return extract.MapLayout{}, false
	}
	return *h.layout, true
}

// Done is closed when the generation has stopped.
func (h *MapHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the generation stops or ctx ends, and returns its error.
func (h *MapHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearError dismisses the error.
func (h *MapHandle) ClearError() {
	h.mu.Lock()
	h.err = nil
	h.mu.Unlock()
}

// Abort cancels the generation. Neither stage's outcome is reported
// afterwards.
func (h *MapHandle) Abort() {
	h.mu.Lock()
	if !h.loading {
		h.mu.Unlock()
		return
	}
	h.aborted = true
	h.loading = false
	h.phase = PhaseIdle
	h.cancel()
	h.mu.Unlock()

	o := h.orch
	o.release(h)
	o.metrics.RecordGeneration(context.WithoutCancel(h.ctx), kindMap, StateAborted.String(), time.Since(h.started))
	observability.LogGenerationAborted(o.logger, h.nodeID)
	o.publish(event.GenerationAborted, h.nodeID, h.sessionID, nil)
}

func (h *MapHandle) run(topic string) {
	defer close(h.done)
	o := h.orch

	ctx, span := o.spans.StartGenerationSpan(h.ctx, kindMap, h.nodeID)
	err := h.stages(ctx, topic)
	o.spans.EndSpanWithError(span, err)

	h.mu.Lock()
	if h.aborted {
		h.mu.Unlock()
		return
	}
	if err != nil && llmerrors.IsCanceled(err) && h.ctx.Err() != nil {
		// The caller's context ended; treat it like Abort.
		h.mu.Unlock()
		h.Abort()
		return
	}
	h.loading = false
	if err != nil {
		h.phase = PhaseIdle
		h.err = err
	} else {
		h.phase = PhaseDone
	}
	h.mu.Unlock()

	o.release(h)
	outcome := StateDone
	if err != nil {
		outcome = StateErrored
	}
	o.metrics.RecordGeneration(context.WithoutCancel(h.ctx), kindMap, outcome.String(), time.Since(h.started))

	if err != nil {
		observability.LogGenerationError(o.logger, h.nodeID, err, 0)
		o.publish(event.GenerationFailed, h.nodeID, h.sessionID, event.FailedPayload{
			Error:     err.Error(),
			Retryable: llmerrors.Retryable(err),
		})
		return
	}
	h.mu.Lock()
	chars := h.chars
	h.mu.Unlock()

	durationMs := float64(time.Since(h.started).Microseconds()) / 1000
	observability.LogGenerationComplete(o.logger, h.nodeID, durationMs, 0, chars)
	o.publish(event.GenerationCompleted, h.nodeID, h.sessionID, event.CompletedPayload{
		Chars:      chars,
		DurationMs: durationMs,
	})
}

// stages runs topics then layout and writes the result to the node.
func (h *MapHandle) stages(ctx context.Context, topic string) error {
	o := h.orch

	if !h.enter(PhaseTopics) {
		return nil
	}
	stageCtx, span := o.spans.StartStageSpan(ctx, PhaseTopics.String())
	topics, err := agents.MapTopics(stageCtx, o.client, o.cfg, topic)
	o.spans.EndSpanWithError(span, err)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.topics = topics.Topics
	h.mu.Unlock()

	if !h.enter(PhaseLayout) {
		return nil
	}
	stageCtx, span = o.spans.StartStageSpan(ctx, PhaseLayout.String())
	layout, err := agents.MapLayout(stageCtx, o.client, o.cfg, topics.Topics)
	o.spans.EndSpanWithError(span, err)
	if err != nil {
		return err
	}

	content, err := layout.Layout.JSON()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.aborted {
		return nil
	}
	h.layout = &layout.Layout
	o.tree.UpdateNodeContent(h.nodeID, content)
	o.tree.UpdateNodeMetadata(h.nodeID, map[string]any{"topics": topics.Topics})

	h.chars = len(content)

	err = o.tree.PersistNode(context.WithoutCancel(ctx), h.nodeID)
	o.metrics.RecordFlush(ctx, len(content), err)
	if err != nil {
		observability.LogFlushError(o.logger, h.nodeID, err)
		return err
	}
	observability.LogFlush(o.logger, h.nodeID, len(content))
	return nil
}

// enter moves to phase p unless the generation was aborted.
func (h *MapHandle) enter(p Phase) bool {
	h.mu.Lock()
	if h.aborted {
		h.mu.Unlock()
		return false
	}
	h.phase = p
	h.mu.Unlock()

	o := h.orch
	observability.LogMapPhase(o.logger, h.nodeID, p.String())
	o.publish(event.MapPhase, h.nodeID, h.sessionID, event.PhasePayload{Phase: p.String()})
	return true
}
