package generate

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/agents"
	llmerrors "github.com/randalmurphal/llmbinge/pkg/llmbinge/errors"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/event"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/llm"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/observability"
)

const kindArticle = "article"

// Orchestrator runs article generations, one per node at a time.
type Orchestrator struct {
	client llm.Client
	cfg    llm.Config
	tree   Tree
	settings

	mu     sync.Mutex
	active map[string]*Handle
}

// NewOrchestrator creates an orchestrator writing to t.
func NewOrchestrator(client llm.Client, cfg llm.Config, t Tree, opts ...Option) *Orchestrator {
	return &Orchestrator{
		client:   client,
		cfg:      cfg,
		tree:     t,
		settings: newSettings(opts),
		active:   make(map[string]*Handle),
	}
}

// Generate starts an article about topic on nodeID, optionally focused on
// aspect. Any generation already running for the node is aborted first and
// the node's content is cleared. Generate returns immediately; the handle
// reports progress.
func (o *Orchestrator) Generate(ctx context.Context, nodeID, topic, aspect string) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		nodeID: nodeID,
		orch:   o,
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateGenerating,
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

	o.tree.UpdateNodeContent(nodeID, "")
	h.started = time.Now()
	observability.LogGenerationStart(o.logger, nodeID, kindArticle, topic)
	o.publish(event.GenerationStarted, nodeID, h.sessionID, event.StartedPayload{
		Kind: kindArticle, Topic: topic, Aspect: aspect,
	})

	go h.run(agents.ArticleInput{Topic: topic, Aspect: aspect})
	return h
}

// Active returns the running generation for nodeID, or nil.
func (o *Orchestrator) Active(nodeID string) *Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[nodeID]
}

// Abort aborts the running generation for nodeID, if any.
func (o *Orchestrator) Abort(nodeID string) {
	if h := o.Active(nodeID); h != nil {
		h.Abort()
	}
}

// AbortAll aborts every running generation.
func (o *Orchestrator) AbortAll() {
	o.mu.Lock()
	handles := make([]*Handle, 0, len(o.active))
	for _, h := range o.active {
		handles = append(handles, h)
	}
	o.mu.Unlock()

	for _, h := range handles {
		h.Abort()
	}
}

func (o *Orchestrator) release(h *Handle) {
	o.mu.Lock()
	if o.active[h.nodeID] == h {
		delete(o.active, h.nodeID)
	}
	o.mu.Unlock()
}

// Handle tracks one article generation.
type Handle struct {
	nodeID    string
	sessionID string
	orch      *Orchestrator
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	started   time.Time

	// mu guards the fields below and is held while a callback mutates the
	// node, so Abort waits for an in-flight mutation to finish.
	mu      sync.Mutex
	state   State
	err     error
	content strings.Builder
	tokens  int
	pending int
	timer   *time.Timer
	span    trace.Span

	// flushMu serializes persistence so the final flush lands last.
	flushMu sync.Mutex
}

// NodeID returns the node being generated.
func (h *Handle) NodeID() string { return h.nodeID }

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the error of an errored generation, or nil.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Content returns the text received so far.
func (h *Handle) Content() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.content.String()
}

// Done is closed when the underlying stream has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the stream has returned or ctx ends, and returns the
// generation error. An aborted generation returns nil.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearError dismisses the error of an errored generation. The state and
// the partial content are kept.
func (h *Handle) ClearError() {
	h.mu.Lock()
	h.err = nil
	h.mu.Unlock()
}

// Abort cancels the generation. No callback of the cancelled stream has
// any effect afterwards. Aborting a finished generation does nothing.
func (h *Handle) Abort() {
	h.mu.Lock()
	if h.state != StateGenerating {
		h.mu.Unlock()
		return
	}
	h.state = StateAborted
	h.stopTimer()
	h.cancel()
	h.mu.Unlock()

	h.finish(event.GenerationAborted, nil, nil)
}

func (h *Handle) run(in agents.ArticleInput) {
	defer close(h.done)
	o := h.orch

	ctx, span := o.spans.StartGenerationSpan(h.ctx, kindArticle, h.nodeID)
	h.mu.Lock()
	if h.state != StateGenerating {
		// Aborted before the stream started; finish has already run.
		h.mu.Unlock()
		o.spans.EndSpanWithError(span, nil)
		return
	}
	h.span = span
	h.mu.Unlock()

	err := agents.Article(ctx, o.client, o.cfg, in, llm.Callbacks{
		OnToken:    h.onToken,
		OnComplete: h.onComplete,
		OnError:    h.onError,
	})
	if err != nil {
		h.onError(err)
	}

	// A stream that returns without a terminal callback was cancelled by
	// the caller's context or misbehaved.
	h.mu.Lock()
	if h.state != StateGenerating {
		h.mu.Unlock()
		return
	}
	if h.ctx.Err() != nil {
		h.state = StateAborted
		h.stopTimer()
		h.mu.Unlock()
		h.finish(event.GenerationAborted, nil, nil)
		return
	}
	h.mu.Unlock()
	h.onError(&llmerrors.StreamError{Message: "stream ended without completion"})
}

func (h *Handle) onToken(tok string) {
	o := h.orch
	h.mu.Lock()
	if h.state != StateGenerating {
		h.mu.Unlock()
		return
	}

	h.content.WriteString(tok)
	h.tokens++
	h.pending++
	o.tree.AppendNodeContent(h.nodeID, tok)
	chars := h.content.Len()

	force := o.debounce <= 0 || (o.maxPending > 0 && h.pending >= o.maxPending)
	if force {
		h.stopTimer()
		h.pending = 0
	} else if h.timer == nil {
		h.timer = time.AfterFunc(o.debounce, h.onTimer)
	}
	h.mu.Unlock()

	o.publish(event.GenerationToken, h.nodeID, h.sessionID, event.TokenPayload{Token: tok, Chars: chars})
	if force {
		h.flush()
	}
}

func (h *Handle) onTimer() {
	h.mu.Lock()
	if h.state != StateGenerating {
		h.mu.Unlock()
		return
	}
	h.timer = nil
	h.pending = 0
	h.mu.Unlock()

	h.flush()
}

func (h *Handle) onComplete(full string) {
	o := h.orch
	h.mu.Lock()
	if h.state != StateGenerating {
		h.mu.Unlock()
		return
	}
	h.stopTimer()
	h.content.Reset()
	h.content.WriteString(full)
	o.tree.UpdateNodeContent(h.nodeID, full)
	h.state = StateDone
	h.mu.Unlock()

	h.flush()
	h.finish(event.GenerationCompleted, nil, event.CompletedPayload{
		Chars:      len(full),
		DurationMs: float64(time.Since(h.started).Microseconds()) / 1000,
	})
}

func (h *Handle) onError(err error) {
	o := h.orch
	h.mu.Lock()
	if h.state != StateGenerating {
		h.mu.Unlock()
		return
	}
	if llmerrors.IsCanceled(err) && h.ctx.Err() != nil {
		// Cancellation is not an error; run records the abort.
		h.mu.Unlock()
		return
	}
	h.stopTimer()

	partial := h.content.String()
	if partial == "" {
		partial = llmerrors.Partial(err)
	}
	if partial != "" {
		h.content.Reset()
		h.content.WriteString(partial)
		o.tree.UpdateNodeContent(h.nodeID, partial)
	}
	h.state = StateErrored
	h.err = err
	h.mu.Unlock()

	if partial != "" {
		h.flush()
	}
	observability.LogGenerationError(o.logger, h.nodeID, err, len(partial))
	h.finish(event.GenerationFailed, err, event.FailedPayload{
		Error:        err.Error(),
		PartialChars: len(partial),
		Retryable:    llmerrors.Retryable(err),
	})
}

// finish records the outcome of a generation that has just reached a
// terminal state. It runs exactly once per handle.
func (h *Handle) finish(t event.Type, err error, payload any) {
	o := h.orch
	o.release(h)

	h.mu.Lock()
	state, tokens, span := h.state, h.tokens, h.span
	h.mu.Unlock()

	ctx := context.WithoutCancel(h.ctx)
	elapsed := time.Since(h.started)
	o.metrics.RecordGeneration(ctx, kindArticle, state.String(), elapsed)
	o.metrics.RecordTokens(ctx, kindArticle, tokens)

	if span != nil {
		span.SetAttributes(attribute.Int("tokens", tokens), attribute.String("outcome", state.String()))
		o.spans.EndSpanWithError(span, err)
	}

	switch t {
	case event.GenerationCompleted:
		observability.LogGenerationComplete(o.logger, h.nodeID, float64(elapsed.Microseconds())/1000, tokens, len(h.Content()))
	case event.GenerationAborted:
		observability.LogGenerationAborted(o.logger, h.nodeID)
	}
	o.publish(t, h.nodeID, h.sessionID, payload)
}

// flush persists the node's current content. Flushes of one handle never
// overlap, so the last one to run writes the newest content.
func (h *Handle) flush() {
	o := h.orch
	h.flushMu.Lock()
	defer h.flushMu.Unlock()

	var size int
	if node, ok := o.tree.Node(h.nodeID); ok {
		size = len(node.Content)
	}

	err := o.tree.PersistNode(context.WithoutCancel(h.ctx), h.nodeID)
	o.metrics.RecordFlush(h.ctx, size, err)

	payload := event.FlushedPayload{Chars: size}
	if err != nil {
		observability.LogFlushError(o.logger, h.nodeID, err)
		payload.Error = err.Error()
	} else {
		observability.LogFlush(o.logger, h.nodeID, size)
	}
	o.publish(event.GenerationFlushed, h.nodeID, h.sessionID, payload)
}

// stopTimer cancels a pending debounced flush. Caller holds h.mu.
func (h *Handle) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}
