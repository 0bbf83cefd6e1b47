package generate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/event"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/llm"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/session"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/storage"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

var testConfig = llm.Config{
	Endpoint:    "http://localhost:11434/v1",
	Model:       "test",
	Temperature: 0.7,
	MaxTokens:   512,
	TopP:        1,
}

// scriptedClient runs fn for every Stream call.
type scriptedClient func(ctx context.Context, messages []llm.Message, cb llm.Callbacks)

func (f scriptedClient) Stream(ctx context.Context, _ llm.Config, messages []llm.Message, cb llm.Callbacks) {
	f(ctx, messages, cb)
}

// countingTree records every persisted snapshot.
type countingTree struct {
	*session.Manager

	mu        sync.Mutex
	snapshots []string
}

func (c *countingTree) PersistNode(ctx context.Context, id string) error {
	node, _ := c.Node(id)
	c.mu.Lock()
	c.snapshots = append(c.snapshots, node.Content)
	c.mu.Unlock()
	return c.Manager.PersistNode(ctx, id)
}

func (c *countingTree) persists() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.snapshots...)
}

type fixture struct {
	store   *storage.MemoryStore
	tree    *countingTree
	session tree.Session
	root    tree.Node
}

func newFixture(t *testing.T, rootType tree.NodeType) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	mgr := session.NewManager(store)
	s, root, err := mgr.CreateSession(context.Background(), "Octopus", "Octopus", rootType)
	require.NoError(t, err)

	return &fixture{
		store:   store,
		tree:    &countingTree{Manager: mgr},
		session: s,
		root:    root,
	}
}

func (f *fixture) content(t *testing.T) string {
	t.Helper()
	n, ok := f.tree.Node(f.root.ID)
	require.True(t, ok)
	return n.Content
}

func (f *fixture) stored(t *testing.T) tree.Node {
	t.Helper()
	n, err := f.store.Node(context.Background(), f.root.ID)
	require.NoError(t, err)
	return n
}

func newRecordingBus(t *testing.T) (*event.LocalBus, *event.Recorder) {
	t.Helper()
	bus := event.NewBus(event.BusConfig{BufferSize: 1024})
	t.Cleanup(func() { bus.Close() })
	rec := event.NewRecorder()
	_, err := bus.SubscribeAll(rec)
	require.NoError(t, err)
	return bus, rec
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func countType(events []event.Event, typ event.Type) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}
