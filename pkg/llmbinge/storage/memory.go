package storage

import (
	"context"
	"sync"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

// MemoryStore keeps everything in process memory. Data is lost when the
// process exits. Sessions and nodes pass through the same JSON codec as the
// durable stores on the way in, so reads return what SQLite or Redis would,
// and are deep-copied on the way out.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]tree.Session
	nodes     map[string]tree.Node
	overrides []byte
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]tree.Session),
		nodes:    make(map[string]tree.Node),
	}
}

// Sessions implements Store.
func (m *MemoryStore) Sessions(ctx context.Context) ([]tree.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]tree.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}

// Session implements Store.
func (m *MemoryStore) Session(ctx context.Context, id string) (tree.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return tree.Session{}, ErrStoreClosed
	}
	s, ok := m.sessions[id]
	if !ok {
		return tree.Session{}, ErrNotFound
	}
	return s.Clone(), nil
}

// SaveSession implements Store.
func (m *MemoryStore) SaveSession(ctx context.Context, s tree.Session) error {
	stored, err := roundTripSession(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.sessions[s.ID] = stored
	return nil
}

// DeleteSession implements Store.
func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.sessions, id)
	return nil
}

// Node implements Store.
func (m *MemoryStore) Node(ctx context.Context, id string) (tree.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return tree.Node{}, ErrStoreClosed
	}
	n, ok := m.nodes[id]
	if !ok {
		return tree.Node{}, ErrNotFound
	}
	return cloneNode(n), nil
}

// NodesForSession implements Store.
func (m *MemoryStore) NodesForSession(ctx context.Context, sessionID string) ([]tree.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := []tree.Node{}
	for _, n := range m.nodes {
		if n.SessionID == sessionID {
			out = append(out, cloneNode(n))
		}
	}
	return out, nil
}

// SaveNode implements Store.
func (m *MemoryStore) SaveNode(ctx context.Context, n tree.Node) error {
	return m.SaveNodes(ctx, []tree.Node{n})
}

// SaveNodes implements Store.
func (m *MemoryStore) SaveNodes(ctx context.Context, nodes []tree.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	stored := make([]tree.Node, 0, len(nodes))
	for _, n := range nodes {
		rt, err := roundTripNode(n)
		if err != nil {
			return err
		}
		stored = append(stored, rt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	for _, n := range stored {
		m.nodes[n.ID] = n
	}
	return nil
}

// DeleteNode implements Store.
func (m *MemoryStore) DeleteNode(ctx context.Context, id string) error {
	return m.DeleteNodes(ctx, []string{id})
}

// DeleteNodes implements Store.
func (m *MemoryStore) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	for _, id := range ids {
		delete(m.nodes, id)
	}
	return nil
}

// ConfigOverrides implements Store.
func (m *MemoryStore) ConfigOverrides(ctx context.Context) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if m.overrides == nil {
		return nil, ErrNotFound
	}
	return decodeOverrides(m.overrides)
}

// SaveConfigOverrides implements Store.
// Overrides are kept in encoded form so the caller's map is never retained.
func (m *MemoryStore) SaveConfigOverrides(ctx context.Context, overrides map[string]any) error {
	data, err := encode("save config", configKey, overrides)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.overrides = data
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func roundTripNode(n tree.Node) (tree.Node, error) {
	data, err := encode("save node", n.ID, n)
	if err != nil {
		return tree.Node{}, err
	}
	return decodeNode(n.ID, data)
}

func roundTripSession(s tree.Session) (tree.Session, error) {
	data, err := encode("save session", s.ID, s)
	if err != nil {
		return tree.Session{}, err
	}
	return decodeSession(s.ID, data)
}

// cloneNode copies n including nested metadata values. Stored metadata only
// holds JSON shapes.
func cloneNode(n tree.Node) tree.Node {
	c := n.Clone()
	if n.Metadata != nil {
		c.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = deepCopy(v)
		}
	}
	return c
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
