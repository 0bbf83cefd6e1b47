package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/observability"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/storage"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

// ErrUnknownNodeType is returned by CreateSession for an unsupported root type.
var ErrUnknownNodeType = errors.New("unknown node type")

// Manager owns sessions and the current session's nodes.
// It is safe for concurrent use.
type Manager struct {
	store   storage.Store
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	now     func() time.Time

	// writeMu orders node saves against deletes, so a save that read the
	// node before a delete cannot land after it. Taken before mu.
	writeMu sync.Mutex

	mu        sync.Mutex
	sessions  []tree.Session
	currentID string
	nodes     tree.Nodes
	loading   bool
	loads     map[*loadToken]struct{}
}

// NewManager creates a manager backed by store.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		metrics: observability.NoopMetrics{},
		now:     tree.Now,
		nodes:   tree.Nodes{},
		loads:   make(map[*loadToken]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadSessions replaces the session list with the stored sessions, newest
// UpdatedAt first. If a session is deleted while the load is in flight the
// result is discarded.
func (m *Manager) LoadSessions(ctx context.Context) error {
	token := m.beginLoad()
	defer m.endLoad(token)

	var sessions []tree.Session
	err := m.track(ctx, "load_sessions", "", func() error {
		var err error
		sessions, err = m.store.Sessions(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	sortByUpdated(sessions)

	m.mu.Lock()
	defer m.mu.Unlock()
	if token.cancelled() {
		return nil
	}
	m.sessions = sessions
	return nil
}

// LoadSession makes sessionID current and loads its nodes. The session
// record and its nodes are fetched concurrently. A session missing from the
// list is appended unless a delete happened while loading. If another
// LoadSession for a different session started meanwhile, this result is
// dropped.
func (m *Manager) LoadSession(ctx context.Context, sessionID string) error {
	token := m.beginLoad()
	defer m.endLoad(token)

	m.mu.Lock()
	m.loading = true
	m.currentID = sessionID
	m.mu.Unlock()

	var (
		session  tree.Session
		found    bool
		nodeList []tree.Node
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.track(gctx, "load_session", sessionID, func() error {
			s, err := m.store.Session(gctx, sessionID)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			session, found = s, true
			return nil
		})
	})
	g.Go(func() error {
		return m.track(gctx, "load_nodes", sessionID, func() error {
			var err error
			nodeList, err = m.store.NodesForSession(gctx, sessionID)
			return err
		})
	})
	err := g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentID != sessionID {
		return err
	}
	m.loading = false
	if err != nil {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}

	nodes := make(tree.Nodes, len(nodeList))
	for _, n := range nodeList {
		nodes[n.ID] = n
	}
	m.nodes = nodes

	if token.cancelled() || !found {
		return nil
	}
	if !slices.ContainsFunc(m.sessions, func(s tree.Session) bool { return s.ID == sessionID }) {
		m.sessions = append(m.sessions, session)
	}
	return nil
}

// CreateSession stores a new session with a single root node and makes it
// current. nodeType defaults to article.
func (m *Manager) CreateSession(ctx context.Context, title, rootTitle string, nodeType tree.NodeType) (tree.Session, tree.Node, error) {
	if nodeType == "" {
		nodeType = tree.TypeArticle
	}
	if !nodeType.Valid() {
		return tree.Session{}, tree.Node{}, fmt.Errorf("%w: %q", ErrUnknownNodeType, nodeType)
	}

	session := tree.NewSession(title)
	now := m.now()
	session.CreatedAt, session.UpdatedAt = now, now

	root := tree.NewNode(tree.NodeFields{
		Type:      nodeType,
		SessionID: session.ID,
		Title:     rootTitle,
	})
	root.CreatedAt = now
	session.RootNodeIDs = []string{root.ID}

	if err := m.track(ctx, "save_session", session.ID, func() error {
		return m.store.SaveSession(ctx, session)
	}); err != nil {
		return tree.Session{}, tree.Node{}, fmt.Errorf("create session: %w", err)
	}
	if err := m.track(ctx, "save_node", root.ID, func() error {
		return m.store.SaveNode(ctx, root)
	}); err != nil {
		return tree.Session{}, tree.Node{}, fmt.Errorf("create session root: %w", err)
	}

	m.mu.Lock()
	m.sessions = append([]tree.Session{session.Clone()}, m.sessions...)
	m.currentID = session.ID
	m.nodes = tree.Insert(nil, root)
	m.mu.Unlock()

	return session, root.Clone(), nil
}

// DeleteSession removes a session and every node stored for it, and
// invalidates all loads in flight.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	for token := range m.loads {
		token.cancel()
	}
	m.mu.Unlock()

	var stored []tree.Node
	if err := m.track(ctx, "load_nodes", sessionID, func() error {
		var err error
		stored, err = m.store.NodesForSession(ctx, sessionID)
		return err
	}); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}

	ids := make([]string, len(stored))
	for i, n := range stored {
		ids[i] = n.ID
	}
	if err := m.track(ctx, "delete_nodes", sessionID, func() error {
		return m.store.DeleteNodes(ctx, ids)
	}); err != nil {
		return fmt.Errorf("delete session %s nodes: %w", sessionID, err)
	}
	if err := m.track(ctx, "delete_session", sessionID, func() error {
		return m.store.DeleteSession(ctx, sessionID)
	}); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = slices.DeleteFunc(slices.Clone(m.sessions), func(s tree.Session) bool {
		return s.ID == sessionID
	})
	if m.currentID == sessionID {
		m.currentID = ""
		m.nodes = tree.Nodes{}
		m.loading = false
	}
	return nil
}

// AddNode creates a node from fields, links it under its parent and
// persists the node, the parent and the owning session. A root node is
// appended to the session's RootNodeIDs. The node is returned even when
// persistence fails.
func (m *Manager) AddNode(ctx context.Context, fields tree.NodeFields) (tree.Node, error) {
	if fields.Type != "" && !fields.Type.Valid() {
		return tree.Node{}, fmt.Errorf("%w: %q", ErrUnknownNodeType, fields.Type)
	}
	node := tree.NewNode(fields)

	m.mu.Lock()
	m.nodes = tree.Insert(m.nodes, node)
	parent, hasParent := m.nodes[node.ParentID]
	hasParent = hasParent && node.ParentID != ""
	session, hasSession := m.touchSession(node.SessionID, func(s *tree.Session) {
		if node.IsRoot() {
			s.RootNodeIDs = append(slices.Clone(s.RootNodeIDs), node.ID)
		}
	})
	m.mu.Unlock()

	var errs []error
	errs = append(errs, m.track(ctx, "save_node", node.ID, func() error {
		return m.store.SaveNode(ctx, node)
	}))
	if hasParent {
		errs = append(errs, m.track(ctx, "save_node", parent.ID, func() error {
			return m.store.SaveNode(ctx, parent)
		}))
	}
	if hasSession {
		errs = append(errs, m.track(ctx, "save_session", session.ID, func() error {
			return m.store.SaveSession(ctx, session)
		}))
	}
	return node.Clone(), errors.Join(errs...)
}

// DeleteNode removes a node and its descendants, returning every removed
// ID. Deleting an unknown node returns nil and does nothing.
func (m *Manager) DeleteNode(ctx context.Context, nodeID string) ([]string, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	node, ok := m.nodes[nodeID]
	if !ok {
		m.mu.Unlock()
		return nil, nil
	}
	var removed []string
	m.nodes, removed = tree.DeleteCascade(m.nodes, nodeID)
	parent, hasParent := m.nodes[node.ParentID]
	hasParent = hasParent && node.ParentID != ""
	session, hasSession := m.touchSession(node.SessionID, func(s *tree.Session) {
		if node.IsRoot() {
			s.RootNodeIDs = slices.DeleteFunc(slices.Clone(s.RootNodeIDs), func(id string) bool {
				return id == nodeID
			})
		}
	})
	m.mu.Unlock()

	var errs []error
	errs = append(errs, m.track(ctx, "delete_nodes", nodeID, func() error {
		return m.store.DeleteNodes(ctx, removed)
	}))
	if hasParent {
		errs = append(errs, m.track(ctx, "save_node", parent.ID, func() error {
			return m.store.SaveNode(ctx, parent)
		}))
	}
	if hasSession {
		errs = append(errs, m.track(ctx, "save_session", session.ID, func() error {
			return m.store.SaveSession(ctx, session)
		}))
	}
	return removed, errors.Join(errs...)
}

// UpdateNodeContent replaces a node's content in memory.
// It reports whether the node exists.
func (m *Manager) UpdateNodeContent(nodeID, content string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[nodeID]; !ok {
		return false
	}
	m.nodes, _ = tree.UpdateContent(m.nodes, nodeID, content)
	return true
}

// AppendNodeContent appends text to a node's content in memory.
// It reports whether the node exists.
func (m *Manager) AppendNodeContent(nodeID, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[nodeID]; !ok {
		return false
	}
	m.nodes, _ = tree.AppendContent(m.nodes, nodeID, text)
	return true
}

// UpdateNodeMetadata merges patch into a node's metadata in memory.
// It reports whether the node exists.
func (m *Manager) UpdateNodeMetadata(nodeID string, patch map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ok bool
	m.nodes, ok = tree.UpdateMetadata(m.nodes, nodeID, patch)
	return ok
}

// PersistNode writes the node's current in-memory state to the store.
// An unknown node is ignored.
func (m *Manager) PersistNode(ctx context.Context, nodeID string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	node, ok := m.Node(nodeID)
	if !ok {
		return nil
	}
	return m.track(ctx, "save_node", nodeID, func() error {
		return m.store.SaveNode(ctx, node)
	})
}

// PersistSession bumps a session's UpdatedAt and stores it.
// An unknown session is ignored.
func (m *Manager) PersistSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	session, ok := m.touchSession(sessionID, nil)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.track(ctx, "save_session", sessionID, func() error {
		return m.store.SaveSession(ctx, session)
	})
}

// touchSession applies fn to the listed session, bumps UpdatedAt and
// returns the updated copy. Caller holds m.mu.
func (m *Manager) touchSession(id string, fn func(*tree.Session)) (tree.Session, bool) {
	i := slices.IndexFunc(m.sessions, func(s tree.Session) bool { return s.ID == id })
	if i < 0 {
		return tree.Session{}, false
	}
	updated := m.sessions[i].Clone()
	if fn != nil {
		fn(&updated)
	}
	updated.UpdatedAt = m.now()

	sessions := slices.Clone(m.sessions)
	sessions[i] = updated
	m.sessions = sessions
	return updated.Clone(), true
}

func (m *Manager) beginLoad() *loadToken {
	token := newLoadToken()
	m.mu.Lock()
	m.loads[token] = struct{}{}
	m.mu.Unlock()
	return token
}

func (m *Manager) endLoad(token *loadToken) {
	m.mu.Lock()
	delete(m.loads, token)
	m.mu.Unlock()
}

// track runs a storage operation, recording its latency and logging failures.
func (m *Manager) track(ctx context.Context, op, key string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.metrics.RecordStorageOp(ctx, op, time.Since(start), err)
	if err != nil {
		observability.LogStorageError(m.logger, op, key, err)
	}
	return err
}

func sortByUpdated(sessions []tree.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}
