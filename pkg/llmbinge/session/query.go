package session

import (
	"slices"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

// Node returns a copy of a node in the current session.
func (m *Manager) Node(id string) (tree.Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return tree.Node{}, false
	}
	return n.Clone(), true
}

// Nodes returns the current session's nodes. The map is a snapshot and
// must not be modified.
func (m *Manager) Nodes() tree.Nodes {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodes
}

// Sessions returns the session list, newest first as loaded.
func (m *Manager) Sessions() []tree.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tree.Session, len(m.sessions))
	for i, s := range m.sessions {
		out[i] = s.Clone()
	}
	return out
}

// Session returns one listed session.
func (m *Manager) Session(id string) (tree.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.sessions, func(s tree.Session) bool { return s.ID == id })
	if i < 0 {
		return tree.Session{}, false
	}
	return m.sessions[i].Clone(), true
}

// CurrentSessionID returns the ID of the loaded session, or "".
func (m *Manager) CurrentSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID
}

// Loading reports whether a LoadSession is in progress.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Ancestors returns the chain from id's parent up to its root.
func (m *Manager) Ancestors(id string) []tree.Node {
	return tree.Ancestors(m.Nodes(), id)
}

// Children returns id's direct children in order.
func (m *Manager) Children(id string) []tree.Node {
	return tree.Children(m.Nodes(), id)
}

// Descendants returns every node below id.
func (m *Manager) Descendants(id string) []tree.Node {
	return tree.Descendants(m.Nodes(), id)
}

// Tree returns the current session's forest. Roots come from the session's
// RootNodeIDs when the session is listed, otherwise from the parentless nodes.
func (m *Manager) Tree() []tree.Entry {
	m.mu.Lock()
	nodes := m.nodes
	var roots []string
	if i := slices.IndexFunc(m.sessions, func(s tree.Session) bool { return s.ID == m.currentID }); i >= 0 {
		roots = slices.Clone(m.sessions[i].RootNodeIDs)
	}
	m.mu.Unlock()

	if roots == nil {
		for id, n := range nodes {
			if n.IsRoot() {
				roots = append(roots, id)
			}
		}
		slices.SortFunc(roots, func(a, b string) int {
			return nodes[a].CreatedAt.Compare(nodes[b].CreatedAt)
		})
	}
	return tree.BuildTreeFromRoots(nodes, roots)
}
