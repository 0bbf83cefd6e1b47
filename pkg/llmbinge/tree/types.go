package tree

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// NodeType distinguishes the kinds of content a node holds.
type NodeType string

const (
	// TypeArticle is a streamed prose article.
	TypeArticle NodeType = "article"

	// TypeMap is a topic map whose content is a JSON layout.
	TypeMap NodeType = "map"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	return t == TypeArticle || t == TypeMap
}

// Node is one piece of generated content in a session's forest.
// An empty ParentID marks a root.
type Node struct {
	ID          string         `json:"id"`
	Type        NodeType       `json:"type"`
	ParentID    string         `json:"parentId,omitempty"`
	SessionID   string         `json:"sessionId"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ChildrenIDs []string       `json:"childrenIds"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool {
	return n.ParentID == ""
}

// Clone returns a copy of n that shares no mutable state with it.
func (n Node) Clone() Node {
	n.ChildrenIDs = slices.Clone(n.ChildrenIDs)
	if n.ChildrenIDs == nil {
		n.ChildrenIDs = []string{}
	}
	n.Metadata = maps.Clone(n.Metadata)
	return n
}

// Session groups a forest of nodes under a title.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	RootNodeIDs []string  `json:"rootNodeIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Clone returns a copy of s that shares no mutable state with it.
func (s Session) Clone() Session {
	s.RootNodeIDs = slices.Clone(s.RootNodeIDs)
	if s.RootNodeIDs == nil {
		s.RootNodeIDs = []string{}
	}
	return s
}

// NodeFields are the caller-supplied attributes of a new node.
type NodeFields struct {
	Type      NodeType
	ParentID  string
	SessionID string
	Title     string
	Content   string
	Metadata  map[string]any
}

// NewNode creates a node with a fresh ID and no children.
// Type defaults to TypeArticle.
func NewNode(f NodeFields) Node {
	typ := f.Type
	if typ == "" {
		typ = TypeArticle
	}
	return Node{
		ID:          uuid.NewString(),
		Type:        typ,
		ParentID:    f.ParentID,
		SessionID:   f.SessionID,
		Title:       f.Title,
		Content:     f.Content,
		Metadata:    NormalizeMetadata(f.Metadata),
		ChildrenIDs: []string{},
		CreatedAt:   Now(),
	}
}

// NewSession creates a session with a fresh ID.
func NewSession(title string, rootIDs ...string) Session {
	now := Now()
	roots := slices.Clone(rootIDs)
	if roots == nil {
		roots = []string{}
	}
	return Session{
		ID:          uuid.NewString(),
		Title:       title,
		RootNodeIDs: roots,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
