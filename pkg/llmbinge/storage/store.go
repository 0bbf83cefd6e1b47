// Package storage persists sessions, nodes and configuration overrides.
//
// Three logical collections are kept: sessions keyed by ID, nodes keyed by
// ID with a secondary index on session ID, and a single config-overrides
// record. The in-memory tree is the source of truth; a Store is its mirror,
// so batch operations are best effort rather than transactional: every item
// is attempted and the failures are joined.
package storage

import (
	"context"
	"errors"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

// Store persists the content tree. Implementations must be safe for
// concurrent use.
type Store interface {
	// Sessions returns every stored session in unspecified order.
	Sessions(ctx context.Context) ([]tree.Session, error)

	// Session returns one session, or ErrNotFound.
	Session(ctx context.Context, id string) (tree.Session, error)

	// SaveSession inserts or replaces a session.
	SaveSession(ctx context.Context, s tree.Session) error

	// DeleteSession removes a session record. Its nodes are not touched.
	// Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, id string) error

	// Node returns one node, or ErrNotFound.
	Node(ctx context.Context, id string) (tree.Node, error)

	// NodesForSession returns every node whose SessionID is sessionID.
	// Returns an empty slice (not an error) when there are none.
	NodesForSession(ctx context.Context, sessionID string) ([]tree.Node, error)

	// SaveNode inserts or replaces a node.
	SaveNode(ctx context.Context, n tree.Node) error

	// SaveNodes saves each node. An empty batch succeeds immediately.
	SaveNodes(ctx context.Context, nodes []tree.Node) error

	// DeleteNode removes a node. Deleting a missing node is not an error.
	DeleteNode(ctx context.Context, id string) error

	// DeleteNodes removes each listed node.
	DeleteNodes(ctx context.Context, ids []string) error

	// ConfigOverrides returns the stored overrides, or ErrNotFound.
	ConfigOverrides(ctx context.Context) (map[string]any, error)

	// SaveConfigOverrides replaces the stored overrides.
	SaveConfigOverrides(ctx context.Context, overrides map[string]any) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for storage operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store closed")
)

// configKey names the single overrides record.
const configKey = "user-overrides"
