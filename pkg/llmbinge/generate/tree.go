package generate

import (
	"context"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

// Tree is the node state orchestrators write to. session.Manager
// implements it.
type Tree interface {
	Node(id string) (tree.Node, bool)
	UpdateNodeContent(id, content string) bool
	AppendNodeContent(id, text string) bool
	UpdateNodeMetadata(id string, patch map[string]any) bool
	PersistNode(ctx context.Context, id string) error
}
