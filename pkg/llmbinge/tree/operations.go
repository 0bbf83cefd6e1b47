package tree

import (
	"maps"
	"slices"
)

// Nodes maps node IDs to nodes. Operations in this package never modify a
// Nodes value they are given; they return a new map when anything changes.
// Slices and maps inside a Node are likewise replaced, never written.
type Nodes map[string]Node

// Insert adds node to the map. If its parent is present, node.ID is appended
// to the parent's children exactly once. A missing parent leaves the node
// unlinked.
func Insert(nodes Nodes, node Node) Nodes {
	next := maps.Clone(nodes)
	if next == nil {
		next = make(Nodes)
	}
	next[node.ID] = node
	if node.ParentID == "" {
		return next
	}
	if parent, ok := next[node.ParentID]; ok && !slices.Contains(parent.ChildrenIDs, node.ID) {
		parent.ChildrenIDs = appendID(parent.ChildrenIDs, node.ID)
		next[parent.ID] = parent
	}
	return next
}

// AddChildID links childID under parentID. It returns the input map and
// false when the parent is missing or already lists the child.
func AddChildID(nodes Nodes, parentID, childID string) (Nodes, bool) {
	parent, ok := nodes[parentID]
	if !ok || slices.Contains(parent.ChildrenIDs, childID) {
		return nodes, false
	}
	next := maps.Clone(nodes)
	parent.ChildrenIDs = appendID(parent.ChildrenIDs, childID)
	next[parentID] = parent
	return next, true
}

// UpdateContent replaces a node's content.
func UpdateContent(nodes Nodes, id, content string) (Nodes, bool) {
	node, ok := nodes[id]
	if !ok || node.Content == content {
		return nodes, false
	}
	next := maps.Clone(nodes)
	node.Content = content
	next[id] = node
	return next, true
}

// AppendContent appends text to a node's content.
func AppendContent(nodes Nodes, id, text string) (Nodes, bool) {
	node, ok := nodes[id]
	if !ok || text == "" {
		return nodes, false
	}
	return UpdateContent(nodes, id, node.Content+text)
}

// UpdateMetadata shallow-merges patch into a node's metadata. Patch values
// are normalized with NormalizeMetadata.
func UpdateMetadata(nodes Nodes, id string, patch map[string]any) (Nodes, bool) {
	node, ok := nodes[id]
	if !ok {
		return nodes, false
	}
	merged := make(map[string]any, len(node.Metadata)+len(patch))
	maps.Copy(merged, node.Metadata)
	maps.Copy(merged, NormalizeMetadata(patch))

	next := maps.Clone(nodes)
	node.Metadata = merged
	next[id] = node
	return next, true
}

// CollectDescendantIDs returns id followed by every node reachable through
// ChildrenIDs, depth first. IDs without a node are still reported so callers
// can clean them out of storage.
func CollectDescendantIDs(nodes Nodes, id string) []string {
	var (
		out   []string
		seen  = make(map[string]bool)
		stack = []string{id}
	)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		if node, ok := nodes[cur]; ok {
			stack = append(stack, node.ChildrenIDs...)
		}
	}
	return out
}

// DeleteCascade removes id and all of its descendants. The parent, if it
// survives, loses every removed ID from its children. The second result lists every
// removed ID. Deleting a missing node is a no-op.
func DeleteCascade(nodes Nodes, id string) (Nodes, []string) {
	target, ok := nodes[id]
	if !ok {
		return nodes, nil
	}

	removed := CollectDescendantIDs(nodes, id)
	gone := make(map[string]bool, len(removed))
	next := maps.Clone(nodes)
	for _, rid := range removed {
		gone[rid] = true
		delete(next, rid)
	}

	if parent, ok := next[target.ParentID]; ok && target.ParentID != "" {
		parent.ChildrenIDs = slices.DeleteFunc(slices.Clone(parent.ChildrenIDs), func(c string) bool {
			return gone[c]
		})
		next[parent.ID] = parent
	}
	return next, removed
}

func appendID(ids []string, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}
