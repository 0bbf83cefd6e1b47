package tree

import (
	"fmt"
	"slices"
)

// CheckInvariants verifies that the nodes of a session form a consistent
// forest: roots match the session's root list, every parent/child link is
// mirrored, children lists hold no duplicates and there are no cycles.
func CheckInvariants(session Session, nodes Nodes) error {
	for _, rid := range session.RootNodeIDs {
		node, ok := nodes[rid]
		if !ok {
			return fmt.Errorf("root %s listed in session but missing", rid)
		}
		if !node.IsRoot() {
			return fmt.Errorf("root %s has parent %s", rid, node.ParentID)
		}
	}

	for id, node := range nodes {
		if node.ID != id {
			return fmt.Errorf("node keyed %s has id %s", id, node.ID)
		}
		if node.SessionID != session.ID {
			continue
		}
		if node.IsRoot() {
			if !slices.Contains(session.RootNodeIDs, id) {
				return fmt.Errorf("root node %s missing from session roots", id)
			}
		} else {
			parent, ok := nodes[node.ParentID]
			if !ok {
				return fmt.Errorf("node %s has missing parent %s", id, node.ParentID)
			}
			if !slices.Contains(parent.ChildrenIDs, id) {
				return fmt.Errorf("parent %s does not list child %s", parent.ID, id)
			}
		}

		seen := make(map[string]bool, len(node.ChildrenIDs))
		for _, cid := range node.ChildrenIDs {
			if seen[cid] {
				return fmt.Errorf("node %s lists child %s twice", id, cid)
			}
			seen[cid] = true
			child, ok := nodes[cid]
			if !ok {
				return fmt.Errorf("node %s lists missing child %s", id, cid)
			}
			if child.ParentID != id {
				return fmt.Errorf("child %s of %s has parent %q", cid, id, child.ParentID)
			}
		}
	}

	// Every node must be reachable from a root exactly once.
	visited := make(map[string]bool)
	stack := slices.Clone(session.RootNodeIDs)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			return fmt.Errorf("node %s reachable twice", cur)
		}
		visited[cur] = true
		stack = append(stack, nodes[cur].ChildrenIDs...)
	}
	for id, node := range nodes {
		if node.SessionID == session.ID && !visited[id] {
			return fmt.Errorf("node %s unreachable from session roots", id)
		}
	}
	return nil
}
