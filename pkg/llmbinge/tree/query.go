package tree

// Ancestors returns the chain of parents of id, nearest first. The walk
// stops at a root or at the first parent that is not in the map.
func Ancestors(nodes Nodes, id string) []Node {
	var out []Node
	seen := map[string]bool{id: true}
	cur, ok := nodes[id]
	for ok && cur.ParentID != "" && !seen[cur.ParentID] {
		parent, found := nodes[cur.ParentID]
		if !found {
			break
		}
		seen[parent.ID] = true
		out = append(out, parent)
		cur = parent
	}
	return out
}

// Descendants returns every node below id, depth first. Dangling child IDs
// are skipped.
func Descendants(nodes Nodes, id string) []Node {
	root, ok := nodes[id]
	if !ok {
		return nil
	}

	var out []Node
	seen := map[string]bool{id: true}
	stack := append([]string(nil), root.ChildrenIDs...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if node, ok := nodes[cur]; ok {
			out = append(out, node)
			stack = append(stack, node.ChildrenIDs...)
		}
	}
	return out
}

// Children returns the direct children of id in insertion order.
func Children(nodes Nodes, id string) []Node {
	node, ok := nodes[id]
	if !ok {
		return nil
	}
	out := make([]Node, 0, len(node.ChildrenIDs))
	for _, cid := range node.ChildrenIDs {
		if child, ok := nodes[cid]; ok {
			out = append(out, child)
		}
	}
	return out
}

// Entry is one node of a nested tree view.
type Entry struct {
	Node     Node
	Children []Entry
}

// BuildTreeFromRoots assembles the nested view of the forest under rootIDs.
// Missing roots and dangling children are left out.
func BuildTreeFromRoots(nodes Nodes, rootIDs []string) []Entry {
	seen := make(map[string]bool)
	var build func(id string) (Entry, bool)
	build = func(id string) (Entry, bool) {
		node, ok := nodes[id]
		if !ok || seen[id] {
			return Entry{}, false
		}
		seen[id] = true
		entry := Entry{Node: node}
		for _, cid := range node.ChildrenIDs {
			if child, ok := build(cid); ok {
				entry.Children = append(entry.Children, child)
			}
		}
		return entry, true
	}

	out := make([]Entry, 0, len(rootIDs))
	for _, id := range rootIDs {
		if entry, ok := build(id); ok {
			out = append(out, entry)
		}
	}
	return out
}

// Walk calls fn for every entry in depth-first order with its depth.
func Walk(entries []Entry, fn func(e Entry, depth int)) {
	var walk func([]Entry, int)
	walk = func(es []Entry, depth int) {
		for _, e := range es {
			fn(e, depth)
			walk(e.Children, depth+1)
		}
	}
	walk(entries, 0)
}
