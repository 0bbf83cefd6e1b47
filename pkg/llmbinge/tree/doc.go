// Package tree models the forest of generated content inside a session.
//
// A Nodes map is treated as an immutable value. Every operation that would
// change it returns a fresh map and leaves its input untouched, so a caller
// holding an older map keeps a consistent snapshot:
//
//	nodes := tree.Nodes{}
//	root := tree.NewNode(tree.NodeFields{SessionID: s.ID, Title: "Octopus"})
//	nodes = tree.Insert(nodes, root)
//
//	child := tree.NewNode(tree.NodeFields{SessionID: s.ID, ParentID: root.ID, Title: "Camouflage"})
//	nodes = tree.Insert(nodes, child)
//
//	nodes, removed := tree.DeleteCascade(nodes, root.ID) // removes both
//
// Operations that may have nothing to do (AddChildID, UpdateContent,
// UpdateMetadata) also report whether they changed anything; when they did
// not, the returned map is the input map.
package tree
