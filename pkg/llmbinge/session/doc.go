// Package session owns the session list and the current session's node
// tree, mirroring every mutation to a storage.Store.
//
// The in-memory tree is the source of truth. Mutations are applied in
// memory first and then persisted; a persistence failure is returned to the
// caller but never rolls the in-memory state back. Reads return snapshots:
// the tree.Nodes value returned by Nodes is never modified afterwards.
//
// Loads can race with deletes. Every load takes its own token, and
// DeleteSession cancels the tokens of all loads in flight, so a load that
// started before a delete cannot resurrect the deleted session in the list.
package session
