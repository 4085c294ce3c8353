// Package vdom is prowser's virtual document: an in-memory tree of the
// page, a differ that compares two trees, and a reconciler that applies the
// difference to live rendered output.
//
// # Trees
//
// A Tree is an arena of Nodes built from a Source, the boundary with a
// markup parser. Nodes refer to each other by NodeID; IDs are unique across
// every tree the process builds, so they can key maps of rendered handles.
// Text runs use the reserved tag TextTag and keep their content in the
// "content" attribute. Whitespace-only text and denylisted tags (script,
// style) never enter a tree.
//
//	tree, err := vdom.NewBuilder().Build(src)
//
// # Diffing
//
// Diff compares two trees depth-first and returns patches in pre-order:
//
//   - Replace when tag or identity key ("id" attribute) differ
//   - UpdateAttrs with only the attributes that changed
//   - Insert and Remove for children past the shorter child list
//
// Children are matched by position. Reordering siblings is not detected as
// a move.
//
// # Reconciliation
//
// A Reconciler owns a HandleMap from mounted NodeIDs to the handles an
// Adapter created for them. Update diffs the current tree against the next
// one, applies the patches through the adapter and re-keys surviving
// handles so the next update starts from the new tree.
//
//	r := vdom.NewReconciler[*term.Widget](screen, screen.Root())
//	if _, err := r.Update(tree); err != nil {
//	    // the output reflects every patch before the failing one
//	}
package vdom
