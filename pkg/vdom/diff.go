package vdom

// Diff compares two trees and returns the patches needed to transform
// rendered output of prev into output consistent with next.
//
// The comparison is depth-first and emits patches in pre-order. Children are
// matched by position only; a reordered list is diffed as a cascade of
// replacements, inserts and removals rather than moves.
func Diff(prev, next *Tree) []Patch {
	if prev.Len() == 0 || next.Len() == 0 {
		return nil
	}
	var patches []Patch
	diff(prev, prev.Root(), next, next.Root(), &patches)
	return patches
}

// DiffNodes compares the subtree a of prev against the subtree b of next.
func DiffNodes(prev *Tree, a NodeID, next *Tree, b NodeID) []Patch {
	if !prev.Has(a) || !next.Has(b) {
		return nil
	}
	var patches []Patch
	diff(prev, a, next, b, &patches)
	return patches
}

// diff recursively compares nodes and appends patches.
func diff(prev *Tree, a NodeID, next *Tree, b NodeID, patches *[]Patch) {
	if prev == next && a == b {
		return
	}
	pn, nn := prev.MustNode(a), next.MustNode(b)

	// Different tag or identity - the whole subtree is considered changed
	if !sameIdentity(pn, nn) {
		*patches = append(*patches, Patch{
			Op:     PatchReplace,
			Target: a,
			Node:   b,
		})
		return
	}

	if delta := diffAttrs(pn.Attrs, nn.Attrs); len(delta) > 0 {
		*patches = append(*patches, Patch{
			Op:     PatchUpdateAttrs,
			Target: a,
			Attrs:  delta,
		})
	}

	diffChildren(prev, pn, next, nn, patches)
}

// diffChildren matches children by index.
func diffChildren(prev *Tree, pn Node, next *Tree, nn Node, patches *[]Patch) {
	maxLen := max(len(pn.Children), len(nn.Children))

	for i := 0; i < maxLen; i++ {
		switch {
		case i >= len(pn.Children):
			*patches = append(*patches, Patch{
				Op:     PatchInsert,
				Target: pn.ID,
				Node:   nn.Children[i],
				Index:  i,
			})
		case i >= len(nn.Children):
			*patches = append(*patches, Patch{
				Op:     PatchRemove,
				Target: pn.ID,
				Node:   pn.Children[i],
				Index:  i,
			})
		default:
			diff(prev, pn.Children[i], next, nn.Children[i], patches)
		}
	}
}

// sameIdentity reports whether two nodes at the same position are the same
// logical element.
func sameIdentity(a, b Node) bool {
	return a.Tag == b.Tag && a.Key == b.Key
}
