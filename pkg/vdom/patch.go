package vdom

import "fmt"

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchReplace     PatchOp = 0x01 // Discard a subtree and build a new one
	PatchUpdateAttrs PatchOp = 0x02 // Change attributes in place
	PatchInsert      PatchOp = 0x03 // Mount a new child
	PatchRemove      PatchOp = 0x04 // Unmount a child
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchReplace:
		return "Replace"
	case PatchUpdateAttrs:
		return "UpdateAttrs"
	case PatchInsert:
		return "Insert"
	case PatchRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// Patch is one instruction for the reconciler. Nodes are referenced by ID so
// applying a patch never has to search either tree.
//
//	Replace:     Target = old node,   Node = new node
//	UpdateAttrs: Target = old node,   Attrs = changed attributes
//	Insert:      Target = old parent, Node = new child, Index = position
//	Remove:      Target = old parent, Node = old child, Index = position
type Patch struct {
	Op     PatchOp
	Target NodeID
	Node   NodeID
	Index  int
	Attrs  AttrDelta
}

// String returns a one-line description of the patch.
func (p Patch) String() string {
	switch p.Op {
	case PatchReplace:
		return fmt.Sprintf("Replace(%d -> %d)", p.Target, p.Node)
	case PatchUpdateAttrs:
		return fmt.Sprintf("UpdateAttrs(%d, %s)", p.Target, p.Attrs)
	case PatchInsert:
		return fmt.Sprintf("Insert(%d, %d, %d)", p.Target, p.Node, p.Index)
	case PatchRemove:
		return fmt.Sprintf("Remove(%d, %d, %d)", p.Target, p.Node, p.Index)
	default:
		return "Unknown"
	}
}

// Summary counts patches by operation.
type Summary map[PatchOp]int

// Summarize counts the patches in ps by operation.
func Summarize(ps []Patch) Summary {
	s := make(Summary, 4)
	for _, p := range ps {
		s[p.Op]++
	}
	return s
}
