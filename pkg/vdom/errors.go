package vdom

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrEmptyDocument is returned when the root of a document builds to nothing.
	ErrEmptyDocument = errors.New("vdom: document has no renderable content")

	// ErrDesync means a patch referenced a node that has no handle, or a node
	// missing from the tree it was computed against.
	ErrDesync = errors.New("vdom: patch does not match mounted tree")

	// ErrAdapter wraps every failure reported by an output adapter.
	ErrAdapter = errors.New("vdom: output adapter failed")

	// ErrReconcilerFailed is returned by Update after an earlier pass failed
	// part way. Mount or Reset clears it.
	ErrReconcilerFailed = errors.New("vdom: reconciler is in a failed state")

	// ErrMaxDepth is the cause of a BuildError for nodes nested too deeply.
	ErrMaxDepth = errors.New("vdom: maximum depth exceeded")
)

// BuildError describes a source node that could not be converted. The node
// is left out of the tree; the rest of the document still builds.
type BuildError struct {
	Tag   string
	Depth int
	Err   error
}

func (e *BuildError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("vdom: build node at depth %d: %v", e.Depth, e.Err)
	}
	return fmt.Sprintf("vdom: build <%s> at depth %d: %v", e.Tag, e.Depth, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// DesyncError is a programming-contract violation between the differ and the
// reconciler. It is fatal to the pass in progress.
type DesyncError struct {
	Op     PatchOp
	Node   NodeID
	Reason string
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("vdom: %s node %d: %s", e.Op, e.Node, e.Reason)
}

func (e *DesyncError) Is(target error) bool {
	return target == ErrDesync
}

// AdapterError reports a mount, update or destroy failure in the rendering
// target.
type AdapterError struct {
	Op     PatchOp
	Action string // "mount", "update" or "destroy"
	Node   NodeID
	Tag    string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("vdom: %s: %s <%s> (node %d): %v", e.Op, e.Action, e.Tag, e.Node, e.Err)
}

func (e *AdapterError) Unwrap() []error {
	return []error{ErrAdapter, e.Err}
}
