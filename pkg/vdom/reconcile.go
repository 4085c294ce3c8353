package vdom

import (
	"fmt"
	"log/slog"
	"time"
)

// Option configures a Reconciler.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	observer Observer
}

// WithLogger sets the reconciler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver installs an Observer for metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// Reconciler keeps rendered output in step with a virtual tree. It owns the
// handle map and the current tree and is not safe for concurrent use; one
// pass runs to completion before the next starts.
type Reconciler[H any] struct {
	adapter   Adapter[H]
	container H
	handles   *HandleMap[H]
	current   *Tree
	failed    bool

	// orphans are trees a failed pass mounted nodes from. Their entries
	// stay in handles until the next teardown.
	orphans []*Tree

	logger   *slog.Logger
	observer Observer
}

// NewReconciler creates a reconciler that mounts root nodes under container.
func NewReconciler[H any](adapter Adapter[H], container H, opts ...Option) *Reconciler[H] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "vdom.reconciler")
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	return &Reconciler[H]{
		adapter:   adapter,
		container: container,
		handles:   NewHandleMap[H](),
		logger:    o.logger,
		observer:  o.observer,
	}
}

// Handles returns the live handle map. Callers must not hold it across a
// pass.
func (r *Reconciler[H]) Handles() *HandleMap[H] {
	return r.handles
}

// Current returns the tree the rendered output currently reflects.
func (r *Reconciler[H]) Current() *Tree {
	return r.current
}

// Failed reports whether the last pass stopped part way.
func (r *Reconciler[H]) Failed() bool {
	return r.failed
}

// Handle returns the handle of a node of the current tree.
func (r *Reconciler[H]) Handle(id NodeID) (H, bool) {
	return r.handles.Get(id)
}

// Mount renders t from scratch. Whatever was mounted before is unmounted
// first.
func (r *Reconciler[H]) Mount(t *Tree) error {
	if r.current != nil || r.handles.Len() > 0 {
		if err := r.Unmount(); err != nil {
			return err
		}
	}
	start := time.Now()
	var err error
	if t.Len() > 0 {
		err = r.mountTree(PatchInsert, t, t.Root(), r.container, 0)
	}
	r.finish("mount", 0, start, err)
	if err != nil {
		r.failed = true
		r.orphans = append(r.orphans, t)
		return err
	}
	r.current = t
	r.failed = false
	return nil
}

// Unmount destroys all rendered output, including nodes a failed pass left
// mounted from a tree that never became current.
func (r *Reconciler[H]) Unmount() error {
	start := time.Now()
	err := r.teardown()
	r.finish("unmount", 0, start, err)
	if err != nil {
		r.failed = true
		return err
	}
	r.current = nil
	r.orphans = nil
	r.failed = false
	return nil
}

// teardown destroys every entry in the handle map children-first. Nodes
// mounted from an orphan hang below surviving nodes of the tree before it,
// never above, so orphans go newest first and current goes last.
func (r *Reconciler[H]) teardown() error {
	for i := len(r.orphans) - 1; i >= 0; i-- {
		t := r.orphans[i]
		if err := r.unmountTree(PatchRemove, t, t.Root()); err != nil {
			return err
		}
	}
	if r.current != nil {
		if err := r.unmountTree(PatchRemove, r.current, r.current.Root()); err != nil {
			return err
		}
	}
	if n := r.handles.Len(); n > 0 {
		return &DesyncError{Op: PatchRemove, Node: r.handles.Keys()[0],
			Reason: fmt.Sprintf("%d handles belong to no known tree", n)}
	}
	return nil
}

// Reset forgets the current tree and every handle without touching the
// rendering target. Use it after the target has been torn down externally.
func (r *Reconciler[H]) Reset() {
	r.handles.clear()
	r.current = nil
	r.orphans = nil
	r.failed = false
	r.observer.HandlesChanged(0)
}

// Update brings the output in line with next and returns the patches it
// applied. The first call mounts next. On success next becomes current and
// the handle map is keyed by next's node IDs.
func (r *Reconciler[H]) Update(next *Tree) ([]Patch, error) {
	if r.failed {
		return nil, ErrReconcilerFailed
	}
	if r.current == nil {
		return nil, r.Mount(next)
	}
	if next.Len() == 0 {
		return nil, r.Unmount()
	}

	prev := r.current
	patches := Diff(prev, next)
	if err := r.Apply(prev, next, patches); err != nil {
		return patches, err
	}
	r.Adopt(prev, next)
	r.current = next
	return patches, nil
}

// Apply executes patches in order. prev is the tree the patches were
// computed from and whose surviving nodes are mounted; next is the tree new
// nodes are taken from.
//
// Apply stops at the first error. Patches before it stay applied and the
// handle map reflects exactly what succeeded. Surviving nodes keep their
// prev-side keys until Adopt is called.
func (r *Reconciler[H]) Apply(prev, next *Tree, patches []Patch) error {
	start := time.Now()
	var err error
	applied := 0
	for _, p := range patches {
		if err = r.apply(prev, next, p); err != nil {
			break
		}
		applied++
		r.observer.PatchApplied(p.Op)
	}
	r.finish("apply", applied, start, err)
	if err != nil {
		r.failed = true
		r.orphans = append(r.orphans, next)
		r.logger.Error("reconcile failed",
			"applied", applied,
			"total", len(patches),
			"error", err)
	}
	return err
}

// Adopt re-keys the handles of nodes that survived the diff of prev and
// next from their prev-side IDs to their next-side IDs. It follows the same
// matching rules as Diff.
func (r *Reconciler[H]) Adopt(prev, next *Tree) {
	if prev.Len() == 0 || next.Len() == 0 {
		return
	}
	r.adopt(prev, prev.Root(), next, next.Root())
}

func (r *Reconciler[H]) adopt(prev *Tree, a NodeID, next *Tree, b NodeID) {
	pn, nn := prev.MustNode(a), next.MustNode(b)
	if !sameIdentity(pn, nn) {
		return
	}
	r.handles.rekey(a, b)
	for i := 0; i < min(len(pn.Children), len(nn.Children)); i++ {
		r.adopt(prev, pn.Children[i], next, nn.Children[i])
	}
}

func (r *Reconciler[H]) apply(prev, next *Tree, p Patch) error {
	switch p.Op {
	case PatchReplace:
		return r.replace(prev, next, p)
	case PatchUpdateAttrs:
		return r.updateAttrs(prev, p)
	case PatchInsert:
		parent, ok := r.handles.Get(p.Target)
		if !ok {
			return &DesyncError{Op: p.Op, Node: p.Target, Reason: "parent is not mounted"}
		}
		return r.mountTree(p.Op, next, p.Node, parent, p.Index)
	case PatchRemove:
		if !r.handles.Has(p.Node) {
			return &DesyncError{Op: p.Op, Node: p.Node, Reason: "child is not mounted"}
		}
		return r.unmountTree(p.Op, prev, p.Node)
	default:
		return &DesyncError{Op: p.Op, Node: p.Target, Reason: "unknown patch operation"}
	}
}

func (r *Reconciler[H]) replace(prev, next *Tree, p Patch) error {
	old, ok := prev.Node(p.Target)
	if !ok {
		return &DesyncError{Op: p.Op, Node: p.Target, Reason: "node is not in the previous tree"}
	}
	if !r.handles.Has(p.Target) {
		return &DesyncError{Op: p.Op, Node: p.Target, Reason: "node is not mounted"}
	}

	parent, index := r.container, 0
	if old.Parent != None {
		if parent, ok = r.handles.Get(old.Parent); !ok {
			return &DesyncError{Op: p.Op, Node: old.Parent, Reason: "parent is not mounted"}
		}
		index = prev.IndexOf(p.Target)
	}

	if err := r.unmountTree(p.Op, prev, p.Target); err != nil {
		return err
	}
	return r.mountTree(p.Op, next, p.Node, parent, index)
}

func (r *Reconciler[H]) updateAttrs(prev *Tree, p Patch) error {
	h, ok := r.handles.Get(p.Target)
	if !ok {
		return &DesyncError{Op: p.Op, Node: p.Target, Reason: "node is not mounted"}
	}
	n, ok := prev.Node(p.Target)
	if !ok {
		return &DesyncError{Op: p.Op, Node: p.Target, Reason: "node is not in the previous tree"}
	}
	n.Attrs = p.Attrs.ApplyTo(n.Attrs)
	if err := r.adapter.UpdateAttrs(h, n, p.Attrs); err != nil {
		return &AdapterError{Op: p.Op, Action: "update", Node: n.ID, Tag: n.Tag, Err: err}
	}
	return nil
}

// mountTree mounts id and its descendants top-down, registering each handle
// as soon as it exists.
func (r *Reconciler[H]) mountTree(op PatchOp, t *Tree, id NodeID, parent H, index int) error {
	n, ok := t.Node(id)
	if !ok {
		return &DesyncError{Op: op, Node: id, Reason: "node is not in the next tree"}
	}
	h, err := r.adapter.Mount(parent, n, index)
	if err != nil {
		return &AdapterError{Op: op, Action: "mount", Node: id, Tag: n.Tag, Err: err}
	}
	r.handles.set(id, h)
	for i, c := range n.Children {
		if err := r.mountTree(op, t, c, h, i); err != nil {
			return err
		}
	}
	return nil
}

// unmountTree destroys id and its descendants children-first. An entry is
// removed only once its handle has been destroyed.
func (r *Reconciler[H]) unmountTree(op PatchOp, t *Tree, id NodeID) error {
	for _, nid := range t.Subtree(id) {
		h, ok := r.handles.Get(nid)
		if !ok {
			continue
		}
		if err := r.adapter.Destroy(h); err != nil {
			n, _ := t.Node(nid)
			return &AdapterError{Op: op, Action: "destroy", Node: nid, Tag: n.Tag, Err: err}
		}
		r.handles.delete(nid)
	}
	return nil
}

func (r *Reconciler[H]) finish(kind string, patches int, start time.Time, err error) {
	elapsed := time.Since(start)
	r.observer.PassCompleted(kind, patches, elapsed.Seconds(), err)
	r.observer.HandlesChanged(r.handles.Len())
	if err == nil {
		r.logger.Debug("pass complete",
			"kind", kind,
			"patches", patches,
			"handles", r.handles.Len(),
			"duration", elapsed)
	}
}
