package vdom

// Adapter materializes nodes in a rendering target. H is the target's
// handle type: a widget pointer, a remote element ID, a terminal cell.
//
// The adapter alone decides how a tag maps to rendered output. The
// reconciler calls Mount parent-first and Destroy children-first, so Destroy
// only releases the handle's own resource; descendants are destroyed by
// separate calls.
type Adapter[H any] interface {
	// Mount creates the output for n as child number index of parent.
	Mount(parent H, n Node, index int) (H, error)

	// UpdateAttrs changes the attributes of an existing handle. n carries
	// the node's full attribute set after the change; delta only the
	// attributes that changed.
	UpdateAttrs(h H, n Node, delta AttrDelta) error

	// Destroy releases h.
	Destroy(h H) error
}

// Observer receives reconciliation events. pkg/metrics implements it with
// Prometheus collectors.
type Observer interface {
	// PatchApplied is called after each successfully applied patch.
	PatchApplied(op PatchOp)

	// PassCompleted is called once per Apply, Mount or Unmount.
	PassCompleted(kind string, patches int, seconds float64, err error)

	// HandlesChanged reports the number of mounted handles after a pass.
	HandlesChanged(n int)
}

type nopObserver struct{}

func (nopObserver) PatchApplied(PatchOp) {}
func (nopObserver) PassCompleted(string, int, float64, error) {}
func (nopObserver) HandlesChanged(int) {}
